package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
}

func NewAPIServer(listenAddress string) *APIServer {
	return &APIServer{
		app:           fiber.New(NewFiberConfig()),
		listenAddress: listenAddress,
	}
}

// NewFiberConfig returns the fiber settings shared by the server and HTTP tests
func NewFiberConfig() fiber.Config {
	return fiber.Config{
		AppName:      "fitcamp-api",
		ErrorHandler: errorHandler,
	}
}

// errorHandler renders errors that escape handlers in the response envelope
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Error(c, fe.Code, "HTTP_ERROR", fe.Message)
	}
	logger.Error(c.UserContext()).Err(err).Msg("unhandled error")
	return response.InternalServerError(c, "Internal server error")
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	logger.Global().Info().Str("address", s.listenAddress).Msg("starting API server")
	return s.app.Listen(s.listenAddress)
}

func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}
