package main

import (
	"github.com/sahilchouksey/fitcamp-api/app"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
)

func main() {
	// setup and run app
	if err := app.SetupAndRunServer(); err != nil {
		logger.Global().Fatal().Err(err).Msg("server exited")
	}
}
