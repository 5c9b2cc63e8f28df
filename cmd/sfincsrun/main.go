package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"sfincsrun/pkg/logger"
	"sfincsrun/pkg/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	app.close()
	if err != nil {
		logger.Get().Error("sfincsrun failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(exitCode(err))
	}
	_ = logger.Sync()
}

// exitCode maps an error to the process exit status: 2 for invalid input,
// the simulator's own status when it ran, 1 otherwise.
func exitCode(err error) int {
	var perr *models.ProcessError
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return 2
	case errors.As(err, &perr) && perr.ExitCode > 0:
		return perr.ExitCode
	default:
		return 1
	}
}
