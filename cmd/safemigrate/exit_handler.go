package main

import (
	"os"

	"github.com/loykin/safemigrate/internal/common"
)

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler implements ExitHandler for production use
type DefaultExitHandler struct {
	logger *common.Logger
}

func NewDefaultExitHandler() *DefaultExitHandler {
	return &DefaultExitHandler{}
}

func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError logs err through the current default logger and exits with code 1.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	logger := h.logger
	if logger == nil {
		// resolved late so the logger installed by SetupLogging is used
		logger = common.GetLogger().WithComponent("main")
	}
	allKeyvals := append([]any{"error", err}, keyvals...)
	logger.Error(msg, allKeyvals...)
	h.Exit(1)
}

// Global exit handler (can be replaced for testing)
var exitHandler ExitHandler = NewDefaultExitHandler()
