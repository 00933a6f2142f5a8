package logger

import (
	"go.uber.org/zap"
)

// New builds the process-wide zap logger. Development mode uses the console
// encoder; anything else gets production JSON output.
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
