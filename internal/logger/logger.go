package logger

import "go.uber.org/zap"

// New builds a development logger for local environments and a JSON
// production logger everywhere else.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "development", "dev", "test", "":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
