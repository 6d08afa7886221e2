package observability

import (
	"github.com/danmuck/vrc20/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime logger and tags it with app.
func InitLogger(app string, level string) zerolog.Logger {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(level); ok {
		cfg.Level = lvl
	}
	logging.ApplyEnvOverrides(&cfg)
	logging.Apply(cfg)
	log.Logger = log.Logger.With().Str("app", app).Logger()
	return log.Logger
}
