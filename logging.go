package catrust

import (
	"go.uber.org/zap"
)

// Subsystem names used to tag per-component loggers.
const (
	SubsystemSchema    = "schema"
	SubsystemInstance  = "instance"
	SubsystemOptimizer = "optimizer"
	SubsystemMigrate   = "migrate"
	SubsystemEvaluator = "evaluator"
	SubsystemEmit      = "emit"
)

// NewLogger builds a *zap.SugaredLogger named for subsystem from the given
// base logger. Callers that don't supply a base logger get a no-op logger,
// so the library is silent until a caller opts into logging — unlike the
// teacher's cmd/server, which installs a global production logger, catrust
// never touches zap's global state.
func NewLogger(base *zap.Logger, subsystem string) *zap.SugaredLogger {
	if base == nil {
		return zap.NewNop().Sugar().Named(subsystem)
	}
	return base.Sugar().Named(subsystem)
}

// NewLoggerForConfig builds a production or development zap.Logger from a
// LoggingConfig and returns it, unnamed; pass the result to NewLogger for
// each subsystem that should log. Returns a no-op logger if cfg.Level is
// empty.
func NewLoggerForConfig(cfg LoggingConfig) (*zap.Logger, error) {
	if cfg.Level == "" {
		return zap.NewNop(), nil
	}

	var level zap.AtomicLevel
	switch cfg.Level {
	case "debug":
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	return zapCfg.Build()
}
