package logger

import "go.uber.org/fx"

// Module installs the leveled Fx event logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
