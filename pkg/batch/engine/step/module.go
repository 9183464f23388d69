package step

import (
	"go.uber.org/fx"
)

// Module provides the step Registry and Runner and registers the lock and import steps.
var Module = fx.Options(
	fx.Provide(NewRegistry, NewRunner),
	fx.Provide(fx.Annotate(
		NewLockStepBuilder,
		fx.ResultTags(`name:"lockStep"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterLockStepBuilder,
		fx.ParamTags(``, `name:"lockStep"`),
	)),
	fx.Provide(fx.Annotate(
		NewImportStepBuilder,
		fx.ResultTags(`name:"importStep"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterImportStepBuilder,
		fx.ParamTags(``, `name:"importStep"`),
	)),
)
