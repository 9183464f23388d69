package transfer

import (
	"go.uber.org/fx"
)

// Module provides the transfer Engine.
var Module = fx.Options(
	fx.Provide(NewEngine),
)
