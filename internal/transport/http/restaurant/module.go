package restaurant

import "go.uber.org/fx"

// Module wires the restaurant handler and its routes.
var Module = fx.Options(fx.Provide(NewHandler), fx.Invoke(Register))
