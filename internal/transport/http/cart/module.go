package cart

import "go.uber.org/fx"

// Module wires the cart handler and its routes.
var Module = fx.Options(fx.Provide(NewHandler), fx.Invoke(Register))
