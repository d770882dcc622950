package checkout

import "go.uber.org/fx"

// Module wires the checkout handler and its routes.
var Module = fx.Options(fx.Provide(NewHandler), fx.Invoke(Register))
