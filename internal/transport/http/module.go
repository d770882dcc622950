package http

import (
	"go.uber.org/fx"

	carttransport "github.com/NovaByteCorp/deliverypro/internal/transport/http/cart"
	checkouttransport "github.com/NovaByteCorp/deliverypro/internal/transport/http/checkout"
	ordertransport "github.com/NovaByteCorp/deliverypro/internal/transport/http/order"
	restauranttransport "github.com/NovaByteCorp/deliverypro/internal/transport/http/restaurant"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	checkouttransport.Module,
	carttransport.Module,
	restauranttransport.Module,
)
