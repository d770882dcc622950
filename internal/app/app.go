// Package app assembles the Fx graphs of the delivery executables.
package app

import (
	"go.uber.org/fx"

	"github.com/NovaByteCorp/deliverypro/internal/cache"
	"github.com/NovaByteCorp/deliverypro/internal/clientstate"
	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/database"
	"github.com/NovaByteCorp/deliverypro/internal/logger"
	"github.com/NovaByteCorp/deliverypro/internal/messaging"
	"github.com/NovaByteCorp/deliverypro/internal/observability"
	repositoryaccount "github.com/NovaByteCorp/deliverypro/internal/repository/account"
	repositorycatalog "github.com/NovaByteCorp/deliverypro/internal/repository/catalog"
	repositoryorder "github.com/NovaByteCorp/deliverypro/internal/repository/order"
	grpcserver "github.com/NovaByteCorp/deliverypro/internal/server/grpc"
	httpserver "github.com/NovaByteCorp/deliverypro/internal/server/http"
	servicecheckout "github.com/NovaByteCorp/deliverypro/internal/service/checkout"
	serviceorder "github.com/NovaByteCorp/deliverypro/internal/service/order"
	"github.com/NovaByteCorp/deliverypro/internal/session"
	transporthttp "github.com/NovaByteCorp/deliverypro/internal/transport/http"
	"github.com/NovaByteCorp/deliverypro/internal/upload"
	"github.com/NovaByteCorp/deliverypro/internal/worker"
	workerorder "github.com/NovaByteCorp/deliverypro/internal/worker/order"
)

// Storage is configuration, logging and the database pools; enough for
// migrations, seeding and token minting.
var Storage = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Core provides the modules shared by the server and the worker.
var Core = fx.Options(
	Storage,
	cache.Module,
	messaging.Module,
	observability.Module,
	repositoryaccount.Module,
	repositorycatalog.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP serves the REST API and the gRPC health endpoint.
var HTTP = fx.Options(
	Core,
	clientstate.Module,
	session.Module,
	upload.Module,
	servicecheckout.Module,
	fx.Provide(
		func(c *database.Connections) httpserver.Pinger { return c },
		func(c *database.Connections) grpcserver.Pinger { return c },
	),
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker consumes order events.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default wiring.
var Module = HTTP
