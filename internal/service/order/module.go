package order

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/messaging"
)

// Module provides the order service and the event publisher it shares with
// checkout.
var Module = fx.Provide(
	NewService,
	func(client messaging.Client, cfg config.Config, logger *zap.Logger) *Publisher {
		return NewPublisher(client, cfg.Messaging.Enabled, logger)
	},
)
