// Command api runs the HTTP API and the gRPC health endpoint.
package main

import (
	"go.uber.org/fx"

	"github.com/NovaByteCorp/deliverypro/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
