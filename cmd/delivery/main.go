// Command delivery is the operations CLI: servers, worker, schema, seed data
// and the driver dashboard.
package main

import (
	"os"

	"github.com/NovaByteCorp/deliverypro/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
