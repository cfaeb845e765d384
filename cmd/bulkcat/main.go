// Command bulkcat runs bulk write operations against a rate-limited
// catalog API.
package main

import (
	"os"

	"github.com/tlind/bulkcat/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
