// main - main entry-point to storefront commands through cobra
// individual commands are outlined in ./cmd/
package main

import (
	"github.com/folioshop/storefront/cmd"
	"github.com/folioshop/storefront/libs/logging"

	// pull in the subcommands, setup code is in init
	_ "github.com/folioshop/storefront/cmd/account"
	_ "github.com/folioshop/storefront/cmd/checkout"
	_ "github.com/folioshop/storefront/cmd/shop"
)

var (
	// variables will be overwritten at build time
	version   string
	commit    string
	buildTime string
)

func main() {
	defer func() {
		if logging.Writer != nil {
			_ = logging.Writer.Close()
		}
	}()
	cmd.Execute(version, commit, buildTime)
}
