// @title                      Influencer Studio API
// @version                    1.0
// @description                Credit ledger and generation accounting for the AI influencer studio.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT.
package main

import (
	"os"

	"github.com/influencerlab/studio/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
