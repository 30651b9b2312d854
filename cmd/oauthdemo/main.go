// Package main is the entry point for the oauthdemo command
package main

import (
	"os"

	"github.com/legit-games/oauth2-in-action/cmd/oauthdemo/app"
	"github.com/legit-games/oauth2-in-action/logger"
)

func main() {
	defer logger.Sync()

	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorw("command failed", "error", err)
		os.Exit(1)
	}
}
