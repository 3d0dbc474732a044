package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "farmtrace/docs" // swagger docs

	"farmtrace/internal/config"
	"farmtrace/internal/logger"
)

// @title farmtrace API
// @version 1.0
// @description Farm-to-consumer produce traceability with custodial wallets and ledger mirroring.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
// @securityDefinitions.apikey AdminKey
// @in header
// @name X-API-Key
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "farmtrace",
	Short: "Farm-to-consumer produce traceability service",
	Long: `farmtrace records custody of produce batches from farmer to consumer,
keeps a custodial wallet per stakeholder and mirrors every record onto a
smart contract ledger when one is configured.`,
	SilenceUsage: true,
}

// setup loads configuration and the process logger shared by all commands.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel), nil
}
