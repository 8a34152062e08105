package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/jkaninda/mealplanner/internal/config"
	"github.com/jkaninda/mealplanner/internal/credentials"
	"github.com/jkaninda/mealplanner/internal/secretstore"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Resolve the database credentials and show where each field came from",
	Long: `Runs the credential chain (secret store, environment, defaults) exactly as
serve does and prints the provider that supplied each field. The password is
never printed.`,
	RunE: runCredentials,
}

func init() {
	credentialsCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to config file")
}

func runCredentials(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var awsCfg aws.Config
	if cfg.Credentials.SecretStore == secretstore.BackendAWS {
		if awsCfg, err = loadAWSConfig(ctx, cfg); err != nil {
			return err
		}
	}

	creds, report, err := resolveCredentials(ctx, cfg, awsCfg, nil, logger)
	if err != nil {
		return err
	}
	return printCredentialsReport(os.Stdout, creds, report)
}

// printCredentialsReport writes one line per field plus the redacted record.
func printCredentialsReport(w io.Writer, creds credentials.Credentials, report *credentials.Report) error {
	for _, f := range credentials.Fields {
		src := "unresolved"
		if k, ok := report.Source(f); ok {
			src = k.String()
		}
		if _, err := fmt.Fprintf(w, "%-9s %s\n", f, src); err != nil {
			return err
		}
	}
	if report != nil && report.SecretErr != nil {
		if _, err := fmt.Fprintf(w, "secret store: %v\n", report.SecretErr); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "resolved: %s\n", creds)
	return err
}
