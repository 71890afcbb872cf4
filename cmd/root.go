// Package cmd provides CLI commands for doiregistry.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lehigh-university-libraries/doiregistry/config"
)

var (
	cfgFile string
	cfg     config.Config
)

func setupLogger() {
	logLevel := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "INFO"
	}

	var level slog.Level
	switch logLevel {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)

	slog.SetDefault(logger)
}

var rootCmd = &cobra.Command{
	Use:   "doiregistry",
	Short: "Register DOIs and manage their metadata",
	Long: `doiregistry registers DOIs, validates and converts their metadata, and
computes relation and usage aggregates from an event log.

Metadata may be DataCite XML (kernel-3 or kernel-4), DataCite JSON, BibTeX,
RIS, citeproc JSON, schema.org JSON-LD or Crossref XML.

Examples:
  doiregistry convert bibtex -i record.xml
  doiregistry validate --target findable -i datacite.json
  doiregistry suffix 10.5072 --count 5
  doiregistry serve --store sqlite --store-path doi.db`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		slog.Debug("Loaded configuration", "file", viper.ConfigFileUsed(), "store", cfg.Store.Driver)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	setupLogger()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./doiregistry.yaml)")
	rootCmd.PersistentFlags().String("store", "", "store driver: memory, sqlite or postgres")
	rootCmd.PersistentFlags().String("store-path", "", "sqlite database file")
	rootCmd.PersistentFlags().String("store-dsn", "", "postgres connection string")
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store-path"))
	_ = viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("store-dsn"))

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(suffixCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(vocabularyCmd)
}
