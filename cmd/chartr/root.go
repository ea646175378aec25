package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chartr-dev/chartr/internal/chartr/config"
	"github.com/chartr-dev/chartr/internal/chartr/logger"
)

var (
	cfgFile string
	Version = "v0.1"
	rootCmd = &cobra.Command{
		Use:   "chartr",
		Short: "chartr - clinical document ingestion and query",
		Long:  "chartr loads C-CDA clinical documents into a local SQL store and answers questions about the record.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
			} else {
				viper.SetConfigFile("config.yaml")
			}
			if err := viper.ReadInConfig(); err != nil {
				// Config is optional; defaults cover the single-user case.
				fmt.Fprintf(os.Stderr, "Warning: could not read config (%v). Using defaults and flags.\n", err)
			}
			if err := config.Load(viper.GetViper()); err != nil {
				return err
			}
			if err := logger.InitLogger(config.Get().Logging.Level); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize()
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
