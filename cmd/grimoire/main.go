package main

import (
	"fmt"
	"os"

	"github.com/siherrmann/grimoire"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "grimoire",
	Short:         "Rulebook question answering with local and web augmented generation",
	Long:          `Grimoire indexes tabletop rulebook PDFs and answers questions with a local model, escalating uncertain answers to a remote model with web context.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, buildCmd, askCmd, historyCmd, cacheCmd, indexCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration, flags override everything else
func loadConfig() (*model.Config, error) {
	config, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	return config, nil
}

// openService connects to the database and loads the models
func openService() (*grimoire.Grimoire, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}

	return grimoire.New(config, dbConfig)
}
