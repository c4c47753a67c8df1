package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/climatehealth/healthrisk/cmd/cli"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

var logMode string

var rootCmd = &cobra.Command{
	Use:   "healthrisk",
	Short: "Climate health risk prediction service",
	Long:  `Predicts personal health risks from environmental, health profile and genomic data`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch logMode {
		case "debug", "pretty", "info", "prod", "test":
			logger.InitWithMode(logger.LogMode(logMode))
		default:
			logger.InitWithMode(logger.LogModePretty)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cli.RunServer()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction API server",
	Run: func(cmd *cobra.Command, args []string) {
		cli.RunServer()
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the health risk model",
	Run: func(cmd *cobra.Command, args []string) {
		crossValidate, _ := cmd.Flags().GetBool("cross-validate")
		synthetic, _ := cmd.Flags().GetBool("synthetic")
		cli.RunTrain(crossValidate, synthetic)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		down, _ := cmd.Flags().GetBool("down")
		cli.RunMigrate(down)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "pretty", "Log mode: debug, pretty, info, prod, test")

	trainCmd.Flags().Bool("cross-validate", false, "Run k-fold cross-validation before the final fit")
	trainCmd.Flags().Bool("synthetic", false, "Train on generated data instead of the database")
	migrateCmd.Flags().Bool("down", false, "Run down migrations")
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
