package main // Entry point package

import (
	"log" // fatal startup errors before the structured logger exists
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "farm-monitor",
		Short:        "Farm monitoring web backend",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Prepare the database",
	}
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate every table, then seed the roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSeeder(cmd.Context(), func(a *app) error { return a.seeder.Reset(cmd.Context()) })
		},
	}
	staticCmd := &cobra.Command{
		Use:   "static",
		Short: "Load the demo data set and the bundled spreadsheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSeeder(cmd.Context(), func(a *app) error { return a.seeder.Static(cmd.Context()) })
		},
	}
	initCmd.AddCommand(resetCmd, staticCmd)

	rootCmd.AddCommand(serveCmd, initCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
