/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/taskmanager/apiserver/config"
	"github.com/taskmanager/apiserver/internal/server"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the ADMIN and BASIC roles and the bootstrap administrator",
	Long: `Creates the ADMIN and BASIC roles and, when ADMIN_PASSWORD is set, the
administrator account named by ADMIN_USERNAME. Existing rows are left alone,
so the command is safe to re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := server.Seed(cmd.Context(), config.LoadConfig()); err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
