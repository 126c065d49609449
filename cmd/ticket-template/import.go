package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"ticket-template/internal/bundle"
)

var importCmd = &cobra.Command{
	Use:   "import <bundle>",
	Short: "Import a YAML template bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(quietLogs)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := bundle.NewImporter(a.svc).ImportFile(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
