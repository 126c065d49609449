package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ticket-template/internal/templates"
)

var templatesJSON bool

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect project templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list <project>",
	Short: "List the templates of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(quietLogs)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.svc.Templates(args[0])
		if err != nil {
			return err
		}
		if templatesJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tARTICLE\tMODE")
		for _, t := range list {
			mode := "manual"
			if t.Automatic() {
				mode = "auto"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.ArticleID, mode)
		}
		return w.Flush()
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <project> <id>",
	Short: "Print one template as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(quietLogs)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.svc.Templates(args[0])
		if err != nil {
			return err
		}
		t, ok := templates.Find(list, args[1])
		if !ok {
			return fmt.Errorf("template %s not found in project %s", args[1], args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	},
}

func init() {
	templatesListCmd.Flags().BoolVar(&templatesJSON, "json", false, "Output as JSON")
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd)
	rootCmd.AddCommand(templatesCmd)
}
