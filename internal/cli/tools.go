package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fariz/warden/pkg/coretools"
	"github.com/fariz/warden/pkg/model"
	"github.com/fariz/warden/pkg/toolexec"
)

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print the schemas advertised to the model")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	registry := toolexec.NewRegistry()
	if err := coretools.Register(registry); err != nil {
		return err
	}

	if toolsJSON {
		data, err := json.MarshalIndent(model.SchemasFrom(registry), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	for _, def := range registry.Definitions() {
		marker := " "
		if def.Destructive {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-16s %s\n", marker, def.Name, def.Description)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\n* destructive, may require confirmation")
	return nil
}
