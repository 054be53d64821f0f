package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fariz/warden/pkg/toolexec"
)

var (
	callParams    []string
	callParamJSON string
	callActor     string
	callYes       bool
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Run one tool call through the full pipeline",
	Long: `Run a single tool call through validation, security checks, rate
limiting, and confirmation, then execute it against the workspace.

Parameters are given as repeated --param key=value flags or as a single
--json object.`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringArrayVar(&callParams, "param", nil, "tool parameter as key=value (repeatable)")
	callCmd.Flags().StringVar(&callParamJSON, "json", "", "tool parameters as a JSON object")
	callCmd.Flags().StringVar(&callActor, "actor", "", "caller identity used for rate limiting and audit")
	callCmd.Flags().BoolVar(&callYes, "yes", false, "approve destructive actions without prompting")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	params, err := parseParams()
	if err != nil {
		return err
	}

	var handler toolexec.ConfirmationHandler
	if callYes {
		handler = &toolexec.StaticConfirmationHandler{
			Response: toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeApproved, Reason: "approved by --yes"},
		}
	} else {
		handler = &TerminalConfirmationHandler{In: os.Stdin, Out: cmd.OutOrStdout()}
	}

	app, err := newApp(handler)
	if err != nil {
		return err
	}
	defer app.Close()

	inv, err := app.Executor.Registry().CreateInvocation(toolexec.ToolCall{
		Name:       args[0],
		Parameters: params,
	})
	if err != nil {
		return err
	}

	result := app.Executor.Run(cmd.Context(), inv, &toolexec.ExecutionContext{Actor: callActor})

	fmt.Fprintln(cmd.OutOrStdout(), result.ReturnDisplay)
	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("tool call failed: %s", result.Error)
		}
		// Denied or cancelled confirmation: reported, not an error.
		return nil
	}
	return nil
}

// parseParams merges --json and --param values; --param wins on conflicts
func parseParams() (map[string]interface{}, error) {
	params := make(map[string]interface{})

	if callParamJSON != "" {
		if err := json.Unmarshal([]byte(callParamJSON), &params); err != nil {
			return nil, fmt.Errorf("invalid --json value: %w", err)
		}
	}

	for _, p := range callParams {
		key, value, found := strings.Cut(p, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", p)
		}
		params[key] = value
	}

	return params, nil
}
