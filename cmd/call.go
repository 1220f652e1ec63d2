package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcpfleet/mcpfleet"
)

var (
	callArgs    string
	callTimeout float64
)

var callCmd = &cobra.Command{
	Use:   "call <server> <tool>",
	Short: "Invoke one tool and print its result",
	Long: `Starts the configured servers, invokes the named tool once with the
given JSON arguments, prints the result, and shuts the fleet down.

The exit code is non-zero when the call fails for any reason.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arguments map[string]any

		if callArgs != "" {
			if err := json.Unmarshal([]byte(callArgs), &arguments); err != nil {
				return fmt.Errorf("parse --args: %w", err)
			}
		}

		mgr, err := newManager()
		if err != nil {
			return err
		}

		stop := watchSignals(mgr)
		defer stop()

		if err := mgr.Start(cmd.Context()); err != nil {
			return err
		}
		defer func() { _ = mgr.Shutdown(context.Background()) }()

		req := mcpfleet.ToolCallRequest{
			Server:    args[0],
			Tool:      args[1],
			Arguments: arguments,
		}

		if callTimeout > 0 {
			req.Timeout = time.Duration(callTimeout * float64(time.Second))
		}

		res := mgr.Invoke(cmd.Context(), req)
		if !res.OK() {
			return fmt.Errorf("%s: %s", color.RedString(string(res.Failure.Kind)), res.Failure.Message)
		}

		fmt.Println(res.Text())
		fmt.Fprintln(cmd.ErrOrStderr(),
			color.GreenString("ok"), "call", res.CallID, "in", res.Duration.Round(time.Millisecond))

		return nil
	},
}

func init() {
	callCmd.Flags().StringVarP(&callArgs, "args", "a", "", "Tool arguments as a JSON object")
	callCmd.Flags().Float64Var(&callTimeout, "call-timeout", 0,
		"Per-call timeout in seconds (0 uses the server or global default)")

	rootCmd.AddCommand(callCmd)
}
