package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcpfleet/mcpfleet"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured servers and their status",
	Long: `Starts every configured server, prints a status table with the
number of tools each one exposes, then shuts the fleet down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		printServers(mgr.Servers())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serversCmd)
}

func printServers(infos []mcpfleet.ServerInfo) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)

	fmt.Fprintln(w, "NAME\tSTATE\tPID\tTOOLS")

	for _, info := range infos {
		pid := "-"
		if info.PID > 0 {
			pid = fmt.Sprintf("%d", info.PID)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			info.Name, colorState(info.State), pid, info.ToolCount)
	}

	_ = w.Flush()
}

func colorState(state mcpfleet.ServerState) string {
	switch state {
	case mcpfleet.ServerReady:
		return color.GreenString(state.String())
	case mcpfleet.ServerFailed:
		return color.RedString(state.String())
	case mcpfleet.ServerStopped:
		return color.YellowString(state.String())
	default:
		return state.String()
	}
}
