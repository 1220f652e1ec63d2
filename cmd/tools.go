package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [server...]",
	Short: "List the tools exposed by configured servers",
	Long: `Starts the configured servers and prints the tool catalog of each
named server, or of every server when no names are given.`,
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

		names := args
		if len(names) == 0 {
			for _, info := range mgr.Servers() {
				names = append(names, info.Name)
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVER\tTOOL\tDESCRIPTION")

		for _, name := range names {
			tools, err := mgr.Tools(name)
			if err != nil {
				return err
			}

			for _, tool := range tools {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					color.CyanString(name), tool.Name, tool.Description)
			}
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
