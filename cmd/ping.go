package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pingTimeout float64

var pingCmd = &cobra.Command{
	Use:   "ping [server...]",
	Short: "Round-trip a protocol ping against servers",
	Long: `Starts the configured servers and pings each named server (or every
server when no names are given), printing the observed latency.`,
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

		timeout := 5 * time.Second
		if pingTimeout > 0 {
			timeout = time.Duration(pingTimeout * float64(time.Second))
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVER\tSTATUS\tLATENCY")

		failed := 0

		for _, name := range names {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			latency, err := mgr.Ping(ctx, name)

			cancel()

			if err != nil {
				failed++

				fmt.Fprintf(w, "%s\t%s\t-\n", name, color.RedString("failed"))

				continue
			}

			fmt.Fprintf(w, "%s\t%s\t%s\n",
				name, color.GreenString("ok"), latency.Round(time.Microsecond))
		}

		if err := w.Flush(); err != nil {
			return err
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d servers failed to respond", failed, len(names))
		}

		return nil
	},
}

func init() {
	pingCmd.Flags().Float64Var(&pingTimeout, "ping-timeout", 0,
		"Per-server ping timeout in seconds (default 5)")

	rootCmd.AddCommand(pingCmd)
}
