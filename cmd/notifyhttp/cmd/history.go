package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyhttp/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent requests from the request log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		c := currentConfig()
		sink, err := openStore(ctx, c.Store)
		if err != nil {
			return err
		}
		defer sink.Close()

		reader, ok := sink.(store.RequestLogReader)
		if !ok {
			return fmt.Errorf("driver %s does not support reading history", c.Store.Driver)
		}

		entries, err := reader.List(ctx, historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if IsJSONOutput() {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if len(entries) == 0 {
			fmt.Fprintln(out, "No requests found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LOGGED AT\tTRIGGER\tMETHOD\tURL\tSTATUS\tATTEMPT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
				e.LoggedAt.Format(time.RFC3339),
				e.Trigger,
				e.Method,
				e.URL,
				e.StatusCode,
				e.Attempt,
			)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of rows to show")
}
