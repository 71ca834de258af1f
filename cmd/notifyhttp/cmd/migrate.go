package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyhttp/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the request log table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		c := currentConfig()
		sink, err := openStore(ctx, c.Store)
		if err != nil {
			return err
		}
		defer sink.Close()

		migrator, ok := sink.(store.Migrator)
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Driver %s has no schema to migrate\n", c.Store.Driver)
			return nil
		}
		if err := migrator.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Request log schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
