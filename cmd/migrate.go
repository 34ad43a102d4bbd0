package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		tables, err := rt.db.Tables(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date at %s (%d tables)\n", rt.db.Path(), len(tables))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
