package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simas-gestao/simas/internal/restore"
	"github.com/simas-gestao/simas/internal/session"
)

var restoreUser string

var restoreCmd = &cobra.Command{
	Use:   "restore <id-log>",
	Short: "Undo the change recorded by an audit log entry",
	Long: `Applies the inverse of the audit entry <id-log> and records a RESTAURAR
entry attributed to --user. The user acts with the admin role.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreUser == "" {
			return fmt.Errorf("--user is required")
		}
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		sess := session.Session{UserID: restoreUser, Role: session.RoleAdmin}
		res, err := restore.NewEngine(rt.entities, rt.logger).Restore(cmd.Context(), sess, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreUser, "user", "", "user id recorded in the audit log")
	rootCmd.AddCommand(restoreCmd)
}
