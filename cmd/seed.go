package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/progress"
	"github.com/simas-gestao/simas/internal/session"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yml>",
	Short: "Load lookup data from a YAML file",
	Long: `Loads Pessoa, Vaga, Servidor, Contrato and related records through the
audited create path as the system user. Records whose key already exists
are skipped, so the command can be rerun.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening seed file: %w", err)
		}
		defer f.Close()

		data, err := entity.ParseSeed(f)
		if err != nil {
			return err
		}

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		reporter := progress.NewReporter()
		reporter.Start(data.Total(), "Carga inicial")
		res, err := rt.entities.Seed(cmd.Context(), session.System(), data, reporter.Increment)
		reporter.Finish()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, kind := range entity.SeedOrder {
			if res.Created[kind] == 0 && res.Skipped[kind] == 0 {
				continue
			}
			fmt.Fprintf(out, "%-10s criados: %d  ignorados: %d\n", kind, res.Created[kind], res.Skipped[kind])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
