package cmd

import "github.com/spf13/cobra"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "simas",
	Short: "Personnel request workflow for municipal HR",
	Long: `SIMAS tracks personnel requests (Atendimentos) from intake to
execution: hiring, promotions, allocations, appointments and
dismissals. Every change to the personnel registry is recorded in an
append-only audit log and can be undone from it.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "simas.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
