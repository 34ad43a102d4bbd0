package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simas-gestao/simas/internal/workflow"
)

var (
	deriveStatus string
	deriveTipo   string
	deriveDate   string
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Show the derived fields and kanban column for a request",
	RunE: func(cmd *cobra.Command, args []string) error {
		tipo := workflow.TipoPedido(deriveTipo)
		if canonical, ok := workflow.CanonicalTipoPedido(deriveTipo); ok {
			tipo = canonical
		}
		if deriveDate != "" {
			if _, err := workflow.ParseDate(deriveDate); err != nil {
				return fmt.Errorf("invalid --data %q: expected YYYY-MM-DD", deriveDate)
			}
		}

		meta := workflow.DeriveMetadata(workflow.Input{
			StatusPedido:    workflow.StatusPedido(deriveStatus),
			TipoPedido:      tipo,
			DataAgendamento: deriveDate,
		})
		bucket := workflow.Classify(workflow.BucketInput{
			StatusPedido:      workflow.StatusPedido(deriveStatus),
			StatusAgendamento: meta.StatusAgendamento,
			DataAgendamento:   deriveDate,
		}, time.Now())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			workflow.Metadata
			Bucket workflow.Bucket `json:"bucket"`
		}{meta, bucket})
	},
}

func init() {
	deriveCmd.Flags().StringVar(&deriveStatus, "status", string(workflow.StatusAguardando), "STATUS_PEDIDO")
	deriveCmd.Flags().StringVar(&deriveTipo, "tipo", "", "TIPO_PEDIDO")
	deriveCmd.Flags().StringVar(&deriveDate, "data", "", "DATA_AGENDAMENTO (YYYY-MM-DD)")
	rootCmd.AddCommand(deriveCmd)
}
