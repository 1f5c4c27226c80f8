package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AshkanYarmoradi/go-strand/adapters"
	"github.com/AshkanYarmoradi/go-strand/cli/styles"
)

// NewSagasCommand creates the sagas command group
func NewSagasCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sagas",
		Short: "Inspect saga instances",
	}

	cmd.AddCommand(newSagasListCommand())
	cmd.AddCommand(newSagasShowCommand())

	return cmd
}

func newSagasListCommand() *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saga instances",
		Long: `List saga instances from the instance store, newest first.

Filter by status with --status (running, waiting_approval,
compensating, completed, failed).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			adapter, err := openAdapter(cfg)
			if err != nil {
				return err
			}
			defer adapter.Close()

			var statuses []adapters.SagaStatus
			if statusFilter != "" {
				for _, s := range strings.Split(statusFilter, ",") {
					statuses = append(statuses, adapters.SagaStatus(strings.TrimSpace(s)))
				}
			}

			instances, err := adapter.FindByStatus(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			if len(instances) == 0 {
				fmt.Println(styles.Muted.Render("No saga instances found."))
				return nil
			}

			fmt.Println(styles.Title.Render("Saga Instances"))
			for _, inst := range instances {
				fmt.Printf("  %s %s  %s  %s  step %d  %s\n",
					styles.IconDot,
					styles.Highlight.Render(inst.ID),
					styles.Normal.Render(inst.SagaName),
					styles.RenderSagaStatus(inst.Status),
					inst.CurrentStep,
					styles.Dim.Render(inst.StartedAt.Format("2006-01-02 15:04:05")),
				)
			}
			fmt.Println()
			fmt.Println(styles.Muted.Render(fmt.Sprintf("%d instance(s)", len(instances))))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter")

	return cmd
}

func newSagasShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <instance-id>",
		Short: "Show one saga instance with its step history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceID, err := requireArg(cmd, args, 0, "instance-id")
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			adapter, err := openAdapter(cfg)
			if err != nil {
				return err
			}
			defer adapter.Close()

			instance, err := adapter.Load(cmd.Context(), instanceID)
			if err != nil {
				return err
			}

			if asJSON {
				out, err := json.MarshalIndent(instance, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Println(styles.Title.Render("Saga Instance"))
			fmt.Println(styles.FormatKeyValue("ID", instance.ID))
			fmt.Println(styles.FormatKeyValue("Saga", fmt.Sprintf("%s (v%d)", instance.SagaName, instance.SagaVersion)))
			fmt.Println(styles.FormatKeyValue("Tenant", instance.TenantID))
			fmt.Println(styles.FormatKeyValue("Status", styles.RenderSagaStatus(instance.Status)))
			fmt.Println(styles.FormatKeyValue("Current Step", fmt.Sprintf("%d", instance.CurrentStep)))
			fmt.Println(styles.FormatKeyValue("Trigger Event", instance.TriggerEventID))
			if instance.CorrelationID != "" {
				fmt.Println(styles.FormatKeyValue("Correlation", instance.CorrelationID))
			}
			fmt.Println(styles.FormatKeyValue("Started", instance.StartedAt.Format("2006-01-02 15:04:05")))
			fmt.Println(styles.FormatKeyValue("Updated", instance.UpdatedAt.Format("2006-01-02 15:04:05")))

			if len(instance.StepResults) > 0 {
				fmt.Println()
				fmt.Println(styles.Subtitle.Render("Step History"))
				for _, r := range instance.StepResults {
					line := fmt.Sprintf("  %s %s", styles.RenderStepStatus(r.Status), styles.Normal.Render(r.StepName))
					if r.DecidedBy != "" {
						line += styles.Muted.Render("  decided by " + r.DecidedBy)
					}
					if r.Error != "" {
						line += styles.ErrorStyle.Render("  " + r.Error)
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw instance as JSON")

	return cmd
}
