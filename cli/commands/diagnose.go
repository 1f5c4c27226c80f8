package commands

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/AshkanYarmoradi/go-strand/cli/config"
	"github.com/AshkanYarmoradi/go-strand/cli/styles"
)

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run diagnostic checks",
		Long: `Run diagnostic checks on your strand setup.

This command verifies:
  • Configuration file validity
  • Database connectivity
  • Store schema existence
  • Go runtime`,
		Aliases: []string{"diag", "doctor"},
		RunE:    runDiagnose,
	}

	return cmd
}

// DiagnosticCheck is one named check.
type DiagnosticCheck struct {
	Name  string
	Check func() CheckResult
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Passed  bool
	Message string
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(styles.Title.Render("Running Diagnostics"))
	fmt.Println()

	checks := []DiagnosticCheck{
		{Name: "Go Runtime", Check: checkGoRuntime},
		{Name: "Configuration", Check: checkConfiguration},
		{Name: "Database Connection", Check: checkDatabaseConnection},
		{Name: "Store Schema", Check: checkStoreSchema},
	}

	allPassed := true
	for _, check := range checks {
		fmt.Printf("  %s Checking %s... ", styles.IconPending, check.Name)

		result := check.Check()
		if result.Passed {
			fmt.Println(styles.SuccessStyle.Render(styles.IconSuccess) + " " + styles.Muted.Render(result.Message))
		} else {
			fmt.Println(styles.ErrorStyle.Render(styles.IconError) + " " + styles.Normal.Render(result.Message))
			allPassed = false
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println(styles.FormatError("Some checks failed"))
		os.Exit(1)
	}
	fmt.Println(styles.FormatSuccess("All checks passed"))
	return nil
}

func checkGoRuntime() CheckResult {
	return CheckResult{
		Passed:  true,
		Message: fmt.Sprintf("%s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

func checkConfiguration() CheckResult {
	cfg, err := loadConfig()
	if err != nil {
		return CheckResult{Passed: false, Message: err.Error()}
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return CheckResult{Passed: false, Message: problems[0]}
	}
	return CheckResult{Passed: true, Message: config.ConfigFileName + " valid"}
}

func checkDatabaseConnection() CheckResult {
	cfg, err := loadConfig()
	if err != nil {
		return CheckResult{Passed: false, Message: err.Error()}
	}

	adapter, err := openAdapter(cfg)
	if err != nil {
		return CheckResult{Passed: false, Message: err.Error()}
	}
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := adapter.Ping(ctx); err != nil {
		return CheckResult{Passed: false, Message: err.Error()}
	}
	return CheckResult{Passed: true, Message: "connected"}
}

func checkStoreSchema() CheckResult {
	cfg, err := loadConfig()
	if err != nil {
		return CheckResult{Passed: false, Message: err.Error()}
	}

	adapter, err := openAdapter(cfg)
	if err != nil {
		return CheckResult{Passed: false, Message: err.Error()}
	}
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var exists bool
	err = adapter.DB().QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = 'saga_instances'
		)`, adapter.Schema()).Scan(&exists)
	if err != nil {
		return CheckResult{Passed: false, Message: err.Error()}
	}
	if !exists {
		return CheckResult{Passed: false, Message: "saga_instances table missing; call Initialize()"}
	}
	return CheckResult{Passed: true, Message: "schema " + adapter.Schema() + " present"}
}
