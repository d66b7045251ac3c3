package diag

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ValentinKolb/keel/cmd/util"
	"github.com/ValentinKolb/keel/lib/index"
	"github.com/ValentinKolb/keel/lib/logging"
	"github.com/ValentinKolb/keel/lib/workflow"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	dataFile *util.DataFile

	// DiagCommands represents the diag command group
	DiagCommands = &cobra.Command{
		Use:               "diag",
		Short:             "Inspect and repair the derived state of a data file",
		PersistentPreRunE: setupDiag,
	}

	// indexCmd represents the index reconciliation command
	indexCmd = &cobra.Command{
		Use:   "index [name]",
		Short: "Reconcile the secondary indices against the entity records",
		Long:  util.WrapString("Compares every built-in index (or only the named one) against the entity records and reports missing and phantom entries. With --apply the findings are corrected and the data file is saved."),
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIndexDiag,
	}

	// linksCmd represents the link graph reconciliation command
	linksCmd = &cobra.Command{
		Use:   "links",
		Short: "Reconcile the relationship graph",
		Long:  util.WrapString("Checks the canonical link records, reverse-lookup sets and uniqueness markers against each other and reports any drift. With --apply the findings are corrected and the data file is saved."),
		Args:  cobra.NoArgs,
		RunE:  runLinksDiag,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands
	DiagCommands.AddCommand(indexCmd)
	DiagCommands.AddCommand(linksCmd)

	// Add Flags
	key := "data"
	DiagCommands.PersistentFlags().String(key, "keel.db", util.WrapString("Path of the data file to inspect"))
	key = "log-level"
	DiagCommands.PersistentFlags().String(key, "warning", util.WrapString("Log level (debug, info, warning, error)"))
	key = "apply"
	DiagCommands.PersistentFlags().Bool(key, false, util.WrapString("Apply the repairs instead of only reporting them"))
	key = "metrics"
	DiagCommands.PersistentFlags().Bool(key, false, util.WrapString("Print the collected metrics in Prometheus text format after the run"))
}

// setupDiag binds the flags and opens the configured data file
func setupDiag(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	logging.InitLoggers(viper.GetString("log-level"))

	df, err := util.OpenData()
	if err != nil {
		return err
	}
	dataFile = df
	return nil
}

func runIndexDiag(cmd *cobra.Command, args []string) error {
	svc := workflow.NewService(dataFile.Store())
	apply := viper.GetBool("apply")

	defs := index.Builtin()
	if len(args) == 1 {
		defs = nil
		for _, def := range index.Builtin() {
			if def.Name == args[0] {
				defs = append(defs, def)
			}
		}
		if len(defs) == 0 {
			return fmt.Errorf("unknown index %q", args[0])
		}
	}

	clean := true
	for _, def := range defs {
		report, err := svc.Index().Reconcile(def)
		if err != nil {
			return err
		}
		if !report.Clean() {
			clean = false
		}
		if err := printReport(fmt.Sprintf("%s/%s", def.EntityType, def.Name), report); err != nil {
			return err
		}

		counts, err := svc.Index().Repair(def, apply)
		if err != nil {
			return err
		}
		if apply {
			fmt.Printf("repaired: %d added, %d removed\n", counts.Added, counts.Removed)
		} else {
			fmt.Printf("would repair: %d to add, %d to remove\n", counts.Added, counts.Removed)
		}
	}

	if apply && !clean {
		if err := dataFile.Save(); err != nil {
			return err
		}
	}

	printMetrics()
	return nil
}

func runLinksDiag(cmd *cobra.Command, _ []string) error {
	svc := workflow.NewService(dataFile.Store())
	apply := viper.GetBool("apply")

	report, err := svc.Graph().Reconcile()
	if err != nil {
		return err
	}
	if err := printReport("links", report); err != nil {
		return err
	}

	counts, err := svc.Graph().Repair(apply)
	if err != nil {
		return err
	}
	if apply {
		fmt.Printf("repaired: %d added, %d removed\n", counts.Added, counts.Removed)
	} else {
		fmt.Printf("would repair: %d to add, %d to remove\n", counts.Added, counts.Removed)
	}

	if apply && !report.Clean() {
		if err := dataFile.Save(); err != nil {
			return err
		}
	}

	printMetrics()
	return nil
}

// printReport prints a reconciliation report as indented JSON
func printReport(name string, report interface{}) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s:\n%s\n", name, data)
	return nil
}

// printMetrics prints the collected counters if --metrics is set
func printMetrics() {
	if viper.GetBool("metrics") {
		metrics.WritePrometheus(os.Stdout, false)
	}
}
