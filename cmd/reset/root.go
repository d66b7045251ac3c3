package reset

import (
	"fmt"

	"github.com/ValentinKolb/keel/cmd/util"
	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/logging"
	"github.com/ValentinKolb/keel/lib/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	dataFile *util.DataFile

	// ResetCommands represents the reset command group
	ResetCommands = &cobra.Command{
		Use:               "reset",
		Short:             "Destructively reset data in a data file",
		PersistentPreRunE: setupReset,
	}

	// allCmd represents the full reset command
	allCmd = &cobra.Command{
		Use:   "all [type...]",
		Short: "Delete all entities of the given types (or every type)",
		Long:  util.WrapString("Runs the cascading deletion for every entity of the given types, removing their links, effect markers, index entries and logs as well. With no types given, every entity type is wiped. The whole reset runs in a transaction, so a failure part way through restores the prior state."),
		RunE:  runResetAll,
	}

	// logsCmd represents the log clearing command
	logsCmd = &cobra.Command{
		Use:   "logs [type]",
		Short: "Delete all log entries of one entity type",
		Args:  cobra.ExactArgs(1),
		RunE:  runResetLogs,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands
	ResetCommands.AddCommand(allCmd)
	ResetCommands.AddCommand(logsCmd)

	// Add Flags
	key := "data"
	ResetCommands.PersistentFlags().String(key, "keel.db", util.WrapString("Path of the data file to reset"))
	key = "log-level"
	ResetCommands.PersistentFlags().String(key, "warning", util.WrapString("Log level (debug, info, warning, error)"))
	key = "yes"
	ResetCommands.PersistentFlags().Bool(key, false, util.WrapString("Confirm the destructive operation"))
}

// setupReset binds the flags, checks the confirmation flag and opens the
// configured data file
func setupReset(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if !viper.GetBool("yes") {
		return fmt.Errorf("reset is destructive, re-run with --yes to confirm")
	}

	logging.InitLoggers(viper.GetString("log-level"))

	df, err := util.OpenData()
	if err != nil {
		return err
	}
	dataFile = df
	return nil
}

func runResetAll(cmd *cobra.Command, args []string) error {
	types := make([]entity.Type, 0, len(args))
	for _, arg := range args {
		t, err := entity.ParseType(arg)
		if err != nil {
			return err
		}
		types = append(types, t)
	}

	svc := workflow.NewService(dataFile.Store())
	if err := svc.FullReset(types...); err != nil {
		return err
	}
	if err := dataFile.Save(); err != nil {
		return err
	}

	fmt.Println("reset successfully")
	return nil
}

func runResetLogs(cmd *cobra.Command, args []string) error {
	t, err := entity.ParseType(args[0])
	if err != nil {
		return err
	}

	svc := workflow.NewService(dataFile.Store())
	if err := svc.ClearLogs(t); err != nil {
		return err
	}
	if err := dataFile.Save(); err != nil {
		return err
	}

	fmt.Println("logs cleared successfully")
	return nil
}
