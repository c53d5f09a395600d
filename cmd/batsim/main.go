package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/viz"
)

var (
	cfg        = config.DefaultConfig()
	configFile string
	logLevel   string
	theme      string
	log        = logrus.New()

	// run flags
	preset     string
	paramsFile string
	overrides  []string
	expFile    string
	mode       string
	value      string
	duration   float64
	dt         float64
	limits     []string
	rtol       float64
	atol       float64
	linear     string
	homotopy   int
	live       bool
	noSave     bool
	observable string
	pngPath    string

	// sweep flags
	axes     []string
	workers  int
	best     string
	maximize bool

	outPath string
)

// main registers the batsim commands and exits with status 1 when the
// command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "batsim",
		Short:         "lithium-ion cell simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data", ".batsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warning, error)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.ThemeDefault.Name, fmt.Sprintf("color theme %v", viz.ThemeNames()))

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run an experiment",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExperiment,
	}
	addModelFlags(runCmd)
	addExperimentFlags(runCmd)
	runCmd.Flags().BoolVar(&live, "live", false, "show live progress")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().StringVar(&observable, "plot", "voltage_V", "observable to plot after the run (empty to skip)")
	runCmd.Flags().StringVar(&pngPath, "png", "", "write a chart of the plotted observable")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run an experiment over a parameter grid",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addModelFlags(sweepCmd)
	addExperimentFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&axes, "axis", nil, "swept parameter domain.key=lo:hi:n or domain.key=v1,v2 (repeatable)")
	sweepCmd.Flags().IntVar(&workers, "workers", 1, "parallel sweep points")
	sweepCmd.Flags().StringVar(&best, "best", "", "report the point that minimizes this metric")
	sweepCmd.Flags().BoolVar(&maximize, "maximize", false, "maximize the --best metric instead")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run every run of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "summarize a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().StringVar(&observable, "plot", "voltage_V", "observable to plot (empty to skip)")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id] [observable...]",
		Short: "plot observables of a stored run",
		Args:  cobra.MinimumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngPath, "png", "", "write the chart to a file instead of the terminal")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	bandwidthCmd := &cobra.Command{
		Use:   "bandwidth [model]",
		Short: "compare declared and probed Jacobian bandwidths",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showBandwidth,
	}
	addModelFlags(bandwidthCmd)
	bandwidthCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the sparsity pattern as CSV")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	paramsCmd := &cobra.Command{
		Use:   "params [model]",
		Short: "print resolved cell parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showParams,
	}
	addModelFlags(paramsCmd)

	rootCmd.AddCommand(runCmd, sweepCmd, scenarioCmd, listCmd, showCmd, plotCmd, exportCmd, bandwidthCmd, presetsCmd, paramsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) error {
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("data") {
			loaded.DataDir = cfg.DataDir
		}
		cfg = loaded
		if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
			logLevel = cfg.LogLevel
		}
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	viz.SetTheme(theme)
	return nil
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "parameter preset (default from config)")
	cmd.Flags().StringVar(&paramsFile, "params", "", "parameter file (yaml or toml)")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "override a parameter, domain.key=value (repeatable)")
}

func addExperimentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&expFile, "experiment", "", "experiment file (yaml)")
	cmd.Flags().StringVar(&mode, "mode", "current_C", "single step mode: current_A, current_C, voltage_V, power_W")
	cmd.Flags().StringVar(&value, "value", "-1", "single step target, a number or an expression in t")
	cmd.Flags().Float64Var(&duration, "time", 3600, "single step duration [s]")
	cmd.Flags().Float64Var(&dt, "dt", 60, "single step sample interval [s]")
	cmd.Flags().StringArrayVar(&limits, "limit", nil, "single step limit, observable=threshold (repeatable)")
	cmd.Flags().Float64Var(&rtol, "rtol", 0, "relative tolerance (default from config)")
	cmd.Flags().Float64Var(&atol, "atol", 0, "absolute tolerance (default from config)")
	cmd.Flags().StringVar(&linear, "linear-solver", "", "band or dense (default from config)")
	cmd.Flags().IntVar(&homotopy, "homotopy", -1, "homotopy retries for failed voltage steps (default from config)")
}
