package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blocksim/blocksim/model"
	"github.com/blocksim/blocksim/model/trace"

	// Registers the default domain provider.
	_ "github.com/blocksim/blocksim/model/grid"
)

var (
	configPath string // Path to a YAML model file
	seed       int64  // Seed for simulation
	events     int    // Number of events to simulate
	traceLevel string // Contraction trace level
	logLevel   string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "blocksim",
	Short: "Block-composed detector response models",
}

// runCmd simulates events from the model, annotates them and evaluates
// their differential rates.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate events and evaluate their differential rates",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		mf, err := loadModel(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		report, err := runModel(mf)
		if err != nil {
			logrus.Fatalf("run failed: %v", err)
		}
		report.Print(os.Stdout)
		logrus.Info("Run complete.")
	},
}

// describeCmd prints the merged configuration of the model.
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the merged model configuration",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		mf, err := loadModel(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := describeModel(mf, os.Stdout); err != nil {
			logrus.Fatalf("describe failed: %v", err)
		}
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadModel reads --config (or the defaults) and applies flags the user set
// explicitly. Unset flags never overwrite file values.
func loadModel(cmd *cobra.Command) (*ModelFile, error) {
	mf := DefaultModelFile()
	if configPath != "" {
		var err error
		if mf, err = LoadModelFile(configPath); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		mf.Seed = seed
	}
	if flags.Changed("events") {
		mf.Events = events
	}
	if flags.Changed("trace") {
		mf.Trace = trace.TraceLevel(traceLevel)
	}
	if err := mf.Validate(); err != nil {
		return nil, err
	}
	return mf, nil
}

// runModel builds the source, simulates, sets the simulated events as data
// and evaluates every rate.
func runModel(mf *ModelFile) (*RunReport, error) {
	src, err := mf.NewSource()
	if err != nil {
		return nil, err
	}
	p := model.Params(mf.Params)
	logrus.Infof("Simulating %d events (seed=%d, batch_size=%d, max_dim_size=%d)",
		mf.Events, mf.Seed, mf.BatchSize, mf.MaxDimSize)

	start := time.Now()
	sim, err := src.Simulate(mf.Events, p, nil)
	if err != nil {
		return nil, err
	}
	if sim.Len() == 0 {
		return nil, fmt.Errorf("simulation kept none of %d events", mf.Events)
	}
	if err := src.SetData(sim); err != nil {
		return nil, err
	}
	rates, err := src.DifferentialRates(p)
	if err != nil {
		return nil, err
	}
	return newRunReport(mf.Events, src.NBatches(), rates, src.Trace(), time.Since(start)), nil
}

// Description is the YAML form of a merged configuration.
type Description struct {
	Blocks                []string           `yaml:"blocks"`
	InitialDimensions     []string           `yaml:"initial_dimensions"`
	InnerDimensions       []string           `yaml:"inner_dimensions"`
	FinalDimensions       []string           `yaml:"final_dimensions"`
	ModelFunctions        []string           `yaml:"model_functions"`
	SpecialModelFunctions []string           `yaml:"special_model_functions,omitempty"`
	FrozenDataMethods     []string           `yaml:"frozen_data_methods,omitempty"`
	ArrayColumns          map[string]int     `yaml:"array_columns,omitempty"`
	StaticAttributes      map[string]any     `yaml:"static_attributes,omitempty"`
	Defaults              map[string]float64 `yaml:"defaults"`
}

func describeModel(mf *ModelFile, w io.Writer) error {
	src, err := mf.NewSource()
	if err != nil {
		return err
	}
	c := src.Configuration()
	d := Description{
		InitialDimensions:     c.InitialDimensions(),
		InnerDimensions:       c.InnerDimensions(),
		FinalDimensions:       c.FinalDimensions(),
		ModelFunctions:        c.DataMethods(),
		SpecialModelFunctions: c.SpecialDataMethods(),
		FrozenDataMethods:     c.FrozenDataMethods(),
		StaticAttributes:      c.StaticAttributes(),
		Defaults:              c.Defaults(),
	}
	for _, b := range src.Blocks() {
		d.Blocks = append(d.Blocks, b.Spec().Name)
	}
	for _, col := range c.ArrayColumns() {
		if d.ArrayColumns == nil {
			d.ArrayColumns = make(map[string]int)
		}
		d.ArrayColumns[col.Name] = col.Length
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, describeCmd} {
		c.Flags().StringVar(&configPath, "config", "", "Path to a YAML model file (defaults are used when empty)")
		c.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	}
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for simulation (overrides the model file when set)")
	runCmd.Flags().IntVar(&events, "events", 1000, "Number of events to simulate (overrides the model file when set)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "", "Contraction trace level: none or contractions")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(describeCmd)
}
