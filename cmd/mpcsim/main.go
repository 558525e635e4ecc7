package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/actuator"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/analysis"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/automation"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/config"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/experiment"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/logging"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/optim"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/storage"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string

	dt         float64
	duration   float64
	seed       int64
	integrator string
	controller string

	horizon      int
	step         float64
	qWeight      float64
	rWeight      float64
	warmStart    string
	failSafe     string
	solveTimeout time.Duration
	maxIter      int

	roll, pitch, yaw             float64
	initRoll, initPitch, initYaw float64
	kp, ki, kd                   float64

	canIface string
	logLevel string
	logFile  string

	tuneParams []string
	tuneMetric string

	ensembleRuns   int
	ensembleSpread float64

	scenarioLogLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mpcsim",
		Short: "receding-horizon attitude control lab",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mpcsim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a closed-loop simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addLoopFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run a closed-loop simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addLoopFlags(liveCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [model] [controller1] [controller2] ...",
		Short: "compare controllers on the same scenario",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareControllers,
	}
	addLoopFlags(compareCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune [model]",
		Short: "grid search controller parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tune,
	}
	addLoopFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "name=v1,v2,... or name=lo:hi:n (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "tracking_rms", "metric to minimise")

	horizonCmd := &cobra.Command{
		Use:   "horizon [model]",
		Short: "describe the optimisation problem built for a configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  describeHorizon,
	}
	addLoopFlags(horizonCmd)

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [model]",
		Short: "repeat a run against perturbed plants",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	addLoopFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&ensembleRuns, "runs", 8, "number of members")
	ensembleCmd.Flags().Float64Var(&ensembleSpread, "spread", 0.2, "relative plant parameter spread")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response and command spectrum of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of experiments and store each run",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().StringVar(&scenarioLogLevel, "log-level", "warn", "debug, info, warn or error")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id] [file]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(2),
		RunE:  exportCSV,
	}

	exportPNGCmd := &cobra.Command{
		Use:   "export-png [run_id] [file]",
		Short: "render attitude and control plots to PNG",
		Args:  cobra.ExactArgs(2),
		RunE:  exportPNG,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models := config.ListModels()
			if len(args) == 1 {
				models = args
			}
			for _, m := range models {
				presets := config.ListPresets(m)
				if len(presets) == 0 {
					fmt.Printf("no presets for model: %s\n", m)
					continue
				}
				fmt.Printf("presets for %s:\n", m)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, compareCmd, tuneCmd, horizonCmd, ensembleCmd, analyzeCmd,
		scenarioCmd, listCmd, plotCmd, exportJSONCmd, exportCSVCmd, exportPNGCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addLoopFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.Float64Var(&dt, "dt", def.Dt, "simulation timestep")
	f.Float64Var(&duration, "time", def.Duration, "duration")
	f.Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	f.StringVar(&integrator, "integrator", def.Integrator, "integrator")
	f.StringVar(&controller, "controller", def.Controller, "controller")

	f.IntVar(&horizon, "horizon", def.MPC.Horizon, "prediction horizon N")
	f.Float64Var(&step, "step", def.MPC.Step, "shooting interval h")
	f.Float64Var(&qWeight, "q", def.MPC.Q[0], "state weight (all axes)")
	f.Float64Var(&rWeight, "r", def.MPC.R[0], "control weight (all axes)")
	f.StringVar(&warmStart, "warm-start", string(def.MPC.WarmStart), "warm start policy: initial or previous")
	f.StringVar(&failSafe, "fail-safe", string(def.MPC.FailSafe), "fail-safe: hold_last or zero")
	f.DurationVar(&solveTimeout, "solve-timeout", 0, "per-cycle solve timeout")
	f.IntVar(&maxIter, "max-iter", def.Solver.MaxIter, "solver outer iteration cap")

	f.Float64Var(&roll, "roll", def.Setpoint.Roll, "desired roll")
	f.Float64Var(&pitch, "pitch", def.Setpoint.Pitch, "desired pitch")
	f.Float64Var(&yaw, "yaw", def.Setpoint.Yaw, "desired yaw")
	f.Float64Var(&initRoll, "init-roll", 0, "initial roll")
	f.Float64Var(&initPitch, "init-pitch", 0, "initial pitch")
	f.Float64Var(&initYaw, "init-yaw", 0, "initial yaw")
	f.Float64Var(&kp, "kp", def.PID.Kp, "pid kp")
	f.Float64Var(&ki, "ki", def.PID.Ki, "pid ki")
	f.Float64Var(&kd, "kd", def.PID.Kd, "pid kd")

	f.StringVar(&canIface, "can", "", "SocketCAN interface for command output")
	f.StringVar(&logLevel, "log-level", def.Log.Level, "debug, info, warn or error")
	f.StringVar(&logFile, "log-file", "", "also log to this file")
}

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Model = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Model))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Model = args[0]
		}
	}

	changed := cmd.Flags().Changed
	if changed("dt") {
		cfg.Dt = dt
	}
	if changed("time") {
		cfg.Duration = duration
	}
	if changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}
	if changed("integrator") {
		cfg.Integrator = integrator
	}
	if changed("controller") {
		cfg.Controller = controller
	}
	if changed("horizon") {
		cfg.MPC.Horizon = horizon
	}
	if changed("step") {
		cfg.MPC.Step = step
	}
	if changed("q") {
		cfg.MPC.Q = [dynamo.Dim]float64{qWeight, qWeight, qWeight}
	}
	if changed("r") {
		cfg.MPC.R = [dynamo.Dim]float64{rWeight, rWeight, rWeight}
	}
	if changed("warm-start") {
		cfg.MPC.WarmStart = mpc.WarmStartPolicy(warmStart)
	}
	if changed("fail-safe") {
		cfg.MPC.FailSafe = mpc.FailSafe(failSafe)
	}
	if changed("solve-timeout") {
		cfg.MPC.Timeout = solveTimeout
	}
	if changed("max-iter") {
		cfg.Solver.MaxIter = maxIter
	}
	if changed("roll") {
		cfg.Setpoint.Roll = roll
	}
	if changed("pitch") {
		cfg.Setpoint.Pitch = pitch
	}
	if changed("yaw") {
		cfg.Setpoint.Yaw = yaw
	}
	if changed("init-roll") {
		cfg.InitState.Roll = initRoll
	}
	if changed("init-pitch") {
		cfg.InitState.Pitch = initPitch
	}
	if changed("init-yaw") {
		cfg.InitState.Yaw = initYaw
	}
	if changed("kp") {
		cfg.PID.Kp = kp
	}
	if changed("ki") {
		cfg.PID.Ki = ki
	}
	if changed("kd") {
		cfg.PID.Kd = kd
	}
	if changed("can") {
		cfg.Actuator.Interface = canIface
	}
	if changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if changed("log-file") {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, preset, nil
}

func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	var l *logging.Logger
	if cfg.Log.File != "" {
		if l, err = logging.NewFileLogger(cfg.Log.File, level, true); err != nil {
			return nil, err
		}
	} else {
		l = logging.New(os.Stderr, level)
	}
	logging.SetDefault(l)
	return l, nil
}

// openSink dials the configured CAN interface. The returned close func is
// never nil.
func openSink(ctx context.Context, cfg *config.Config, l *logging.Logger) (*actuator.Sink, func(), error) {
	if cfg.Actuator.Interface == "" {
		return nil, func() {}, nil
	}
	w, err := actuator.NewSocketCANWriter(ctx, cfg.Actuator.Interface)
	if err != nil {
		return nil, func() {}, err
	}
	sink := actuator.NewSink(w, actuator.Codec{ID: cfg.Actuator.ID, Scale: cfg.Actuator.Scale})
	l.Info("sending commands on %s id=0x%X", cfg.Actuator.Interface, cfg.Actuator.ID)
	return sink, func() {
		if err := sink.Close(); err != nil {
			l.Warn("closing %s: %v", cfg.Actuator.Interface, err)
		}
	}, nil
}

// buildExperiment wires logging and the optional CAN sink around
// experiment.Build.
func buildExperiment(ctx context.Context, cfg *config.Config) (*experiment.Experiment, func(), error) {
	l, err := setupLogging(cfg)
	if err != nil {
		return nil, nil, err
	}
	sink, closeSink, err := openSink(ctx, cfg, l)
	if err != nil {
		l.Close()
		return nil, nil, err
	}
	opts := []experiment.Option{experiment.WithLogger(l)}
	if sink != nil {
		opts = append(opts, experiment.WithSink(sink))
	}
	exp, err := experiment.Build(experiment.NewRegistry(), cfg, opts...)
	cleanup := func() {
		closeSink()
		l.Close()
	}
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return exp, cleanup, nil
}

func runInfo(cfg *config.Config, presetName string) storage.RunInfo {
	info := storage.RunInfo{
		Model:      cfg.Model,
		Integrator: cfg.Integrator,
		Controller: cfg.Controller,
		Preset:     presetName,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Seed:       cfg.Seed,
		Setpoint:   cfg.Setpoint.State(),
	}
	if cfg.Controller == "mpc" {
		info.Horizon = cfg.MPC.Horizon
		info.Step = cfg.MPC.Step
		info.WarmStart = string(cfg.MPC.WarmStart)
	}
	return info
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, metrics[name])
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, presetName, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp, cleanup, err := buildExperiment(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("running %s with %s controller...\n", cfg.Model, cfg.Controller)
	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(runInfo(cfg, presetName), result)
	if err != nil {
		return err
	}

	final := result.States[len(result.States)-1]
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("final attitude: roll=%.4f pitch=%.4f yaw=%.4f\n", final[0], final[1], final[2])
	if result.Faults > 0 {
		fmt.Printf("fail-safe cycles: %d (first: %v)\n", result.Faults, result.Errors[0])
	}
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") && cfg.Log.File == "" {
		cfg.Log.Level = "error"
	}

	exp, cleanup, err := buildExperiment(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	integ, err := experiment.NewRegistry().GetIntegrator(cfg.Integrator)
	if err != nil {
		return err
	}
	return viz.Run(viz.Loop{
		Plant:      exp.Plant(),
		Integrator: integ,
		Controller: exp.Controller(),
		Setpoint:   exp.Setpoint(),
		Initial:    cfg.GetInitState(),
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Name:       cfg.Model + " / " + cfg.Controller,
	})
}

func compareControllers(cmd *cobra.Command, args []string) error {
	base, _, err := resolveConfig(cmd, args[:1])
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") {
		base.Log.Level = "warn"
	}
	ctx := context.Background()

	type row struct {
		name    string
		metrics map[string]float64
		elapsed time.Duration
		faults  int
	}
	rows := make([]row, 0, len(args)-1)
	for _, name := range args[1:] {
		cfg := *base
		cfg.Controller = name
		exp, cleanup, err := buildExperiment(ctx, &cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		start := time.Now()
		result, err := exp.Run(ctx)
		cleanup()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		rows = append(rows, row{name, result.Metrics, time.Since(start), result.Faults})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTROLLER\tRMS\tFINAL\tEFFORT\tVIOLATIONS\tFAULTS\tTIME")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%.5f\t%.5f\t%.3f\t%.0f\t%d\t%v\n",
			r.name,
			r.metrics["tracking_rms"],
			r.metrics["final_error"],
			r.metrics["control_effort"],
			r.metrics["bound_violations"],
			r.faults,
			r.elapsed.Round(time.Millisecond),
		)
	}
	return w.Flush()
}

func parseTuneParams(args []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(args))
	ranges := make([][]float64, 0, len(args))
	for _, arg := range args {
		name, list, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("bad --param %q, want name=v1,v2 or name=lo:hi:n", arg)
		}
		vals, err := optim.ParseRange(list)
		if err != nil {
			return nil, nil, fmt.Errorf("--param %s: %w", name, err)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func tune(cmd *cobra.Command, args []string) error {
	if len(tuneParams) == 0 {
		return fmt.Errorf("no --param given (tunable: %s)", strings.Join(optim.TunableParams(), ", "))
	}
	base, _, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") {
		base.Log.Level = "error"
	}
	l, err := setupLogging(base)
	if err != nil {
		return err
	}
	defer l.Close()

	names, ranges, err := parseTuneParams(tuneParams)
	if err != nil {
		return err
	}
	gs, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := *base
		for name, v := range params {
			if err := optim.ApplyParam(&cfg, name, v); err != nil {
				return nil, err
			}
		}
		return experiment.Build(reg, &cfg, experiment.WithLogger(l))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := gs.Search(ctx, build, tuneMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(tuneMetric))
	for _, t := range res.Trials {
		cols := make([]string, len(names))
		for i, n := range names {
			cols[i] = strconv.FormatFloat(t.Params[n], 'g', 6, 64)
		}
		val := fmt.Sprintf("%.6f", t.Value)
		if t.Err != nil {
			val = "error: " + t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(cols, "\t"), val)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.6f at", tuneMetric, res.BestValue)
	for _, n := range names {
		fmt.Printf(" %s=%g", n, res.Best[n])
	}
	fmt.Println()
	return nil
}

func describeHorizon(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	model, err := experiment.NewRegistry().GetModel(cfg.Model)
	if err != nil {
		return err
	}
	mcfg := cfg.ControllerConfig()
	hz, err := mpc.BuildHorizon(mcfg, model)
	if err != nil {
		return err
	}

	l := hz.Layout
	start, end := l.FirstControl()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "model\t%s\n", cfg.Model)
	fmt.Fprintf(w, "horizon\tN=%d h=%g (%.3fs lookahead)\n", l.N, hz.Step, float64(l.N)*hz.Step)
	fmt.Fprintf(w, "decision variables\t%d (%d states, %d controls)\n", l.NumVars(), l.NumStates(), l.NumControls())
	fmt.Fprintf(w, "equality constraints\t%d\n", l.NumConstraints())
	fmt.Fprintf(w, "parameters\t%d\n", mpc.ParamLen)
	fmt.Fprintf(w, "first control\tz[%d:%d]\n", start, end)
	fmt.Fprintf(w, "state bound\t±%g\n", mcfg.StateBound)
	fmt.Fprintf(w, "control bound\t±%g\n", mcfg.ControlBound)
	fmt.Fprintf(w, "Q\t%v\n", mcfg.Q)
	fmt.Fprintf(w, "R\t%v\n", mcfg.R)
	fmt.Fprintf(w, "warm start\t%s\n", mcfg.WarmStart)
	fmt.Fprintf(w, "fail-safe\t%s\n", mcfg.FailSafe)
	if err := w.Flush(); err != nil {
		return err
	}

	x0 := cfg.GetInitState()
	p, err := mpc.PackParams(x0, cfg.Setpoint.State(), dynamo.State{0, 0, 0})
	if err != nil {
		return err
	}
	z := make([]float64, l.NumVars())
	for node := 0; node <= l.N; node++ {
		copy(l.State(z, node), x0)
	}
	fmt.Printf("\ncost of holding the initial attitude: %.6f\n", hz.Cost(z, p))
	return nil
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") {
		cfg.Log.Level = "error"
	}
	l, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	ens, err := experiment.NewEnsemble(experiment.NewRegistry(), cfg, ensembleRuns, ensembleSpread, experiment.WithLogger(l))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %d %s members with ±%.0f%% plant spread...\n", ensembleRuns, cfg.Controller, 100*ensembleSpread)
	start := time.Now()
	members, err := ens.Run(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, m := range members {
		if m.Err != nil {
			failed++
			l.Warn("member seed=%d: %v", m.Seed, m.Err)
		}
	}
	fmt.Printf("completed in %v, %d failed\n\n", time.Since(start).Round(time.Millisecond), failed)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tSTD")
	for _, s := range experiment.Summarize(members) {
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\n", s.Name, s.Mean, s.Std)
	}
	return w.Flush()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, result, err := loadResult(args[0])
	if err != nil {
		return err
	}

	// Runs saved without a setpoint are measured against their final attitude.
	desired := result.States[len(result.States)-1].Clone()
	if len(meta.Setpoint) == dynamo.Dim {
		desired = dynamo.State(meta.Setpoint)
	}

	rep := analysis.Analyze(result, desired, meta.Dt)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AXIS\tTARGET\tRISE\tOVERSHOOT\tSETTLED AT\tSS ERROR\tCMD PEAK")
	for i, ax := range rep.Axes {
		fmt.Fprintf(w, "%s\t%.4f\t%s\t%.1f%%\t%s\t%.5f\t%.2f Hz\n",
			[]string{"roll", "pitch", "yaw"}[i],
			desired[i],
			seconds(ax.RiseTime),
			ax.Overshoot,
			seconds(ax.SettlingAt),
			ax.SteadyState,
			ax.CommandPeak,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for i, ax := range rep.Axes {
		if ax.CommandPeak > 0.8*analysis.Nyquist(meta.Dt) {
			fmt.Printf("warning: %s command chatters near the Nyquist rate\n", []string{"roll", "pitch", "yaw"}[i])
		}
	}
	return nil
}

func seconds(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2fs", v)
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(scenarioLogLevel)
	if err != nil {
		return err
	}
	l := logging.New(os.Stderr, level)
	logging.SetDefault(l)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("scenario %s: %d steps\n", sc.Name, len(sc.Steps))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tMODEL\tCTRL\tRMS\tFAULTS\tRUN ID")
	_, err = automation.RunScenario(ctx, sc, experiment.NewRegistry(), func(sr automation.StepResult) error {
		runID, err := st.Save(runInfo(sr.Config, ""), sr.Result)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.5f\t%d\t%s\n",
			sr.Name, sr.Config.Model, sr.Config.Controller,
			sr.Result.Metrics["tracking_rms"], sr.Result.Faults, runID)
		return nil
	}, experiment.WithLogger(l))
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tCTRL\tTIME\tDURATION\tDT\tN\tFAULTS\tRMS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%d\t%.5f\n",
			run.ID,
			run.Model,
			run.Controller,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Horizon,
			run.Faults,
			run.Metrics["tracking_rms"],
		)
	}
	return w.Flush()
}

func loadResult(runID string) (*storage.RunMetadata, *dynamo.Result, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	run, err := st.LoadRun(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(run.States) == 0 {
		return nil, nil, fmt.Errorf("run %s has no samples", runID)
	}
	return meta, run.Result(meta), nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, result, err := loadResult(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s  controller: %s\n", meta.Model, meta.Controller)
	fmt.Printf("samples: %d\n\n", len(result.States))

	series := make([][]float64, dynamo.Dim)
	for axis := range series {
		series[axis] = make([]float64, len(result.States))
		for i, s := range result.States {
			series[axis][i] = s[axis]
		}
	}
	fmt.Println(asciigraph.PlotMany(series,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("attitude (rad): roll red, pitch green, yaw blue"),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green, asciigraph.Blue),
	))

	if len(result.Controls) > 1 {
		cmds := make([][]float64, dynamo.Dim)
		for axis := range cmds {
			cmds[axis] = make([]float64, len(result.Controls))
			for i, u := range result.Controls {
				cmds[axis][i] = u[axis]
			}
		}
		fmt.Println()
		fmt.Println(asciigraph.PlotMany(cmds,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("command"),
			asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green, asciigraph.Blue),
		))
	}

	fmt.Println("\nmetrics:")
	printMetrics(meta.Metrics)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, result, err := loadResult(args[0])
	if err != nil {
		return err
	}
	return storage.EncodeJSON(os.Stdout, meta.RunInfo, result)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, result, err := loadResult(args[0])
	if err != nil {
		return err
	}
	if err := storage.ExportCSV(args[1], result); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", args[0], args[1])
	return nil
}

func exportPNG(cmd *cobra.Command, args []string) error {
	_, result, err := loadResult(args[0])
	if err != nil {
		return err
	}
	written, err := storage.ExportPNG(args[1], result)
	if err != nil {
		return err
	}
	for _, p := range written {
		fmt.Printf("wrote %s\n", p)
	}
	return nil
}
