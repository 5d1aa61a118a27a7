package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/trisim/internal/analysis"
	"github.com/san-kum/trisim/internal/config"
	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/export"
	"github.com/san-kum/trisim/internal/message"
	"github.com/san-kum/trisim/internal/metrics"
	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/settings"
	"github.com/san-kum/trisim/internal/sim"
	"github.com/san-kum/trisim/internal/storage"
	"github.com/san-kum/trisim/internal/viz"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultHeadlessStep = 0.1

var (
	dataDir    string
	configFile string
	logLevel   string

	preset     string
	template   string
	skipTo     float64
	speed      float64
	infinite   bool
	output     string
	format     string
	integrator string
	fixedStep  float64

	ticks  int
	plot   bool
	series string
	yes    bool

	chaosDuration float64
	chaosInterval float64
	perturbation  float64
	svgWidth      int
	svgHeight     int
)

// main registers the command tree and exits with status 1 when a command
// returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "trisim",
		Short:         "planar three-body simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLive,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	addRunFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation headless and report conservation metrics",
		Args:  cobra.NoArgs,
		RunE:  runHeadless,
	}
	addRunFlags(runCmd)
	runCmd.Flags().IntVar(&ticks, "ticks", 1000, "number of ticks")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot pair separations when done")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with live visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [log]",
		Short: "plot a run log",
		Args:  cobra.ExactArgs(1),
		RunE:  plotLog,
	}
	plotCmd.Flags().StringVar(&series, "series", "separation", "comma separated columns, or 'separation'")

	chaosCmd := &cobra.Command{
		Use:   "chaos",
		Short: "estimate the largest lyapunov exponent of the selected settings",
		Args:  cobra.NoArgs,
		RunE:  estimateChaos,
	}
	addRunFlags(chaosCmd)
	chaosCmd.Flags().Float64Var(&chaosDuration, "duration", 100, "simulated time to follow")
	chaosCmd.Flags().Float64Var(&chaosInterval, "interval", 1, "renormalization interval")
	chaosCmd.Flags().Float64Var(&perturbation, "perturbation", 1e-6, "initial displacement of body 1")

	svgCmd := &cobra.Command{
		Use:   "export-svg [log] [out.svg]",
		Short: "draw the trajectories of a run log as svg",
		Args:  cobra.ExactArgs(2),
		RunE:  exportSVG,
	}
	svgCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	svgCmd.Flags().IntVar(&svgHeight, "height", 600, "image height")

	templateCmd := &cobra.Command{
		Use:   "template",
		Short: "manage saved settings templates",
	}

	saveCmd := &cobra.Command{
		Use:   "save [name]",
		Short: "save the selected settings as a template",
		Args:  cobra.ExactArgs(1),
		RunE:  saveTemplate,
	}
	addRunFlags(saveCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "delete a template",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteTemplate,
	}
	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	templateCmd.AddCommand(
		saveCmd,
		&cobra.Command{Use: "list", Short: "list templates", Args: cobra.NoArgs, RunE: listTemplates},
		&cobra.Command{Use: "show [name]", Short: "print a template as yaml", Args: cobra.ExactArgs(1), RunE: showTemplate},
		deleteCmd,
	)

	configCmd := &cobra.Command{
		Use:   "config [out.yaml]",
		Short: "write the resolved config and run settings as yaml",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	addRunFlags(configCmd)

	rootCmd.AddCommand(runCmd, liveCmd, presetsCmd, plotCmd, chaosCmd, svgCmd, templateCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "start from a built-in preset")
	cmd.Flags().StringVar(&template, "template", "", "start from a saved template")
	cmd.Flags().Float64Var(&skipTo, "skip", 0, "simulated time to fast-forward to before display")
	cmd.Flags().Float64Var(&speed, "speed", settings.DefaultSpeed, "simulated seconds per tick second")
	cmd.Flags().BoolVar(&infinite, "infinite", false, "ignore the time-skip and run forever")
	cmd.Flags().StringVar(&output, "output", "", "run log file (.csv, .db or .sqlite)")
	cmd.Flags().StringVar(&format, "format", "", "number format (0.00E0, 0.00000E0, 0.00, 0.00000)")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator (rk45, rk4)")
	cmd.Flags().Float64Var(&fixedStep, "step", 0, "fixed simulated step per tick (0 follows the wall clock)")
}

func newLogger(w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "trisim",
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	}), nil
}

func templateStore(cfg *config.Config) *storage.TemplateStore {
	return storage.NewTemplateStore(filepath.Join(cfg.DataDir, "templates"))
}

// loadRun resolves the run settings: config file, then preset or template,
// then any flags set on the command line.
func loadRun(cmd *cobra.Command) (*config.Config, settings.Settings, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, settings.Settings{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("data") || configFile == "" {
		cfg.DataDir = dataDir
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator.Method = integrator
	}
	if cmd.Flags().Changed("step") {
		cfg.FixedStep = fixedStep
	}

	if preset != "" && template != "" {
		return nil, settings.Settings{}, fmt.Errorf("%w: --preset and --template are exclusive", dynamo.ErrInput)
	}
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, settings.Settings{}, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg.Run = *p
	}

	var (
		s   settings.Settings
		err error
	)
	if template != "" {
		s, err = templateStore(cfg).Load(template)
		if err != nil {
			return nil, settings.Settings{}, err
		}
	} else {
		s, err = cfg.Run.Settings()
		if err != nil {
			return nil, settings.Settings{}, err
		}
	}

	if cmd.Flags().Changed("skip") {
		s = s.WithSkipTo(skipTo)
	}
	if cmd.Flags().Changed("speed") {
		s = s.WithSpeed(speed)
	}
	if cmd.Flags().Changed("infinite") {
		s = s.WithInfinite(infinite)
	}
	if cmd.Flags().Changed("output") {
		s = s.WithOutput(output)
	}
	if cmd.Flags().Changed("format") {
		f, err := settings.ParseNumberFormat(format)
		if err != nil {
			return nil, settings.Settings{}, fmt.Errorf("%w: %v", dynamo.ErrInput, err)
		}
		s = s.WithFormat(f)
	}

	if err := settings.Validate(s); err != nil {
		return nil, settings.Settings{}, err
	}
	return cfg, s, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, s, err := loadRun(cmd)
	if err != nil {
		return userError(err)
	}
	logger, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}

	integ, err := cfg.BuildIntegrator()
	if err != nil {
		return err
	}
	opts := cfg.SimOptions(logger)
	if opts.FixedStep <= 0 {
		opts.FixedStep = defaultHeadlessStep
	}

	d := sim.New(integ, opts)
	rec := metrics.Conservation()
	d.AddObserver(rec)

	var separations [3][]float64
	if plot {
		d.AddObserver(sim.ObserverFunc(func(f sim.Frame) {
			for k, pair := range [3][2]int{{0, 1}, {0, 2}, {1, 2}} {
				dx := f.Bodies[pair[0]].Position.X - f.Bodies[pair[1]].Position.X
				dy := f.Bodies[pair[0]].Position.Y - f.Bodies[pair[1]].Position.Y
				separations[k] = append(separations[k], math.Hypot(dx, dy))
			}
		}))
	}

	if s.Logging() {
		runLog, err := storage.OpenRunLog(s.Output, s.Format)
		if err != nil {
			return err
		}
		d.AddObserver(runLog)
		defer func() {
			if err := runLog.Close(); err != nil {
				logger.Error("run log", "path", s.Output, "err", err)
			}
		}()
	}

	fmt.Printf("running %d ticks of %s simulated seconds...\n", ticks, s.Format.Format(opts.FixedStep*s.Speed))
	start := time.Now()

	runErr := d.Start(s)
	now := start
	for i := 0; runErr == nil && i < ticks && d.Status() == sim.Running; i++ {
		now = now.Add(cfg.TickInterval)
		runErr = d.Tick(now)
	}
	if d.Status() != sim.Finished {
		_ = d.Stop()
	}
	elapsed := time.Since(start)

	printSummary(d, rec, s.Format, elapsed)

	if plot && len(separations[0]) > 1 {
		graph := asciigraph.PlotMany(separations[:],
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green, asciigraph.Blue),
			asciigraph.Caption("separation 1-2 (red), 1-3 (green), 2-3 (blue)"),
		)
		fmt.Println()
		fmt.Println(graph)
	}

	if f, ok := d.Failure(); ok {
		fmt.Println()
		fmt.Println(message.FromError(f.Err, f.Time).String())
	}
	return nil
}

func printSummary(d *sim.Driver, rec *metrics.Recorder, nf settings.NumberFormat, elapsed time.Duration) {
	f := d.Frame()
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("status: %s\n", d.Status())
	fmt.Printf("simulated time: %s\n", nf.Format(f.Time))
	fmt.Printf("frames: %d\n", rec.Frames())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nBODY\tMASS\tX\tY\tVX\tVY")
	for _, b := range f.Bodies {
		name := b.Label
		if name == "" {
			name = fmt.Sprint(b.ID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", name,
			nf.Format(b.Mass),
			nf.Format(b.Position.X), nf.Format(b.Position.Y),
			nf.Format(b.Velocity.X), nf.Format(b.Velocity.Y))
	}
	w.Flush()

	fmt.Println("\nmetrics:")
	summary := rec.Summary()
	for _, name := range rec.Names() {
		fmt.Printf("  %s: %.6g\n", name, summary[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, s, err := loadRun(cmd)
	if err != nil {
		return userError(err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "trisim.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger, err := newLogger(logFile)
	if err != nil {
		return err
	}

	integ, err := cfg.BuildIntegrator()
	if err != nil {
		return err
	}
	d := sim.New(integ, cfg.SimOptions(logger))

	if s.Logging() {
		runLog, err := storage.OpenRunLog(s.Output, s.Format)
		if err != nil {
			return err
		}
		d.AddObserver(runLog)
		defer runLog.Close()
	}

	model := viz.NewModel(d, s, templateStore(cfg), cfg.TickInterval)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if f, ok := d.Failure(); ok {
		fmt.Println(message.FromError(f.Err, f.Time).String())
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tBODIES\tSPEED")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		labels := make([]string, 0, len(p.Bodies))
		for _, b := range p.Bodies {
			labels = append(labels, b.Label)
		}
		fmt.Fprintf(w, "%s\t%s\t%g\n", name, strings.Join(labels, ", "), p.Speed)
	}
	return w.Flush()
}

func plotLog(cmd *cobra.Command, args []string) error {
	data, err := storage.ReadRunLog(args[0])
	if err != nil {
		return err
	}
	if len(data.Rows) < 2 {
		return fmt.Errorf("%s: not enough rows to plot", args[0])
	}

	var (
		plotData [][]float64
		names    []string
	)
	if series == "separation" {
		for _, pair := range [3][2]int{{1, 2}, {1, 3}, {2, 3}} {
			plotData = append(plotData, data.Separation(pair[0], pair[1]))
			names = append(names, fmt.Sprintf("%d-%d", pair[0], pair[1]))
		}
	} else {
		for _, name := range strings.Split(series, ",") {
			name = strings.TrimSpace(name)
			col := data.Column(name)
			if col == nil {
				return fmt.Errorf("unknown column %q (available: %s)", name, strings.Join(data.Columns, ", "))
			}
			plotData = append(plotData, col)
			names = append(names, name)
		}
	}

	graph := asciigraph.PlotMany(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green, asciigraph.Blue, asciigraph.Yellow),
		asciigraph.Caption(strings.Join(names, " / ")),
	)
	fmt.Println(graph)
	return nil
}

func estimateChaos(cmd *cobra.Command, args []string) error {
	cfg, s, err := loadRun(cmd)
	if err != nil {
		return userError(err)
	}
	if _, err := cfg.BuildIntegrator(); err != nil {
		return err
	}
	newIntegrator := func() dynamo.Integrator {
		integ, _ := cfg.BuildIntegrator()
		return integ
	}

	sys := physics.NewThreeBodyFromBodies(s.Bodies)
	x0 := physics.StateFromBodies(s.Bodies)

	start := time.Now()
	lambda, err := analysis.LyapunovExponent(sys, newIntegrator, x0, chaosInterval, chaosDuration, perturbation)
	if err != nil {
		return errors.New(message.FromError(err, 0).String())
	}

	fmt.Printf("completed in %v\n", time.Since(start))
	fmt.Printf("largest lyapunov exponent: %s per second\n", s.Format.Format(lambda))
	if lambda > 0 {
		fmt.Printf("e-folding time: %s s\n", s.Format.Format(1/lambda))
	}
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	data, err := storage.ReadRunLog(args[0])
	if err != nil {
		return err
	}
	svg, err := export.TrajectorySVG(data, svgWidth, svgHeight, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if err := os.WriteFile(args[1], []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[1])
	return nil
}

func saveTemplate(cmd *cobra.Command, args []string) error {
	cfg, s, err := loadRun(cmd)
	if err != nil {
		return userError(err)
	}
	if err := templateStore(cfg).Save(args[0], s); err != nil {
		return userError(err)
	}
	fmt.Println(message.New(message.SaveConfirm, args[0]).String())
	return nil
}

func listTemplates(cmd *cobra.Command, args []string) error {
	cfg, err := baseConfig()
	if err != nil {
		return err
	}
	store := templateStore(cfg)
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("no templates in %s\n", store.Dir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSKIP\tSPEED\tFORMAT\tOUTPUT")
	for _, name := range names {
		s, err := store.Load(name)
		if err != nil {
			fmt.Fprintf(w, "%s\t(unreadable)\t\t\t\n", name)
			continue
		}
		fmt.Fprintf(w, "%s\t%g\t%g\t%s\t%s\n", name, s.SkipTo, s.Speed, s.Format, s.Output)
	}
	return w.Flush()
}

func showTemplate(cmd *cobra.Command, args []string) error {
	cfg, err := baseConfig()
	if err != nil {
		return err
	}
	s, err := templateStore(cfg).Load(args[0])
	if err != nil {
		if errors.Is(err, dynamo.ErrDecode) {
			return errors.New(message.New(message.DecodeError, args[0], err).String())
		}
		return err
	}

	out, err := yaml.Marshal(config.FromSettings(s))
	if err != nil {
		return err
	}
	fmt.Println(message.New(message.LoadConfirm, args[0]).String())
	fmt.Print(string(out))
	return nil
}

func deleteTemplate(cmd *cobra.Command, args []string) error {
	cfg, err := baseConfig()
	if err != nil {
		return err
	}
	store := templateStore(cfg)
	name := args[0]
	if !store.Exists(name) {
		return fmt.Errorf("%w: %s", storage.ErrTemplateNotFound, name)
	}

	if !yes {
		fmt.Printf("%s [y/N] ", message.New(message.DeleteQuestion, name).Body())
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			return nil
		}
	}

	if err := store.Delete(name); err != nil {
		return err
	}
	fmt.Println(message.New(message.DeleteConfirm, name).String())
	return nil
}

// writeConfig saves the selected settings as the run section of a config
// file that --config can load again.
func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, s, err := loadRun(cmd)
	if err != nil {
		return userError(err)
	}
	cfg.Run = config.FromSettings(s)

	if err := config.Save(args[0], cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func baseConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if dataDir != config.DefaultDataDir || configFile == "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// userError renders input and decode failures as user messages.
func userError(err error) error {
	switch {
	case errors.Is(err, dynamo.ErrDecode):
		return errors.New(message.New(message.DecodeError, template, err).String())
	case errors.Is(err, dynamo.ErrInput):
		return errors.New(message.FromError(err, 0).String())
	}
	return err
}
