package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/cascade/internal/config"
	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/engine"
	"github.com/san-kum/cascade/internal/logging"
	"github.com/san-kum/cascade/internal/metrics"
	"github.com/san-kum/cascade/internal/solver"
	"github.com/san-kum/cascade/internal/storage"
	"github.com/san-kum/cascade/internal/tables"
	"github.com/san-kum/cascade/internal/tui"
)

var (
	configFile string
	preset     string
	logLevel   string
	logFormat  string

	zenith      float64
	model       string
	primaryName string
	primaryTag  string
	integrator  string
	kernelName  string
	dense       bool
	depths      []float64
	fluxes      []string
	mag         float64
	observers   []string
	angles      []float64
	workers     int
	live        bool
	frameRate   int
	noStore     bool
	metricsFile string
	exportPath  string
)

const (
	exitFailure   = 1
	exitConfig    = 2
	exitNumerical = 3
	exitCancelled = 130
)

var (
	header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	muted  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cascade",
		Short:         "atmospheric particle cascade solver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "solve the cascade equations to the surface",
		Args:  cobra.NoArgs,
		RunE:  runSolve,
	}
	addModelFlags(solveCmd)
	solveCmd.Flags().StringVar(&integrator, "integrator", "", "euler, rk4 or rk45")
	solveCmd.Flags().StringVar(&kernelName, "kernel", "", "step kernel")
	solveCmd.Flags().BoolVar(&dense, "dense", false, "use dense operators")
	solveCmd.Flags().Float64SliceVar(&depths, "depths", nil, "snapshot slant depths in g/cm²")
	solveCmd.Flags().StringSliceVar(&fluxes, "flux", nil, "fluxes to report")
	solveCmd.Flags().Float64Var(&mag, "mag", 0, "weight fluxes by E^mag")
	solveCmd.Flags().Float64SliceVar(&angles, "angles", nil, "solve several zenith angles concurrently")
	solveCmd.Flags().IntVar(&workers, "workers", 0, "concurrent solves for --angles (0 = unlimited)")
	solveCmd.Flags().BoolVar(&live, "tui", false, "show live progress")
	solveCmd.Flags().IntVar(&frameRate, "fps", 30, "progress frame rate")
	solveCmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist results")
	solveCmd.Flags().StringVar(&metricsFile, "metrics", "", "write prometheus textfile")
	solveCmd.Flags().StringVar(&exportPath, "export", "", "write the result as JSON")

	speciesCmd := &cobra.Command{
		Use:   "species",
		Short: "list tracked species and their classification",
		Args:  cobra.NoArgs,
		RunE:  listSpecies,
	}
	addModelFlags(speciesCmd)

	operatorsCmd := &cobra.Command{
		Use:   "operators",
		Short: "show operator and path diagnostics",
		Args:  cobra.NoArgs,
		RunE:  showOperators,
	}
	addModelFlags(operatorsCmd)
	operatorsCmd.Flags().BoolVar(&dense, "dense", false, "use dense operators")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "inspect stored runs",
	}
	runsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "list runs",
			Args:  cobra.NoArgs,
			RunE:  listRuns,
		},
		&cobra.Command{
			Use:   "show [run_id]",
			Short: "print a stored run as JSON",
			Args:  cobra.ExactArgs(1),
			RunE:  showRun,
		},
	)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(header.Render("presets"))
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list interaction, primary and atmosphere models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	rootCmd.AddCommand(solveCmd, speciesCmd, operatorsCmd, runsCmd, presetsCmd, modelsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		code := report(os.Stderr, err)
		stop()
		os.Exit(code)
	}
}

// report prints err with a hint for its class and returns the exit code.
func report(w io.Writer, err error) int {
	fmt.Fprintln(w, "error:", err)
	switch {
	case errors.Is(err, context.Canceled):
		return exitCancelled
	case solver.IsNumerical(err):
		fmt.Fprintln(w, "hint: lower solver.step_scale, tighten solver.rtol or use the euler integrator")
		return exitNumerical
	case errors.Is(err, dynamo.ErrConfiguration), errors.Is(err, dynamo.ErrNotFound):
		fmt.Fprintln(w, "hint: see `cascade models` and `cascade presets`")
		return exitConfig
	default:
		return exitFailure
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&zenith, "zenith", 0, "zenith angle in degrees")
	cmd.Flags().StringVar(&model, "model", "", "interaction model")
	cmd.Flags().StringVar(&primaryName, "primary", "", "primary flux model")
	cmd.Flags().StringVar(&primaryTag, "tag", "", "primary flux model tag")
	cmd.Flags().StringSliceVar(&observers, "observers", nil, "species whose decays are scored separately")
}

// loadConfig resolves defaults, preset, config file and flags in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, dynamo.Configf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("zenith") {
		cfg.Zenith = zenith
	}
	if flags.Changed("model") {
		cfg.InteractionModel = model
	}
	if flags.Changed("primary") {
		cfg.Primary.Model = primaryName
	}
	if flags.Changed("tag") {
		cfg.Primary.Tag = primaryTag
	}
	if flags.Changed("observers") {
		cfg.Observers = observers
	}
	if flags.Changed("integrator") {
		cfg.Solver.Integrator = integrator
	}
	if flags.Changed("kernel") {
		cfg.Solver.Kernel = kernelName
	}
	if flags.Changed("dense") {
		cfg.Solver.Sparse = !dense
	}
	if flags.Changed("depths") {
		cfg.Output.Depths = depths
	}
	if flags.Changed("flux") {
		cfg.Output.Fluxes = fluxes
	}
	if flags.Changed("mag") {
		cfg.Output.Mag = mag
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Textfile = metricsFile
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Writer:  os.Stderr,
		Service: "cascade",
	})
}

func buildState(cmd *cobra.Command) (*config.Config, *engine.RunState, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := engine.Build(cmd.Context(), cfg.RunConfig(), engine.UseLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, st, logger, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, st, logger, err := buildState(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	m := metrics.New()
	m.ObserveOperators(st.Ops.Stats())

	var solutions []*engine.Solution
	if len(angles) > 0 {
		solutions, err = solveAngles(ctx, st, cfg, m)
	} else {
		var sol *engine.Solution
		sol, err = solveOne(ctx, st, cfg, m)
		solutions = []*engine.Solution{sol}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println(muted.Render("solve cancelled"))
		}
		return err
	}

	var store storage.Store
	if !noStore {
		store, err = storage.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			return err
		}
	}

	for _, sol := range solutions {
		rec, err := record(cfg, st, sol)
		if err != nil {
			return err
		}
		m.ObserveFluxes(rec.Energies, rec.Fluxes)
		printSolution(cfg, st, sol, rec)

		if store != nil {
			id, err := store.Save(ctx, rec)
			if err != nil {
				return err
			}
			logger.Info("run saved", "id", id, "backend", cfg.Storage.Backend)
			fmt.Printf("run id: %s\n", id)
		}
		if exportPath != "" {
			path := exportPath
			if len(solutions) > 1 {
				path = fmt.Sprintf("%s.%g", exportPath, sol.Zenith)
			}
			if err := storage.ExportJSONFile(path, rec); err != nil {
				return err
			}
		}
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteToTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}
	return nil
}

func solveOne(ctx context.Context, st *engine.RunState, cfg *config.Config, m *metrics.Collectors) (*engine.Solution, error) {
	integ := cfg.Solver.Integrator
	start := time.Now()

	solve := func(ctx context.Context, obs dynamo.Observer) (*engine.Solution, error) {
		all := []dynamo.Observer{m.Observer(integ)}
		if obs != nil {
			all = append(all, obs)
		}
		return st.Solve(ctx, cfg.Output.Depths, all...)
	}

	var sol *engine.Solution
	var err error
	if live {
		sol, err = tui.RunSolve(ctx, tui.Options{
			Title:     fmt.Sprintf("%s θ=%g°", cfg.InteractionModel, cfg.Zenith),
			Surface:   st.Atmosphere.SurfaceDepth(),
			Height:    st.Atmosphere.HeightAt,
			Fluxes:    cfg.Output.Fluxes,
			Mag:       cfg.Output.Mag,
			FrameRate: frameRate,
		}, solve)
	} else {
		fmt.Printf("solving %s at %g°...\n", cfg.InteractionModel, cfg.Zenith)
		sol, err = solve(ctx, nil)
	}

	kernel := cfg.Solver.Kernel
	if sol != nil {
		kernel = sol.Kernel
	}
	m.ObserveSolve(integ, kernel, time.Since(start), err)
	return sol, err
}

func solveAngles(ctx context.Context, st *engine.RunState, cfg *config.Config, m *metrics.Collectors) ([]*engine.Solution, error) {
	fmt.Printf("solving %s at %v°...\n", cfg.InteractionModel, angles)
	start := time.Now()
	sols, err := engine.SolveAngles(ctx, st, angles, cfg.Output.Depths, workers)
	if err != nil {
		m.ObserveSolve(cfg.Solver.Integrator, cfg.Solver.Kernel, time.Since(start), err)
		return nil, err
	}
	for _, sol := range sols {
		m.ObserveSolve(cfg.Solver.Integrator, sol.Kernel, sol.Elapsed, nil)
	}
	return sols, nil
}

func record(cfg *config.Config, st *engine.RunState, sol *engine.Solution) (*storage.Record, error) {
	out, err := sol.Export(cfg.Output.Fluxes, cfg.Output.Mag)
	if err != nil {
		return nil, err
	}
	return &storage.Record{
		Meta: storage.RunMetadata{
			InteractionModel: st.Config.InteractionModel,
			Primary:          st.Config.PrimaryModel,
			PrimaryTag:       st.Config.PrimaryTag,
			Atmosphere:       st.Atmosphere.Name(),
			Zenith:           sol.Zenith,
			Integrator:       cfg.Solver.Integrator,
			Kernel:           sol.Kernel,
			Steps:            sol.Steps,
			Mag:              cfg.Output.Mag,
			ElapsedMS:        float64(sol.Elapsed.Microseconds()) / 1000,
		},
		Energies: sol.Energies(),
		Fluxes:   out,
	}, nil
}

func printSolution(cfg *config.Config, st *engine.RunState, sol *engine.Solution, rec *storage.Record) {
	fmt.Println()
	fmt.Println(header.Render(fmt.Sprintf("θ=%g°  %d steps  %v  kernel %s",
		sol.Zenith, sol.Steps, sol.Elapsed.Round(time.Millisecond), sol.Kernel)))

	if len(sol.Depths) > 0 {
		atm := st.Atmosphere
		if atm.ZenithDeg() != sol.Zenith {
			if a, err := atm.WithZenith(sol.Zenith); err == nil {
				atm = a
			}
		}
		for i, X := range sol.Depths {
			fmt.Println(muted.Render(fmt.Sprintf("snapshot %d: X=%g g/cm²  h=%.2f km", i, X, atm.HeightAt(X)/1e5)))
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "E [GeV]\t%s\n", strings.Join(cfg.Output.Fluxes, "\t"))
	stride := max(1, len(rec.Energies)/12)
	for i := 0; i < len(rec.Energies); i += stride {
		row := make([]string, len(cfg.Output.Fluxes))
		for j, name := range cfg.Output.Fluxes {
			row[j] = fmt.Sprintf("%.4e", rec.Fluxes[name][i])
		}
		fmt.Fprintf(w, "%.3e\t%s\n", rec.Energies[i], strings.Join(row, "\t"))
	}
	w.Flush()
	if cfg.Output.Mag != 0 {
		fmt.Println(muted.Render(fmt.Sprintf("fluxes weighted by E^%g", cfg.Output.Mag)))
	}
}

func listSpecies(cmd *cobra.Command, args []string) error {
	_, st, _, err := buildState(cmd)
	if err != nil {
		return err
	}

	fmt.Println(header.Render(fmt.Sprintf("%s: %d species, %d bins", st.Config.InteractionModel, len(st.Index.Species()), st.Index.Bins())))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCLASS\tMASS\tCTAU\tECRIT\tMIX\tBLOCK")
	for _, s := range st.Index.Species() {
		block := "-"
		if s.Tracked() {
			block = s.Block().String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.4g\t%.4g\t%.4g\t%d\t%s\n",
			s.ID, s.Name, s.Class, s.Mass, s.CTau, s.ECrit, s.MixIdx, block)
	}
	return w.Flush()
}

func showOperators(cmd *cobra.Command, args []string) error {
	_, st, _, err := buildState(cmd)
	if err != nil {
		return err
	}
	path, err := st.Path(nil)
	if err != nil {
		return err
	}
	stats := st.Ops.Stats()

	fmt.Println(header.Render("operators"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "dimension\t%d\n", stats.Dim)
	fmt.Fprintf(w, "sparse\t%v\n", st.Ops.Sparse)
	fmt.Fprintf(w, "interaction nnz\t%d (%.3g)\n", stats.IntNNZ, stats.IntDensity)
	fmt.Fprintf(w, "decay nnz\t%d (%.3g)\n", stats.DecNNZ, stats.DecDensity)
	fmt.Fprintf(w, "max decay rate\t%.4g cm⁻¹\n", st.Ops.MaxLdec)
	fmt.Fprintf(w, "atmosphere\t%s θ=%g°\n", st.Atmosphere.Name(), st.Atmosphere.ZenithDeg())
	fmt.Fprintf(w, "path length\t%.4g cm\n", st.Atmosphere.PathLength())
	fmt.Fprintf(w, "slant depth\t%.4g g/cm²\n", path.Depth())
	fmt.Fprintf(w, "euler steps\t%d\n", path.Steps())
	return w.Flush()
}

func openStore(cmd *cobra.Command) (storage.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(cmd.Context()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tMODEL\tPRIMARY\tZENITH\tINTEG\tSTEPS\tFLUXES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\t%g\t%s\t%d\t%d\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.InteractionModel,
			run.Primary, run.PrimaryTag,
			run.Zenith,
			run.Integrator,
			run.Steps,
			len(run.Fluxes),
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, rec)
}

func listModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var db *tables.Database
	if cfg.Tables != "" {
		db, err = tables.LoadFile(cfg.Tables)
	} else {
		db, err = tables.Default()
	}
	if err != nil {
		return err
	}
	reg := engine.NewRegistry(db)

	sections := []struct {
		title string
		names []string
	}{
		{"interaction models", reg.ListInteractionModels()},
		{"primary models", reg.ListPrimaryModels()},
		{"atmospheres", reg.ListAtmospheres()},
		{"kernels", reg.ListKernels()},
		{"integrators", reg.ListIntegrators()},
	}
	for _, s := range sections {
		fmt.Println(header.Render(s.title))
		for _, name := range s.names {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}
