package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/config"
	"github.com/san-kum/bifurc/internal/continuation"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/experiment"
	"github.com/san-kum/bifurc/internal/export"
	"github.com/san-kum/bifurc/internal/ma"
	"github.com/san-kum/bifurc/internal/metrics"
	"github.com/san-kum/bifurc/internal/newton"
	"github.com/san-kum/bifurc/internal/normalform"
	"github.com/san-kum/bifurc/internal/storage"
	"github.com/san-kum/bifurc/internal/viz"
)

var (
	dataDir  string
	param    float64
	ds       float64
	maxSteps int
	pMin     float64
	pMax     float64
	theta    float64
	bothside bool
	detect   bool
	folds    bool
	x0Flag   string
	omega    float64
	maxRoots int
	measure  string
	svgOut   string
	// Config file
	configFile string
	// Preset name
	preset string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bifurc",
		Short: "bifurcation analysis and branch continuation lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".bifurc", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [problem]",
		Short: "trace a solution branch",
		Args:  cobra.ExactArgs(1),
		RunE:  runContinuation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")

	liveCmd := &cobra.Command{
		Use:   "live [problem]",
		Short: "trace a branch with live visualization",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	foldCmd := &cobra.Command{
		Use:   "fold [problem]",
		Short: "refine a fold point and print its normal form",
		Args:  cobra.ExactArgs(1),
		RunE:  refineFold,
	}
	foldCmd.Flags().Float64Var(&param, "param", 0, "parameter guess")
	foldCmd.Flags().StringVar(&x0Flag, "x0", "", "state guess, comma separated")

	hopfCmd := &cobra.Command{
		Use:   "hopf [problem]",
		Short: "refine a hopf point and print its normal form",
		Args:  cobra.ExactArgs(1),
		RunE:  refineHopf,
	}
	hopfCmd.Flags().Float64Var(&param, "param", 0, "parameter guess")
	hopfCmd.Flags().Float64Var(&omega, "omega", 0, "frequency guess (0 = from spectrum)")
	hopfCmd.Flags().StringVar(&x0Flag, "x0", "", "state guess, comma separated")

	rootsCmd := &cobra.Command{
		Use:   "roots [problem]",
		Short: "enumerate equilibria at a fixed parameter with deflation",
		Args:  cobra.ExactArgs(1),
		RunE:  enumerateRoots,
	}
	rootsCmd.Flags().Float64Var(&param, "param", 0, "parameter value")
	rootsCmd.Flags().StringVar(&x0Flag, "x0", "", "initial guess, comma separated")
	rootsCmd.Flags().IntVar(&maxRoots, "max-roots", 8, "stop after this many roots")

	switchCmd := &cobra.Command{
		Use:   "switch [problem]",
		Short: "trace a branch, switch at the first branch point, trace the new branch",
		Args:  cobra.ExactArgs(1),
		RunE:  switchBranch,
	}
	addRunFlags(switchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved branch",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&measure, "measure", "x0", "scalar to plot: x0 or norm")
	plotCmd.Flags().StringVar(&svgOut, "svg", "", "write an SVG diagram to this path")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
		},
	}

	problemsCmd := &cobra.Command{
		Use:   "problems",
		Short: "list built-in problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range experiment.NewRegistry().ListProblems() {
				fmt.Println(name)
			}
			return nil
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [problem]",
		Short: "list available presets for a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for problem: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, foldCmd, hopfCmd, rootsCmd, switchCmd, listCmd, plotCmd, exportCmd, problemsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&param, "param", 0, "starting parameter value")
	cmd.Flags().Float64Var(&ds, "ds", 0.01, "initial arclength step")
	cmd.Flags().IntVar(&maxSteps, "steps", 1000, "maximum continuation steps")
	cmd.Flags().Float64Var(&pMin, "pmin", -2, "lower parameter bound")
	cmd.Flags().Float64Var(&pMax, "pmax", 2, "upper parameter bound")
	cmd.Flags().Float64Var(&theta, "theta", 0.5, "arclength metric weight")
	cmd.Flags().BoolVar(&bothside, "bothside", true, "trace both directions")
	cmd.Flags().BoolVar(&detect, "detect", true, "detect stability changes")
	cmd.Flags().BoolVar(&folds, "folds", true, "detect folds")
	cmd.Flags().StringVar(&x0Flag, "x0", "", "initial state, comma separated (default zeros)")
}

func parseState(s string, dim int) (bif.State, error) {
	if s == "" {
		return make(bif.State, dim), nil
	}
	parts := strings.Split(s, ",")
	out := make(bif.State, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad state component %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func buildExperiment(cmd *cobra.Command, name string) (*experiment.Experiment, error) {
	reg := experiment.NewRegistry()

	if preset != "" {
		cfg := config.GetPreset(name, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
		applyConfig(cmd, cfg)
	}
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		applyConfig(cmd, cfg)
	}

	prob, err := reg.GetProblem(name)
	if err != nil {
		return nil, err
	}
	x0, err := parseState(x0Flag, prob.Dim())
	if err != nil {
		return nil, err
	}

	return experiment.New(experiment.Config{
		Problem:            name,
		InitState:          x0,
		Param:              param,
		Bothside:           bothside,
		DetectFolds:        folds,
		DetectBifurcations: detect,
		Opts: continuation.Options{
			Ds:       ds,
			MaxSteps: maxSteps,
			PMin:     pMin,
			PMax:     pMax,
			Theta:    theta,
		},
	}, reg)
}

// applyConfig copies file/preset values into flags the user did not set
// explicitly; CLI flags always win.
func applyConfig(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("param") {
		param = cfg.Param
	}
	if !cmd.Flags().Changed("ds") && cfg.Run.Ds != 0 {
		ds = cfg.Run.Ds
	}
	if !cmd.Flags().Changed("steps") && cfg.Run.MaxSteps != 0 {
		maxSteps = cfg.Run.MaxSteps
	}
	if !cmd.Flags().Changed("pmin") {
		pMin = cfg.Run.PMin
	}
	if !cmd.Flags().Changed("pmax") {
		pMax = cfg.Run.PMax
	}
	if !cmd.Flags().Changed("theta") && cfg.Run.Theta != 0 {
		theta = cfg.Run.Theta
	}
	if !cmd.Flags().Changed("bothside") {
		bothside = cfg.Run.Bothside
	}
	if !cmd.Flags().Changed("detect") {
		detect = cfg.Detect.Bifurcations
	}
	if !cmd.Flags().Changed("folds") {
		folds = cfg.Detect.Folds
	}
	if !cmd.Flags().Changed("x0") && len(cfg.InitState) > 0 {
		parts := make([]string, len(cfg.InitState))
		for i, v := range cfg.InitState {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		x0Flag = strings.Join(parts, ",")
	}
}

func runContinuation(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd, args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("tracing %s from p=%g...\n", args[0], param)
	start := time.Now()
	br, err := exp.Run(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(args[0], param, ds, br)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("points: %d\n", br.Len())
	fmt.Printf("status: %s\n", br.Status)

	stats := metrics.Compute(br)
	fmt.Printf("arclength: %.6g\n", stats.Arclength)
	fmt.Printf("param span: [%.6g, %.6g]\n", stats.ParamSpan[0], stats.ParamSpan[1])
	fmt.Printf("newton iterations: mean %.2f, max %d\n", stats.MeanNewton, stats.MaxNewton)
	if detect {
		fmt.Printf("stable fraction: %.1f%%\n", 100*stats.StableFraction)
	}
	printSpecial(br)
	return nil
}

func printSpecial(br *continuation.Branch) {
	if len(br.Special) == 0 {
		return
	}
	fmt.Println("\nspecial points:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPARAM\tINDEX\tLABEL")
	for _, sp := range br.Special {
		fmt.Fprintf(w, "%s\t%.6g\t%d\t%s\n", sp.Type, sp.P, sp.Index, sp.Label)
	}
	w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd, args[0])
	if err != nil {
		return err
	}

	live, feed := viz.NewLive(args[0], nil)
	opts := exp.Options()
	opts.Finalizer = viz.Feeder(feed)

	it, err := continuation.New(exp.Problem(), opts)
	if err != nil {
		return err
	}

	x0, err := parseState(x0Flag, exp.Problem().Dim())
	if err != nil {
		return err
	}

	p := tea.NewProgram(live)
	go func() {
		br, _ := it.Run(context.Background(), x0, param)
		close(feed)
		p.Send(viz.DoneMsg{Status: br.Status})
	}()

	_, err = p.Run()
	return err
}

func refineFold(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	prob, err := reg.GetProblem(args[0])
	if err != nil {
		return err
	}
	x0, err := parseState(x0Flag, prob.Dim())
	if err != nil {
		return err
	}

	es := eigen.Dense{WithVectors: true}
	fp, err := ma.FoldFromPoint(prob, x0, param, es)
	if err != nil {
		return err
	}
	pt, res := fp.Refine(x0, param, newton.Options{})
	if !res.Converged {
		return fmt.Errorf("fold refinement did not converge: %s", res.Status)
	}
	fmt.Printf("fold at p=%.10g (%d newton iterations)\n", pt.P, res.Iterations)

	nf, err := normalform.ComputeFold(prob, pt.X, pt.P, es)
	if err != nil {
		return err
	}
	fmt.Printf("normal form: a=%.6g b=%.6g\n", nf.A, nf.B)
	if nf.Degenerate(1e-8) {
		fmt.Println("degenerate (cusp candidate)")
	}
	return nil
}

func refineHopf(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	prob, err := reg.GetProblem(args[0])
	if err != nil {
		return err
	}
	x0, err := parseState(x0Flag, prob.Dim())
	if err != nil {
		return err
	}

	es := eigen.Dense{WithVectors: true}
	hp, omega0, err := ma.HopfFromPoint(prob, x0, param, es)
	if err != nil {
		return err
	}
	if omega != 0 {
		omega0 = omega
	}
	pt, w, res := hp.Refine(x0, param, omega0, newton.Options{})
	if !res.Converged {
		return fmt.Errorf("hopf refinement did not converge: %s", res.Status)
	}
	fmt.Printf("hopf at p=%.10g omega=%.10g (%d newton iterations)\n", pt.P, w, res.Iterations)

	nf, err := normalform.ComputeHopf(prob, pt.X, pt.P, es)
	if err != nil {
		return err
	}
	kind := "subcritical"
	if nf.Supercritical() {
		kind = "supercritical"
	}
	fmt.Printf("first lyapunov coefficient: %.6g (%s)\n", nf.L1, kind)
	return nil
}

func enumerateRoots(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	prob, err := reg.GetProblem(args[0])
	if err != nil {
		return err
	}
	x0, err := parseState(x0Flag, prob.Dim())
	if err != nil {
		return err
	}

	defl := newton.NewDeflation(2, 1)
	opts := newton.Options{}

	first := newton.Solve(prob, x0, param, opts)
	if !first.Converged {
		return fmt.Errorf("no root from initial guess: %s", first.Status)
	}
	defl.Push(first.X)
	fmt.Printf("root 1: %v\n", []float64(first.X))

	for len(defl.Roots) < maxRoots {
		res := newton.SolveDeflated(prob, defl, x0, param, opts)
		if !res.Converged {
			break
		}
		defl.Push(res.X)
		fmt.Printf("root %d: %v\n", len(defl.Roots), []float64(res.X))
	}
	fmt.Printf("found %d roots at p=%g\n", len(defl.Roots), param)
	return nil
}

func switchBranch(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd, args[0])
	if err != nil {
		return err
	}

	br, err := exp.Run(context.Background())
	if err != nil {
		return err
	}
	bps := br.SpecialOfType(bif.BranchPoint)
	if len(bps) == 0 {
		return fmt.Errorf("no branch point found (%d special points)", len(br.Special))
	}
	sp := bps[0]
	fmt.Printf("branch point at p=%.6g, switching...\n", sp.P)

	es := eigen.Dense{WithVectors: true}
	pt, _, err := normalform.SwitchBranch(exp.Problem(), sp, ds, es, newton.Options{})
	if err != nil {
		return err
	}
	fmt.Printf("switched to p=%.6g |x|=%.6g\n", pt.P, pt.X.Norm())

	opts := exp.Options()
	br2, err := continuation.RunBothside(context.Background(), exp.Problem(), opts, pt.X, pt.P, continuation.OrientForward)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id1, err := st.Save(args[0], param, ds, br)
	if err != nil {
		return err
	}
	id2, err := st.Save(args[0]+"_switched", pt.P, ds, br2)
	if err != nil {
		return err
	}
	fmt.Printf("saved %s and %s\n", id1, id2)
	return nil
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
	fmt.Fprintln(w, "ID\tPROBLEM\tTIME\tPOINTS\tSTATUS\tSPECIAL")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\n",
			run.ID,
			run.Problem,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Status,
			len(run.Special),
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	params, unstable, states, err := st.LoadBranch(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	br := &continuation.Branch{}
	for i := range states {
		br.Points = append(br.Points, continuation.Snapshot{
			X: bif.State(states[i]), P: params[i], Step: i, NUnstable: unstable[i],
		})
	}
	for _, sp := range meta.Special {
		if sp.Index >= 0 && sp.Index < len(br.Points) {
			br.Special = append(br.Special, continuation.SpecialPoint{
				P: sp.P, Index: sp.Index, Label: sp.Label,
				X: br.Points[sp.Index].X,
			})
		}
	}

	var m export.Measure = export.FirstComponent
	if measure == "norm" {
		m = export.StateNorm
	}

	fmt.Printf("run: %s\nproblem: %s\npoints: %d\n\n", meta.ID, meta.Problem, len(states))
	fmt.Println(export.BranchToASCII(br, m, 80, 15))

	if svgOut != "" {
		if err := os.WriteFile(svgOut, []byte(export.BranchToSVG(br, m, 800, 500)), 0644); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", svgOut)
	}
	return nil
}
