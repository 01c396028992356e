package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/hhcho/crosshmm/config"
	"github.com/hhcho/crosshmm/cross"
	"github.com/hhcho/crosshmm/diag"
	"github.com/hhcho/crosshmm/genofile"
	"github.com/hhcho/crosshmm/hmm"
	"github.com/hhcho/crosshmm/mapest"
	"github.com/hhcho/crosshmm/sim"
	"github.com/raulk/go-watchdog"
	"github.com/spf13/cobra"
	"go.dedis.ch/onet/v3/log"
)

type rootOptions struct {
	configPaths []string
	crossType   string
	outDir      string
}

// newRootCmd builds the estmap command tree.
func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "estmap",
		Short: "Estimate a genetic map for an experimental cross",
		Long: `Estimate the marker map of one chromosome by EM, from the genotype
files named in the [data] table of the config, or from a population
simulated per the [simulation] table when no files are given.

Config files are TOML; when several are given, later files override
earlier ones.`,
		Example:       "  estmap -c configGlobal.toml -c configLocal.toml --cross riself4",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          o.run,
	}
	rootCmd.PersistentFlags().StringSliceVarP(&o.configPaths, "config", "c", nil, "TOML config file (repeatable)")
	rootCmd.PersistentFlags().StringVar(&o.crossType, "cross", "", "cross type, overriding cross_type in the config")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a population and write it as a dataset",
		Long: `Simulate a population per the [simulation] table and write its genotype,
founder, cross-order, sex and map files to --out-dir, together with a
data.toml holding the matching [data] table.`,
		Args: cobra.NoArgs,
		RunE: o.simulate,
	}
	simulateCmd.Flags().StringVarP(&o.outDir, "out-dir", "o", ".", "output directory")

	rootCmd.AddCommand(simulateCmd, &cobra.Command{
		Use:     "crosses",
		Short:   "List the supported cross designs",
		Aliases: []string{"designs"},
		Args:    cobra.NoArgs,
		RunE:    listCrosses,
	})
	return rootCmd
}

// Execute runs the command line. This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// setup loads the config and applies its process-wide settings. The returned
// function releases the memory watchdog.
func (o *rootOptions) setup() (*config.Config, func(), error) {
	conf, err := config.Load(o.configPaths...)
	if err != nil {
		return nil, nil, err
	}
	if o.crossType != "" {
		conf.CrossType = o.crossType
		if err := conf.Validate(); err != nil {
			return nil, nil, err
		}
	}
	log.SetDebugVisible(conf.DebugLevel)

	stop := func() {}
	if conf.MemoryLimit > 0 {
		err, stopFn := watchdog.HeapDriven(conf.MemoryLimit, 40, watchdog.NewAdaptivePolicy(0.5))
		if err != nil {
			return nil, nil, err
		}
		stop = stopFn
	}
	if conf.LocalNumThreads > 0 {
		runtime.GOMAXPROCS(conf.LocalNumThreads)
	}
	return conf, stop, nil
}

// input is one chromosome ready for decoding.
type input struct {
	data        *hmm.Data
	markerNames []string
	positions   []float64 // known map, nil if none
}

func (o *rootOptions) run(cmd *cobra.Command, args []string) error {
	conf, stopWatchdog, err := o.setup()
	if err != nil {
		return err
	}
	defer stopWatchdog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	c, err := conf.Cross(diag.Default)
	if err != nil {
		return err
	}

	// a design without X handling says so through its sink and decodes the
	// chromosome as an autosome
	isXChr := conf.Simulation.XChr
	if conf.UseData() {
		isXChr = conf.Data.XChr
	}
	if isXChr && !c.CheckHandleXChr(true) {
		isXChr = false
	}

	var in *input
	if conf.UseData() {
		in, err = loadInput(conf, c, isXChr)
	} else {
		in, err = simulateInput(ctx, conf, c, isXChr)
	}
	if err != nil {
		return err
	}

	res, err := estimate(ctx, conf, c, in)
	if res == nil {
		return err
	}
	if err != nil {
		log.Warn("Map estimation stopped early:", err)
	}

	out := cmd.OutOrStdout()
	if conf.OutFile != "" {
		f, ferr := os.Create(conf.OutFile)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		out = f
	}
	if werr := writeMap(out, res, in, conf.MapFunc()); werr != nil {
		return werr
	}
	return err
}

func simulateInput(ctx context.Context, conf *config.Config, c cross.Cross, isXChr bool) (*input, error) {
	params, err := conf.SimParams()
	if err != nil {
		return nil, err
	}
	params.IsXChr = isXChr
	start := time.Now()
	pop, err := sim.Simulate(ctx, c, params)
	if err != nil {
		return nil, err
	}
	log.Lvl1(time.Now().Format(time.StampMilli), "Simulated", params.NumInd, "individuals at", len(params.RecFrac)+1,
		"markers; observed", fmt.Sprintf("%.3f", pop.ObservedRate()), time.Since(start))

	pos := conf.Simulation.MarkerPositions
	return &input{
		data:        pop.Data(),
		markerNames: genofile.MarkerNames(len(pos)),
		positions:   pos,
	}, nil
}

// loadInput reads the dataset and checks its cross info before any context
// is built from it.
func loadInput(conf *config.Config, c cross.Cross, isXChr bool) (*input, error) {
	ds, err := genofile.Load(conf.DataFiles(), conf.FilterParams())
	if err != nil {
		return nil, err
	}
	if len(ds.Geno) == 0 || len(ds.KeptMarkers) < 2 {
		return nil, fmt.Errorf("%d individuals and %d markers left after filtering", len(ds.Geno), len(ds.KeptMarkers))
	}

	if !c.CheckCrossInfo(ds.CrossInfo, isXChr) {
		return nil, fmt.Errorf("%w: see messages above", cross.ErrCrossInfo)
	}
	crossInfo := ds.CrossInfo
	if c.NFounders() == 0 {
		crossInfo = nil
	}
	inds, err := cross.NewContexts(isXChr, ds.IsFemale, crossInfo, len(ds.Geno))
	if err != nil {
		return nil, err
	}
	return &input{
		data:        &hmm.Data{Geno: ds.Geno, FounderGeno: ds.FounderGeno, Inds: inds},
		markerNames: ds.MarkerNames,
		positions:   ds.Positions,
	}, nil
}

// estimate decodes the input and refines its map, starting from the known
// map when there is one.
func estimate(ctx context.Context, conf *config.Config, c cross.Cross, in *input) (*mapest.Result, error) {
	model, err := hmm.New(c, in.data, conf.ErrorProb, hmm.WithThreads(conf.LocalNumThreads))
	if err != nil {
		return nil, err
	}

	var init []float64
	if conf.UseData() && in.positions != nil {
		if init, err = mapest.RecFracs(in.positions, conf.MapFunc()); err != nil {
			return nil, err
		}
	} else {
		init = make([]float64, in.data.NumMarkers()-1)
		for i := range init {
			init[i] = 0.25
		}
	}
	return mapest.Refine(ctx, model, c, in.data.Inds, init, conf.RefineOptions(diag.Default))
}

func writeMap(w io.Writer, res *mapest.Result, in *input, f mapest.MapFunction) error {
	pos := res.Positions(f)
	if _, err := fmt.Fprintf(w, "marker\tpos_cM\tinput_cM\trec_frac\n"); err != nil {
		return err
	}
	for i, p := range pos {
		known := "NA"
		if in.positions != nil {
			known = fmt.Sprintf("%.3f", in.positions[i]-in.positions[0])
		}
		rf := "NA"
		if i < len(res.RecFrac) {
			rf = fmt.Sprintf("%.5f", res.RecFrac[i])
		}
		if _, err := fmt.Fprintf(w, "%s\t%.3f\t%s\t%s\n", in.markerNames[i], p, known, rf); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "# loglik %.6f, %d iterations, converged %t\n", res.LogLik, res.Iterations, res.Converged)
	return err
}

func listCrosses(cmd *cobra.Command, args []string) error {
	alleles := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	w := cmd.OutOrStdout()
	for _, t := range cross.Types() {
		c, err := cross.New(t, cross.WithSink(diag.Discard{}))
		if err != nil {
			return err
		}
		names, err := c.GenoNames(alleles[:c.NAlleles()], false)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\tgenotypes=%d\tfounders=%d\tx_chr=%t\t%v\n",
			t, c.NGen(false), c.NFounders(), c.CheckHandleXChr(true), names)
	}
	return nil
}
