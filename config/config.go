// Package config holds the TOML settings of a map-estimation run.
package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/hhcho/crosshmm/cross"
	"github.com/hhcho/crosshmm/diag"
	"github.com/hhcho/crosshmm/genofile"
	"github.com/hhcho/crosshmm/mapest"
	"github.com/hhcho/crosshmm/sim"
)

var ErrInvalid = errors.New("config: invalid setting")

type Config struct {
	CrossType   string  `toml:"cross_type"`
	ErrorProb   float64 `toml:"error_prob"`
	MapFunction string  `toml:"map_function"`
	Validation  string  `toml:"validation"`

	MaxIterations int     `toml:"max_iterations"`
	Tol           float64 `toml:"tol"`

	LocalNumThreads int    `toml:"local_num_threads"`
	MemoryLimit     uint64 `toml:"memory_limit"`

	OutFile string `toml:"output_file"`

	DebugLevel int `toml:"debug_level"`

	Data       Data       `toml:"data"`
	Simulation Simulation `toml:"simulation"`
}

// Data names the input files of one chromosome. When GenoBinFile is empty
// the population is simulated instead.
type Data struct {
	GenoBinFile     string `toml:"geno_binary_file"`
	NumInds         int    `toml:"num_inds"`
	NumMarkers      int    `toml:"num_markers"`
	FounderGenoFile string `toml:"founder_geno_file"`
	CrossInfoFile   string `toml:"cross_info_file"`
	SexFile         string `toml:"sex_file"`
	MarkerPosFile   string `toml:"marker_position_file"`
	XChr            bool   `toml:"x_chr"`

	IndMissUB  float64 `toml:"imiss_ub"`
	GenoMissUB float64 `toml:"gmiss"`
}

type Simulation struct {
	NumInds int `toml:"num_inds"`
	// MarkerPositions are in cM, converted with the configured map function.
	MarkerPositions []float64 `toml:"marker_positions"`
	XChr            bool      `toml:"x_chr"`
	FemaleRate      float64   `toml:"female_rate"`
	MissingRate     float64   `toml:"missing_rate"`
	Seed            uint64    `toml:"seed"`
}

func Default() *Config {
	return &Config{
		CrossType:       string(cross.RISelf8),
		ErrorProb:       1e-4,
		MapFunction:     string(mapest.Haldane),
		Validation:      cross.ValidateFull.String(),
		MaxIterations:   10000,
		Tol:             1e-6,
		LocalNumThreads: runtime.NumCPU(),
		DebugLevel:      1,
		Data: Data{
			IndMissUB:  1,
			GenoMissUB: 1,
		},
		Simulation: Simulation{
			NumInds:         200,
			MarkerPositions: []float64{0, 5, 10, 20, 35, 50},
			FemaleRate:      0.5,
			MissingRate:     0.05,
			Seed:            1,
		},
	}
}

// Load decodes the files in order on top of Default, so later files override
// earlier ones (a shared file followed by a local one, say), then validates.
func Load(paths ...string) (*Config, error) {
	config := Default()
	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if _, err := cross.ParseType(c.CrossType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := cross.ParseValidationLevel(c.Validation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := mapest.ParseMapFunction(c.MapFunction); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !(c.ErrorProb >= 0 && c.ErrorProb < 1) {
		return fmt.Errorf("%w: error_prob %g not in [0, 1)", ErrInvalid, c.ErrorProb)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: max_iterations %d", ErrInvalid, c.MaxIterations)
	}
	if !(c.Tol > 0 && c.Tol < 1) {
		return fmt.Errorf("%w: tol %g", ErrInvalid, c.Tol)
	}
	if c.LocalNumThreads < 0 {
		return fmt.Errorf("%w: local_num_threads %d", ErrInvalid, c.LocalNumThreads)
	}

	if c.UseData() {
		d := c.Data
		if d.NumInds <= 0 || d.NumMarkers < 2 {
			return fmt.Errorf("%w: data needs num_inds > 0 and num_markers > 1, have %d and %d", ErrInvalid, d.NumInds, d.NumMarkers)
		}
		if !(d.IndMissUB >= 0 && d.IndMissUB <= 1) || !(d.GenoMissUB >= 0 && d.GenoMissUB <= 1) {
			return fmt.Errorf("%w: imiss_ub and gmiss must be in [0, 1]", ErrInvalid)
		}
		return nil
	}

	s := c.Simulation
	if s.NumInds <= 0 {
		return fmt.Errorf("%w: simulation.num_inds %d", ErrInvalid, s.NumInds)
	}
	if len(s.MarkerPositions) < 2 {
		return fmt.Errorf("%w: simulation.marker_positions needs at least two markers", ErrInvalid)
	}
	for i := 1; i < len(s.MarkerPositions); i++ {
		if s.MarkerPositions[i] < s.MarkerPositions[i-1] {
			return fmt.Errorf("%w: simulation.marker_positions must not decrease", ErrInvalid)
		}
	}
	if !(s.FemaleRate >= 0 && s.FemaleRate <= 1) {
		return fmt.Errorf("%w: simulation.female_rate %g", ErrInvalid, s.FemaleRate)
	}
	if !(s.MissingRate >= 0 && s.MissingRate < 1) {
		return fmt.Errorf("%w: simulation.missing_rate %g", ErrInvalid, s.MissingRate)
	}
	return nil
}

// UseData reports whether the run reads a dataset rather than simulating one.
func (c *Config) UseData() bool {
	return c.Data.GenoBinFile != ""
}

func (c *Config) DataFiles() genofile.Files {
	d := c.Data
	return genofile.Files{
		GenoBinFile:     d.GenoBinFile,
		NumInds:         d.NumInds,
		NumMarkers:      d.NumMarkers,
		FounderGenoFile: d.FounderGenoFile,
		CrossInfoFile:   d.CrossInfoFile,
		SexFile:         d.SexFile,
		MarkerPosFile:   d.MarkerPosFile,
	}
}

func (c *Config) FilterParams() genofile.FilterParams {
	return genofile.FilterParams{IndMissBound: c.Data.IndMissUB, GenoMissBound: c.Data.GenoMissUB}
}

// Cross builds the configured cross model, reporting diagnostics to sink.
func (c *Config) Cross(sink diag.Sink) (cross.Cross, error) {
	t, err := cross.ParseType(c.CrossType)
	if err != nil {
		return nil, err
	}
	level, err := cross.ParseValidationLevel(c.Validation)
	if err != nil {
		return nil, err
	}
	return cross.New(t, cross.WithValidation(level), cross.WithSink(sink))
}

func (c *Config) MapFunc() mapest.MapFunction {
	f, err := mapest.ParseMapFunction(c.MapFunction)
	if err != nil {
		return mapest.Haldane
	}
	return f
}

func (c *Config) RefineOptions(sink diag.Sink) mapest.Options {
	return mapest.Options{
		MaxIterations: c.MaxIterations,
		Tol:           c.Tol,
		Threads:       c.LocalNumThreads,
		Sink:          sink,
	}
}

// SimParams converts the simulation table into sim.Params.
func (c *Config) SimParams() (sim.Params, error) {
	s := c.Simulation
	rf, err := mapest.RecFracs(s.MarkerPositions, c.MapFunc())
	if err != nil {
		return sim.Params{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return sim.Params{
		NumInd:      s.NumInds,
		RecFrac:     rf,
		ErrorProb:   c.ErrorProb,
		MissingRate: s.MissingRate,
		IsXChr:      s.XChr,
		FemaleRate:  s.FemaleRate,
		Seed:        s.Seed,
		Threads:     c.LocalNumThreads,
	}, nil
}
