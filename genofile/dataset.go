package genofile

import (
	"fmt"

	"github.com/hhcho/crosshmm/design"
	"github.com/hhcho/crosshmm/geno"
	"go.dedis.ch/onet/v3/log"
)

// FilterParams are the missing-data bounds applied when loading. A marker or
// individual whose missing rate exceeds its bound is dropped; a bound of 1
// keeps everything.
type FilterParams struct {
	IndMissBound  float64
	GenoMissBound float64
}

func NoFilter() FilterParams {
	return FilterParams{IndMissBound: 1, GenoMissBound: 1}
}

// Files names the inputs of one chromosome. Only GenoBinFile is required.
type Files struct {
	GenoBinFile     string
	NumInds         int
	NumMarkers      int
	FounderGenoFile string
	CrossInfoFile   string
	SexFile         string // one column, 1 = female
	MarkerPosFile   string
	Delim           rune
}

type Dataset struct {
	Geno        [][]int
	FounderGeno [][]int
	CrossInfo   [][]int
	IsFemale    []bool
	MarkerNames []string
	Positions   []float64

	// KeptInds and KeptMarkers are the 0-based rows and columns of the
	// input files that survived filtering.
	KeptInds    []int
	KeptMarkers []int
}

// MissingRates returns the share of missing calls per individual and per
// marker.
func MissingRates(g [][]int) (ind, mar []float64) {
	ind = make([]float64, len(g))
	if len(g) == 0 {
		return ind, nil
	}
	mar = make([]float64, len(g[0]))
	for i, row := range g {
		for j, v := range row {
			if v == geno.Missing {
				ind[i]++
				mar[j]++
			}
		}
	}
	for i := range ind {
		ind[i] /= float64(len(mar))
	}
	for j := range mar {
		mar[j] /= float64(len(ind))
	}
	return ind, mar
}

// Load reads the dataset, drops markers and then individuals with too much
// missing data, and subsets the companion files to match.
func Load(files Files, filt FilterParams) (*Dataset, error) {
	if files.NumInds <= 0 || files.NumMarkers <= 0 {
		return nil, fmt.Errorf("genofile: need positive dimensions, have %d x %d", files.NumInds, files.NumMarkers)
	}
	if files.Delim == 0 {
		files.Delim = ','
	}

	gfs, err := NewGenoFileStream(files.GenoBinFile, uint64(files.NumInds), uint64(files.NumMarkers))
	if err != nil {
		return nil, err
	}
	defer gfs.Close()

	if filt.IndMissBound < 1 || filt.GenoMissBound < 1 {
		if err := applyFilters(gfs, filt); err != nil {
			return nil, err
		}
	}

	ds := &Dataset{
		KeptInds:    kept(gfs.RowFilt(), files.NumInds),
		KeptMarkers: kept(gfs.ColFilt(), files.NumMarkers),
	}
	if ds.Geno, err = gfs.ReadAll(); err != nil {
		return nil, err
	}
	log.Lvl1("Loaded", len(ds.KeptInds), "of", files.NumInds, "individuals and", len(ds.KeptMarkers), "of", files.NumMarkers, "markers from", files.GenoBinFile)

	if files.FounderGenoFile != "" {
		fg, err := LoadIntMatrixFromFile(files.FounderGenoFile, files.Delim, geno.Missing)
		if err != nil {
			return nil, err
		}
		for f, row := range fg {
			if len(row) != files.NumMarkers {
				return nil, fmt.Errorf("genofile: founder %d has %d markers, want %d", f+1, len(row), files.NumMarkers)
			}
			fg[f] = subset(row, ds.KeptMarkers)
		}
		ds.FounderGeno = fg
	}

	if files.CrossInfoFile != "" {
		ci, err := LoadIntMatrixFromFile(files.CrossInfoFile, files.Delim, design.NA)
		if err != nil {
			return nil, err
		}
		if len(ci) != files.NumInds {
			return nil, fmt.Errorf("genofile: %d cross_info rows for %d individuals", len(ci), files.NumInds)
		}
		ds.CrossInfo = make([][]int, len(ds.KeptInds))
		for i, orig := range ds.KeptInds {
			ds.CrossInfo[i] = ci[orig]
		}
	}

	if files.SexFile != "" {
		sex, err := LoadIntMatrixFromFile(files.SexFile, files.Delim, -1)
		if err != nil {
			return nil, err
		}
		if len(sex) != files.NumInds {
			return nil, fmt.Errorf("genofile: %d sexes for %d individuals", len(sex), files.NumInds)
		}
		ds.IsFemale = make([]bool, len(ds.KeptInds))
		for i, orig := range ds.KeptInds {
			if len(sex[orig]) != 1 || (sex[orig][0] != 0 && sex[orig][0] != 1) {
				return nil, fmt.Errorf("genofile: sex of individual %d must be 0 or 1", orig+1)
			}
			ds.IsFemale[i] = sex[orig][0] == 1
		}
	}

	if files.MarkerPosFile != "" {
		names, pos, err := LoadMarkerPositionFile(files.MarkerPosFile, files.Delim)
		if err != nil {
			return nil, err
		}
		if len(pos) != files.NumMarkers {
			return nil, fmt.Errorf("genofile: %d marker positions for %d markers", len(pos), files.NumMarkers)
		}
		ds.Positions = make([]float64, len(ds.KeptMarkers))
		ds.MarkerNames = make([]string, len(ds.KeptMarkers))
		for j, orig := range ds.KeptMarkers {
			ds.Positions[j] = pos[orig]
			ds.MarkerNames[j] = names[orig]
		}
	} else {
		all := MarkerNames(files.NumMarkers)
		ds.MarkerNames = make([]string, len(ds.KeptMarkers))
		for j, orig := range ds.KeptMarkers {
			ds.MarkerNames[j] = all[orig]
		}
	}
	return ds, nil
}

// applyFilters makes one pass for marker missingness and a second, over the
// kept markers, for individual missingness.
func applyFilters(gfs *GenoFileStream, filt FilterParams) error {
	rows, err := gfs.ReadAll()
	if err != nil {
		return err
	}
	_, mar := MissingRates(rows)
	keepMar := make([]bool, len(mar))
	for j, r := range mar {
		keepMar[j] = r <= filt.GenoMissBound
	}
	if _, err := gfs.UpdateColFilt(keepMar); err != nil {
		return err
	}

	if rows, err = gfs.ReadAll(); err != nil {
		return err
	}
	ind, _ := MissingRates(rows)
	keepInd := make([]bool, len(ind))
	for i, r := range ind {
		// with no markers left every rate is NaN and nobody is kept
		keepInd[i] = r <= filt.IndMissBound
	}
	_, err = gfs.UpdateRowFilt(keepInd)
	return err
}

func kept(filt []bool, n int) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if filt == nil || filt[i] {
			out = append(out, i)
		}
	}
	return out
}

func subset(row []int, idx []int) []int {
	out := make([]int, len(idx))
	for j, orig := range idx {
		out[j] = row[orig]
	}
	return out
}
