// Package design checks per-individual cross metadata and founder genotype
// panels. The checks are structural only; they never look at an HMM run.
//
// Every check returns a Report that accumulates what it found. A report with
// no messages is clean. Reports are data, not errors: callers decide whether
// a malformed design should stop the analysis.
package design

import (
	"fmt"
	"math"

	"github.com/hhcho/crosshmm/diag"
)

// NA marks a missing entry in a cross-info matrix.
const NA = math.MinInt32

// Report collects the findings of one check.
type Report struct {
	NMissing int
	NInvalid int
	Messages []string
}

// OK reports whether the check found nothing wrong.
func (r Report) OK() bool {
	return len(r.Messages) == 0
}

// Emit sends every message to s and returns OK.
func (r Report) Emit(s diag.Sink) bool {
	for _, m := range r.Messages {
		diag.Messagef(s, "%s", m)
	}
	return r.OK()
}

func (r *Report) addf(format string, args ...interface{}) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// CrossInfo checks that every row of crossInfo is a permutation of
// 1..nFounders. It does not stop at the first bad row: missing entries and
// invalid entries are counted over the whole matrix. The invalid count also
// includes, per row, the absolute deviation of each value's count from one,
// so a duplicated founder contributes twice (once for the duplicate and once
// for the founder it displaced). A design with founders needs at least one
// row.
func CrossInfo(crossInfo [][]int, nFounders int) Report {
	var rep Report
	if len(crossInfo) == 0 && nFounders > 0 {
		rep.addf("cross_info is required, with %d columns indicating the order of the cross", nFounders)
		return rep
	}
	for i, row := range crossInfo {
		if len(row) != nFounders {
			rep.addf("cross_info should have %d columns, indicating the order of the cross (row %d has %d)",
				nFounders, i+1, len(row))
			return rep
		}
	}

	counts := make([]int, nFounders)
	for _, row := range crossInfo {
		for j := range counts {
			counts[j] = 0
		}
		for _, v := range row {
			switch {
			case v == NA:
				rep.NMissing++
			case v < 1 || v > nFounders:
				rep.NInvalid++
			default:
				counts[v-1]++
			}
		}
		for _, c := range counts {
			if c != 1 {
				rep.NInvalid += abs(c - 1)
			}
		}
	}

	if rep.NMissing > 0 {
		rep.addf("cross_info has %d missing values (it shouldn't)", rep.NMissing)
	}
	if rep.NInvalid > 0 {
		rep.addf("cross_info has %d invalid values; each row should be permutation of {1, 2, ..., %d}",
			rep.NInvalid, nFounders)
	}
	return rep
}

// FounderGenoSize checks that the panel has nFounders rows of nMarkers columns.
func FounderGenoSize(founderGeno [][]int, nFounders, nMarkers int) Report {
	var rep Report
	for _, row := range founderGeno {
		if len(row) != nMarkers {
			rep.addf("founder_geno has incorrect number of markers")
			break
		}
	}
	if len(founderGeno) != nFounders {
		rep.addf("founder_geno should have %d founders", nFounders)
	}
	return rep
}

// FounderGenoValues checks that every panel entry is in allowed. It stops at
// the first invalid value.
func FounderGenoValues(founderGeno [][]int, allowed []int) Report {
	var rep Report
	for f, row := range founderGeno {
		for mar, v := range row {
			if !contains(allowed, v) {
				rep.NInvalid = 1
				rep.addf("founder_geno contains invalid values; should be in %v (founder %d, marker %d has %d)",
					allowed, f+1, mar+1, v)
				return rep
			}
		}
	}
	return rep
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
