// Package geno holds the fixed genotype encodings shared by every cross type.
//
// Observed calls use a small code set: 0 is missing, 1/2/3 are the AA/AB/BB
// calls of a biallelic marker and 4/5 are the partial calls "not BB" and
// "not AA". Founder panels use the subset {0, 1, 3}. Latent genotypes are
// numbered 1..G per cross type and are not described here.
package geno

// Observed genotype codes.
const (
	Missing = 0
	A       = 1
	H       = 2
	B       = 3
	NotB    = 4
	NotA    = 5
)

// MaxObserved is the largest observed code any cross type accepts.
const MaxObserved = NotA

// FounderCodes is the set of values allowed in a founder genotype panel.
var FounderCodes = []int{Missing, A, B}

// IsObserved reports whether g is one of the observed codes.
func IsObserved(g int) bool {
	return g >= Missing && g <= MaxObserved
}

// IsFounderAllele reports whether f is an informative founder call (A or B).
func IsFounderAllele(f int) bool {
	return f == A || f == B
}

// IsFounderCode reports whether f may appear in a founder panel.
func IsFounderCode(f int) bool {
	for _, c := range FounderCodes {
		if f == c {
			return true
		}
	}
	return false
}

// Consistent reports whether an observed call matches an inbred founder's
// allele. Only the A and B calls can match; het and partial calls never do.
func Consistent(obs, founder int) bool {
	return IsFounderAllele(founder) && obs == founder
}

// Name gives a short label for an observed code.
func Name(g int) string {
	switch g {
	case Missing:
		return "-"
	case A:
		return "A"
	case H:
		return "H"
	case B:
		return "B"
	case NotB:
		return "notB"
	case NotA:
		return "notA"
	}
	return "?"
}
