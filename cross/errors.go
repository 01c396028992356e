package cross

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGenotype is returned when a genotype code is outside the
	// state space of the cross type. It is a caller bug, never a data issue.
	ErrInvalidGenotype = errors.New("cross: genotype value not allowed")

	// ErrUnknownType is returned by New and ParseType for unregistered designs.
	ErrUnknownType = errors.New("cross: unknown cross type")

	// ErrCrossInfo is returned when an individual's cross information cannot
	// be turned into a founder topology.
	ErrCrossInfo = errors.New("cross: invalid cross info")

	// ErrProbability is returned for an error probability outside [0,1) or a
	// recombination fraction outside [0,0.5].
	ErrProbability = errors.New("cross: probability out of range")

	// ErrDimension is returned when gamma matrices or founder columns do not
	// match the state space.
	ErrDimension = errors.New("cross: dimension mismatch")

	// ErrAlleles is returned by GenoNames when too few allele names are given.
	ErrAlleles = errors.New("cross: too few allele names")
)

// GenotypeError describes a genotype code rejected by CheckGeno.
type GenotypeError struct {
	Cross    Type
	Gen      int
	Observed bool
}

func (e *GenotypeError) Error() string {
	kind := "true"
	if e.Observed {
		kind = "observed"
	}
	return fmt.Sprintf("cross %s: %s genotype %d not allowed", e.Cross, kind, e.Gen)
}

func (e *GenotypeError) Unwrap() error {
	return ErrInvalidGenotype
}
