package geno

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsistent(t *testing.T) {
	tests := []struct {
		obs, founder int
		want         bool
	}{
		{A, A, true},
		{A, B, false},
		{B, B, true},
		{H, A, false},
		{H, B, false},
		{NotB, A, false},
		{NotB, B, false},
		{NotA, B, false},
		{NotA, A, false},
		{Missing, A, false},
		{Missing, Missing, false},
	}
	for _, tc := range tests {
		assert.Equalf(t, tc.want, Consistent(tc.obs, tc.founder), "Consistent(%s, %s)", Name(tc.obs), Name(tc.founder))
	}
}

func TestCodeSets(t *testing.T) {
	for g := Missing; g <= MaxObserved; g++ {
		assert.True(t, IsObserved(g))
	}
	assert.False(t, IsObserved(-1))
	assert.False(t, IsObserved(6))

	assert.True(t, IsFounderCode(0))
	assert.True(t, IsFounderCode(1))
	assert.True(t, IsFounderCode(3))
	assert.False(t, IsFounderCode(2))
	assert.False(t, IsFounderAllele(Missing))
}
