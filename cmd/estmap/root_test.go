package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hhcho/crosshmm/config"
	"github.com/hhcho/crosshmm/cross"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRunWritesMap(t *testing.T) {
	dir := t.TempDir()
	outFile := filepath.Join(dir, "map.txt")
	path := writeConfig(t, dir, "config.toml", `
cross_type = "riself"
error_prob = 0.01
tol = 1e-4
local_num_threads = 2
output_file = "`+filepath.ToSlash(outFile)+`"

[simulation]
num_inds = 150
marker_positions = [0.0, 10.0, 25.0]
seed = 4
`)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path})
	require.NoError(t, cmd.Execute())

	b, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "marker\tpos_cM\tinput_cM\trec_frac", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "M1\t0.000\t0.000\t"))
	assert.True(t, strings.HasPrefix(lines[3], "M3\t"))
	assert.True(t, strings.HasSuffix(lines[3], "\t25.000\tNA"))
	assert.Contains(t, lines[4], "converged true")
}

func TestCrossFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.toml", `
[simulation]
num_inds = 40
marker_positions = [0.0, 20.0]
`)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-c", path, "--cross", "dh"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "M2\t")

	cmd = newRootCmd()
	cmd.SetArgs([]string{"-c", path, "--cross", "f2"})
	assert.ErrorIs(t, cmd.Execute(), config.ErrInvalid)
}

func TestSimulateThenEstimate(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	base := writeConfig(t, dir, "config.toml", `
cross_type = "riself8"
error_prob = 0.01
tol = 1e-4

[simulation]
num_inds = 100
marker_positions = [0.0, 10.0, 25.0]
seed = 3
`)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"simulate", "-c", base, "-o", dataDir})
	require.NoError(t, cmd.Execute())
	for _, name := range []string{"geno.bin", "founder_geno.csv", "cross_info.csv", "marker_pos.csv", "data.toml"} {
		assert.FileExists(t, filepath.Join(dataDir, name))
	}
	assert.NoFileExists(t, filepath.Join(dataDir, "sex.csv"))

	var out bytes.Buffer
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-c", base, "-c", filepath.Join(dataDir, "data.toml")})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[2], "M2\t"))
	assert.Contains(t, lines[2], "\t10.000\t")
	assert.True(t, strings.HasPrefix(lines[4], "# loglik"))
}

func TestCrossesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"crosses"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, out.String(), "riself8\tgenotypes=8\tfounders=8\tx_chr=false")
	assert.Contains(t, out.String(), "bc\tgenotypes=2\tfounders=0\tx_chr=true\t[AA AB]")
}

func TestXChrWithoutSupportRunsAsAutosome(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	base := writeConfig(t, dir, "config.toml", `
cross_type = "riself8"
error_prob = 0.01
tol = 1e-4

[simulation]
num_inds = 60
marker_positions = [0.0, 15.0]
x_chr = true
seed = 8
`)

	// simulating an X for a design without X support gives an autosome
	cmd := newRootCmd()
	cmd.SetArgs([]string{"simulate", "-c", base, "-o", dataDir})
	require.NoError(t, cmd.Execute())
	assert.NoFileExists(t, filepath.Join(dataDir, "sex.csv"))

	xchr := writeConfig(t, dir, "x.toml", "[data]\nx_chr = true\n")
	var out bytes.Buffer
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-c", base, "-c", filepath.Join(dataDir, "data.toml"), "-c", xchr})
	require.NoError(t, cmd.Execute())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "M2\t"))

	// same for the simulated path
	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-c", base, "--cross", "riself"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "M2\t")
}

func TestMissingCrossInfoRejected(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	base := writeConfig(t, dir, "config.toml", `
cross_type = "riself8"

[simulation]
num_inds = 20
marker_positions = [0.0, 10.0]
`)
	cmd := newRootCmd()
	cmd.SetArgs([]string{"simulate", "-c", base, "-o", dataDir})
	require.NoError(t, cmd.Execute())

	noInfo := writeConfig(t, dir, "noinfo.toml", "[data]\ncross_info_file = \"\"\n")
	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"-c", base, "-c", filepath.Join(dataDir, "data.toml"), "-c", noInfo})
	assert.ErrorIs(t, cmd.Execute(), cross.ErrCrossInfo)
}
