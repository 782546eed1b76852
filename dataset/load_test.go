package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// writeFixtureDir lays out a minimal data directory: a 3-feature by
// 4-sample beta matrix with one missing cell, group labels, and
// phenotypes.
func writeFixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	matrix := "" +
		"cpg\tS1\tS2\tS3\tS4\n" +
		"cg01\t0.10\t0.20\t0.30\t0.40\n" +
		"cg02\t0.50\tNA\t0.70\t0.80\n" +
		"cg03\t0.90\t0.85\t0.15\t0.25\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, MatrixFileName), []byte(matrix), 0o644))

	groups := "" +
		"sample,group\n" +
		"S1,case\n" +
		"S2,control\n" +
		"S3,Case\n" +
		"S4,unknown\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, GroupsFileName), []byte(groups), 0o644))

	phenotypes := "" +
		"sample,age,sex\n" +
		"S1,64,F\n" +
		"S2,58,M\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, PhenotypesFileName), []byte(phenotypes), 0o644))

	return dir
}

func TestLoad(t *testing.T) {
	dir := writeFixtureDir(t)

	l, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"S1", "S2", "S3", "S4"}, l.SampleIDs)
	assert.Equal(t, []string{"cg01", "cg02", "cg03"}, l.FeatureIDs)

	// Transposed: rows are samples.
	r, c := l.Matrix.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 0.10, l.Matrix.At(0, 0))
	assert.Equal(t, 0.25, l.Matrix.At(3, 2))
	assert.True(t, math.IsNaN(l.Matrix.At(1, 1)), "NA cell must load as missing")

	// Group labels are lower-cased.
	assert.Equal(t, "case", l.Groups["S3"])
	assert.Equal(t, "unknown", l.Groups["S4"])

	require.Contains(t, l.Phenotypes, "S1")
	assert.Equal(t, "64", l.Phenotypes["S1"]["age"])

	assert.Equal(t, 4, l.Report.SamplesLoaded)
	assert.Equal(t, 3, l.Report.FeaturesLoaded)
	assert.False(t, l.Report.Truncated)
}

func TestLoadTruncation(t *testing.T) {
	dir := writeFixtureDir(t)

	l, err := Load(dir, WithMaxSamples(2), WithMaxFeatures(2))
	require.NoError(t, err)

	assert.Equal(t, []string{"S1", "S2"}, l.SampleIDs)
	assert.Equal(t, []string{"cg01", "cg02"}, l.FeatureIDs)
	assert.True(t, l.Report.Truncated)
	assert.Equal(t, 2, l.Report.SamplesLoaded)
	assert.Equal(t, 2, l.Report.FeaturesLoaded)
}

func TestLoadInfeasibleTruncationFallsBack(t *testing.T) {
	dir := writeFixtureDir(t)

	var warned error
	restore := captureWarnings(&warned)
	defer restore()

	l, err := Load(dir, WithMaxSamples(100))
	require.NoError(t, err)

	// The full table is loaded and the fallback is reported, not fatal.
	assert.Equal(t, 4, l.Report.SamplesLoaded)
	assert.False(t, l.Report.Truncated)
	assert.NotEmpty(t, l.Report.FallbackReason)

	var trunc *mserrors.TruncationWarning
	require.True(t, mserrors.As(warned, &trunc))
	assert.Equal(t, 100, trunc.Requested)
	assert.Equal(t, 4, trunc.Loaded)
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadWithoutPhenotypes(t *testing.T) {
	dir := writeFixtureDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, PhenotypesFileName)))

	l, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, l.Phenotypes)
}

func TestLoadThenOrganize(t *testing.T) {
	dir := writeFixtureDir(t)

	l, err := Load(dir)
	require.NoError(t, err)

	org, err := Organize(l, 42)
	require.NoError(t, err)

	assert.Len(t, org.LabeledIndices(), 3, "the unknown-label sample keeps a missing target")
}
