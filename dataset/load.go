package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	mserrors "github.com/epimetry/microscope/pkg/errors"
	mslog "github.com/epimetry/microscope/pkg/log"
)

// Default file names looked up under the source directory.
const (
	MatrixFileName     = "matrix_beta.tsv"
	GroupsFileName     = "groups.csv"
	PhenotypesFileName = "phenotypes.csv"
)

// LoadOption is a functional option for Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	maxFeatures    int
	maxSamples     int
	matrixFile     string
	groupsFile     string
	phenotypesFile string
}

// WithMaxFeatures caps the number of feature rows read from the beta
// matrix. Zero or negative means no cap.
func WithMaxFeatures(n int) LoadOption {
	return func(c *loadConfig) {
		c.maxFeatures = n
	}
}

// WithMaxSamples caps the number of sample columns read from the beta
// matrix. Zero or negative means no cap. An infeasible cap (more samples
// than the table holds) falls back to a full load with a warning.
func WithMaxSamples(n int) LoadOption {
	return func(c *loadConfig) {
		c.maxSamples = n
	}
}

// WithMatrixFile overrides the beta matrix file name.
func WithMatrixFile(name string) LoadOption {
	return func(c *loadConfig) {
		c.matrixFile = name
	}
}

// WithGroupsFile overrides the group-label file name.
func WithGroupsFile(name string) LoadOption {
	return func(c *loadConfig) {
		c.groupsFile = name
	}
}

// WithPhenotypesFile overrides the phenotype file name. An empty name
// skips phenotype loading.
func WithPhenotypesFile(name string) LoadOption {
	return func(c *loadConfig) {
		c.phenotypesFile = name
	}
}

// Load reads a beta matrix and its sample metadata from dir.
//
// The matrix file is tab-separated with rows = features and columns =
// samples: the header row carries sample IDs, the first column carries
// CpG feature IDs. Load transposes it so the returned matrix has rows =
// samples. Empty cells and "NA"/"NaN" parse as missing values.
func Load(dir string, opts ...LoadOption) (l *Loaded, err error) {
	defer mserrors.Recover(&err, "dataset.Load")

	cfg := loadConfig{
		matrixFile:     MatrixFileName,
		groupsFile:     GroupsFileName,
		phenotypesFile: PhenotypesFileName,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := mslog.GetLoggerWithName("dataset")

	sampleIDs, featureIDs, rows, report, err := readMatrix(filepath.Join(dir, cfg.matrixFile), &cfg)
	if err != nil {
		return nil, err
	}

	groups, err := readGroups(filepath.Join(dir, cfg.groupsFile))
	if err != nil {
		return nil, err
	}

	var phenotypes map[string]map[string]string
	if cfg.phenotypesFile != "" {
		phenotypes, err = readPhenotypes(filepath.Join(dir, cfg.phenotypesFile))
		if err != nil {
			return nil, err
		}
	}

	// Transpose: source rows are features, ours are samples.
	nSamples := len(sampleIDs)
	nFeatures := len(featureIDs)
	matrix := mat.NewDense(nSamples, nFeatures, nil)
	for f := 0; f < nFeatures; f++ {
		for s := 0; s < nSamples; s++ {
			matrix.Set(s, f, rows[f][s])
		}
	}

	report.SamplesLoaded = nSamples
	report.FeaturesLoaded = nFeatures

	logger.Info("dataset loaded",
		mslog.SamplesKey, nSamples,
		mslog.FeaturesKey, nFeatures,
		"group_labels", len(groups),
		"truncated", report.Truncated)

	return &Loaded{
		Matrix:     matrix,
		SampleIDs:  sampleIDs,
		FeatureIDs: featureIDs,
		Groups:     groups,
		Phenotypes: phenotypes,
		Report:     report,
	}, nil
}

// readMatrix parses the feature-by-sample table, applying the requested
// row and column caps. Returns the kept sample IDs, feature IDs, and one
// value slice per feature row.
func readMatrix(path string, cfg *loadConfig) ([]string, []string, [][]float64, LoadReport, error) {
	report := LoadReport{
		SamplesRequested:  cfg.maxSamples,
		FeaturesRequested: cfg.maxFeatures,
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, report, mserrors.Wrapf(err, "open matrix file %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, nil, report, mserrors.Wrapf(err, "read matrix header %s", path)
	}
	if len(header) < 2 {
		return nil, nil, nil, report, mserrors.Wrapf(mserrors.ErrEmptyData, "matrix file %s has no sample columns", path)
	}

	allSamples := header[1:]
	keepSamples := len(allSamples)
	if cfg.maxSamples > 0 {
		if cfg.maxSamples <= len(allSamples) {
			keepSamples = cfg.maxSamples
			report.Truncated = true
		} else {
			report.FallbackReason = "requested sample count exceeds table width"
			mserrors.Warn(mserrors.NewTruncationWarning(cfg.maxSamples, len(allSamples), report.FallbackReason))
		}
	}
	sampleIDs := append([]string(nil), allSamples[:keepSamples]...)

	var featureIDs []string
	var rows [][]float64
	for {
		if cfg.maxFeatures > 0 && len(featureIDs) >= cfg.maxFeatures {
			report.Truncated = true
			break
		}
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, nil, report, mserrors.Wrapf(err, "read matrix row %d of %s", len(featureIDs)+2, path)
		}
		if len(record) < 1+keepSamples {
			return nil, nil, nil, report, mserrors.Newf(
				"matrix row %d of %s has %d columns, want at least %d",
				len(featureIDs)+2, path, len(record), 1+keepSamples)
		}

		values := make([]float64, keepSamples)
		for s := 0; s < keepSamples; s++ {
			values[s], err = parseCell(record[1+s])
			if err != nil {
				return nil, nil, nil, report, mserrors.Wrapf(err,
					"matrix cell (%s, %s)", record[0], sampleIDs[s])
			}
		}
		featureIDs = append(featureIDs, record[0])
		rows = append(rows, values)
	}

	if len(featureIDs) == 0 {
		return nil, nil, nil, report, mserrors.Wrapf(mserrors.ErrEmptyData, "matrix file %s has no feature rows", path)
	}
	return sampleIDs, featureIDs, rows, report, nil
}

// parseCell parses one matrix cell; empty and NA-style cells become NaN.
func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch cell {
	case "", "NA", "NaN", "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// readGroups parses the sample-id,group table. The header row is skipped
// when its second column does not parse as a data row (it always has more
// than 2 columns tolerated; only the first two are read).
func readGroups(path string) (map[string]string, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, mserrors.Wrapf(mserrors.ErrEmptyData, "group file %s", path)
	}

	groups := make(map[string]string, len(records))
	for i, record := range records {
		if len(record) < 2 {
			return nil, mserrors.Newf("group row %d of %s has %d columns, want 2", i+1, path, len(record))
		}
		if i == 0 && strings.EqualFold(record[1], "group") {
			continue
		}
		groups[strings.TrimSpace(record[0])] = strings.ToLower(strings.TrimSpace(record[1]))
	}
	return groups, nil
}

// readPhenotypes parses the phenotype table: first column sample-id, the
// remaining header columns name the metadata fields.
func readPhenotypes(path string) (map[string]map[string]string, error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		// Phenotypes are optional metadata.
		return nil, nil
	}
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return map[string]map[string]string{}, nil
	}

	header := records[0]
	phenotypes := make(map[string]map[string]string, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		fields := make(map[string]string, len(header)-1)
		for c := 1; c < len(header) && c < len(record); c++ {
			fields[header[c]] = record[c]
		}
		phenotypes[strings.TrimSpace(record[0])] = fields
	}
	return phenotypes, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mserrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, mserrors.Wrapf(err, "parse %s", path)
	}
	return records, nil
}
