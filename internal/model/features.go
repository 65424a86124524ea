package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// FeatureSet names a design-matrix column selection.
type FeatureSet string

const (
	// FeatureSetTotalProduction keeps weather, prices, and the
	// total_generation columns, dropping the per-technology mix. This is
	// the set the forecast path can always fill: only the generation
	// total is published ahead of time.
	FeatureSetTotalProduction FeatureSet = "total_production"
	// FeatureSetAllProduction keeps every pivoted column.
	FeatureSetAllProduction FeatureSet = "all_production"
)

// ParseFeatureSet validates a feature set name from a flag or metadata.
func ParseFeatureSet(s string) (FeatureSet, error) {
	switch FeatureSet(s) {
	case FeatureSetTotalProduction, FeatureSetAllProduction:
		return FeatureSet(s), nil
	}
	return "", fmt.Errorf("unknown feature set %q", s)
}

// keeps reports whether a pivoted column belongs to the set.
// Per-technology columns are named <tech>_<zone>; no other variable shares
// a technology prefix.
func (s FeatureSet) keeps(column string) bool {
	if s == FeatureSetAllProduction {
		return true
	}
	for _, tech := range domain.GenerationTechs {
		if strings.HasPrefix(column, tech+"_") {
			return false
		}
	}
	return true
}

const (
	fromPrefix = "country_from_"
	toPrefix   = "country_to_"
)

// Schema derives the design-matrix columns for a set of rows: the union of
// feature keys the set keeps, then one-hot country_from_*/country_to_*
// columns, each block sorted so the order is reproducible across runs.
func Schema(rows []domain.ModelFeatureRow, set FeatureSet) ([]string, error) {
	if len(rows) == 0 {
		return nil, errors.New("schema: no rows")
	}

	feats := make(map[string]bool)
	froms := make(map[string]bool)
	tos := make(map[string]bool)
	for i, r := range rows {
		if r.CountryFrom == "" || r.CountryTo == "" {
			return nil, fmt.Errorf("schema: row %d has no country pair", i)
		}
		for k := range r.Features {
			if set.keeps(k) {
				feats[k] = true
			}
		}
		froms[r.CountryFrom] = true
		tos[r.CountryTo] = true
	}

	columns := make([]string, 0, len(feats)+len(froms)+len(tos))
	columns = append(columns, sortedKeys(feats)...)
	for _, z := range sortedKeys(froms) {
		columns = append(columns, fromPrefix+z)
	}
	for _, z := range sortedKeys(tos) {
		columns = append(columns, toPrefix+z)
	}
	return columns, nil
}

// Design builds the matrix for rows against a fixed column schema. Every
// non-pair column must be present in every row's feature map; a hole means
// the rows and the schema come from different pipelines.
func Design(rows []domain.ModelFeatureRow, columns []string) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, errors.New("design: no rows")
	}
	if len(columns) == 0 {
		return nil, errors.New("design: no columns")
	}

	x := mat.NewDense(len(rows), len(columns), nil)
	for i, r := range rows {
		for j, col := range columns {
			switch {
			case strings.HasPrefix(col, fromPrefix):
				if r.CountryFrom == strings.TrimPrefix(col, fromPrefix) {
					x.Set(i, j, 1)
				}
			case strings.HasPrefix(col, toPrefix):
				if r.CountryTo == strings.TrimPrefix(col, toPrefix) {
					x.Set(i, j, 1)
				}
			default:
				v, ok := r.Features[col]
				if !ok {
					return nil, fmt.Errorf("design: row %d missing feature %s", i, col)
				}
				x.Set(i, j, v)
			}
		}
	}
	return x, nil
}

// Labels extracts the target vector; every row must carry a label.
func Labels(rows []domain.ModelFeatureRow) ([]float64, error) {
	y := make([]float64, len(rows))
	for i, r := range rows {
		if r.EnergySent == nil {
			return nil, fmt.Errorf("labels: row %d at %s has no label", i, r.Datetime.Format("2006-01-02T15"))
		}
		y[i] = *r.EnergySent
	}
	return y, nil
}

// SplitHoldout splits rows chronologically: the first trainFrac of rows
// train, the rest evaluate. Rows arrive time-ordered from the store. Both
// sides must end up non-empty, so very small row counts are rejected
// rather than surfacing later as an empty design matrix.
func SplitHoldout(rows []domain.ModelFeatureRow, trainFrac float64) (train, test []domain.ModelFeatureRow, err error) {
	cut := int(float64(len(rows)) * trainFrac)
	if cut == 0 || cut == len(rows) {
		return nil, nil, fmt.Errorf("split: %d rows leave an empty side at fraction %.2f", len(rows), trainFrac)
	}
	return rows[:cut], rows[cut:], nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
