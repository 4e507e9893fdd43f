package anomaly

import (
	"math"
	"math/rand"
	"sort"

	"github.com/gridline/crosscheck-cli/internal/model"
	"github.com/gridline/crosscheck-cli/internal/normalize"
)

// batchFeatures are the reference columns fed to the outlier ensemble.
var batchFeatures = []model.FieldKey{
	model.FieldStartReading,
	model.FieldEndReading,
	model.FieldConsumption,
	model.FieldBilledAmount,
}

// BatchResult is the per-row output of CheckBatch.
type BatchResult struct {
	RowIndex     int                 `json:"row_index"`
	IsAnomaly    bool                `json:"is_anomaly"`
	OutlierScore float64             `json:"outlier_score"`
	Flags        []model.AnomalyFlag `json:"flags,omitempty"`
}

// CheckBatch runs the per-record rules on every reference row and, when the
// batch is large enough (at least 5 rows with at least 2 usable numeric
// columns), adds population-level outlier detection using an isolation
// ensemble over standardized features. Smaller batches are marked
// non-anomalous by default.
func (d *Detector) CheckBatch(records []model.ReferenceRecord) []BatchResult {
	results := make([]BatchResult, len(records))
	for i := range records {
		results[i] = BatchResult{
			RowIndex: records[i].RowIndex,
			Flags:    d.CheckRecord(recordFields(&records[i])),
		}
	}

	features, usableCols := batchMatrix(records)
	if len(records) >= 5 && usableCols >= 2 {
		scores := d.isolationScores(standardize(features))
		threshold := quantile(scores, 1-d.cfg.Contamination)
		for i := range results {
			results[i].OutlierScore = scores[i]
			results[i].IsAnomaly = scores[i] > threshold
		}
	}

	return results
}

// recordFields projects a reference record onto the field-key map the rule
// engine consumes.
func recordFields(r *model.ReferenceRecord) model.ExtractedFields {
	fields := make(model.ExtractedFields)
	for _, key := range model.Fields() {
		if v := r.Get(key); v != "" {
			fields[key] = v
		}
	}
	return fields
}

// batchMatrix builds the numeric feature matrix. Unparsable cells become 0.
// A column counts as usable when at least one row parses.
func batchMatrix(records []model.ReferenceRecord) ([][]float64, int) {
	matrix := make([][]float64, len(records))
	usable := make([]bool, len(batchFeatures))
	for i := range records {
		row := make([]float64, len(batchFeatures))
		for j, key := range batchFeatures {
			if v, ok := normalize.ToFloat(records[i].Get(key)); ok {
				row[j] = v
				usable[j] = true
			}
		}
		matrix[i] = row
	}
	n := 0
	for _, u := range usable {
		if u {
			n++
		}
	}
	return matrix, n
}

// standardize centers each column to zero mean and unit variance. Constant
// columns stay zero.
func standardize(matrix [][]float64) [][]float64 {
	if len(matrix) == 0 {
		return matrix
	}
	rows, cols := len(matrix), len(matrix[0])
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += matrix[i][j]
		}
		mean := sum / float64(rows)
		var varSum float64
		for i := 0; i < rows; i++ {
			d := matrix[i][j] - mean
			varSum += d * d
		}
		std := math.Sqrt(varSum / float64(rows))
		if std == 0 {
			continue
		}
		for i := 0; i < rows; i++ {
			out[i][j] = (matrix[i][j] - mean) / std
		}
	}
	return out
}

// isoNode is one node of an isolation tree.
type isoNode struct {
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	size    int // leaf only
}

// isolationScores returns an anomaly score in (0,1) per row; higher means
// more isolated. Trees are grown on random subsamples with uniformly random
// feature splits, seeded for reproducibility.
func (d *Detector) isolationScores(matrix [][]float64) []float64 {
	n := len(matrix)
	rng := rand.New(rand.NewSource(d.cfg.Seed))

	sample := n
	if sample > 256 {
		sample = 256
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample))))

	trees := make([]*isoNode, d.cfg.Trees)
	for t := range trees {
		idx := rng.Perm(n)[:sample]
		subset := make([][]float64, sample)
		for i, id := range idx {
			subset[i] = matrix[id]
		}
		trees[t] = growIsoTree(subset, 0, maxDepth, rng)
	}

	norm := avgPathLength(sample)
	scores := make([]float64, n)
	for i := range matrix {
		var total float64
		for _, tree := range trees {
			total += pathLength(tree, matrix[i], 0)
		}
		mean := total / float64(len(trees))
		scores[i] = math.Pow(2, -mean/norm)
	}
	return scores
}

func growIsoTree(rows [][]float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(rows) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(rows)}
	}

	cols := len(rows[0])
	feature := rng.Intn(cols)
	lo, hi := rows[0][feature], rows[0][feature]
	for _, r := range rows {
		if r[feature] < lo {
			lo = r[feature]
		}
		if r[feature] > hi {
			hi = r[feature]
		}
	}
	if lo == hi {
		return &isoNode{size: len(rows)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    growIsoTree(left, depth+1, maxDepth, rng),
		right:   growIsoTree(right, depth+1, maxDepth, rng),
	}
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if row[node.feature] < node.split {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search,
// the standard normalization term for isolation scoring.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const euler = 0.5772156649
	h := math.Log(float64(n-1)) + euler
	return 2*h - 2*float64(n-1)/float64(n)
}

// quantile returns the q-th quantile of values (nearest-rank).
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
