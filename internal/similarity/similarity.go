// Package similarity computes bounded text similarity between free-text
// field values (names, addresses) using TF-IDF weighted character n-grams
// and cosine distance. It is robust to regional abbreviations and
// punctuation noise.
package similarity

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Class is the discretized band of a similarity score.
type Class string

const (
	ClassExact   Class = "EXACT"
	ClassHigh    Class = "HIGH"
	ClassMedium  Class = "MEDIUM"
	ClassLow     Class = "LOW"
	ClassNoMatch Class = "NO_MATCH"
)

// abbreviations maps word-boundary patterns of common address shorthand to
// their expanded forms, so "Jl. Elok" and "Jalan Elok" vectorize alike.
var abbreviations = []struct {
	re   *regexp.Regexp
	full string
}{
	{regexp.MustCompile(`\bjl\.?\b`), "jalan"},
	{regexp.MustCompile(`\bgg\.?\b`), "gang"},
	{regexp.MustCompile(`\brt\.?\b`), "rt"},
	{regexp.MustCompile(`\brw\.?\b`), "rw"},
	{regexp.MustCompile(`\bkel\.?\b`), "kelurahan"},
	{regexp.MustCompile(`\bkec\.?\b`), "kecamatan"},
	{regexp.MustCompile(`\bkab\.?\b`), "kabupaten"},
	{regexp.MustCompile(`\bno\.?\b`), "nomor"},
	{regexp.MustCompile(`\bblk\.?\b`), "blok"},
	{regexp.MustCompile(`\bjkt\.?\b`), "jakarta"},
	{regexp.MustCompile(`\btmr\.?\b`), "timur"},
	{regexp.MustCompile(`\bbrt\.?\b`), "barat"},
	{regexp.MustCompile(`\bslt\.?\b`), "selatan"},
	{regexp.MustCompile(`\butr\.?\b`), "utara"},
	{regexp.MustCompile(`\bds\.?\b`), "desa"},
	{regexp.MustCompile(`\bperum\.?\b`), "perumahan"},
	{regexp.MustCompile(`\bkomp\.?\b`), "kompleks"},
}

var (
	punctuation = regexp.MustCompile(`[,.\-/\\]+`)
	whitespace  = regexp.MustCompile(`\s+`)

	// foldAccents strips combining marks so accented and plain spellings
	// produce the same n-grams.
	foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Scorer computes similarity over word-boundary-aware character n-grams.
// The zero value is not usable; construct with NewScorer.
type Scorer struct {
	ngramMin int
	ngramMax int
}

// NewScorer returns a Scorer using n-grams of length min..max. Out-of-range
// arguments fall back to the 2..4 default.
func NewScorer(ngramMin, ngramMax int) *Scorer {
	if ngramMin < 1 || ngramMax < ngramMin {
		ngramMin, ngramMax = 2, 4
	}
	return &Scorer{ngramMin: ngramMin, ngramMax: ngramMax}
}

// normalizeText lower-cases, expands abbreviations, folds accents, and
// strips punctuation to spaces.
func normalizeText(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(foldAccents, s); err == nil {
		s = folded
	}
	for _, ab := range abbreviations {
		s = ab.re.ReplaceAllString(s, ab.full)
	}
	s = punctuation.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ngrams extracts word-boundary-aware character n-grams: each token is
// padded with spaces and windows of each length slide within the padded
// token, never across tokens. Tokens shorter than the window emit the
// whole padded token once.
func (s *Scorer) ngrams(text string) map[string]float64 {
	counts := make(map[string]float64)
	for _, token := range strings.Fields(text) {
		padded := []rune(" " + token + " ")
		for n := s.ngramMin; n <= s.ngramMax; n++ {
			if len(padded) <= n {
				counts[string(padded)]++
				continue
			}
			for i := 0; i+n <= len(padded); i++ {
				counts[string(padded[i:i+n])]++
			}
		}
	}
	return counts
}

// vectorize builds L2-normalized TF-IDF vectors for the whole corpus, with
// smoothed document frequencies. Returns nil when the corpus produced no
// features at all.
func (s *Scorer) vectorize(corpus []string) []map[string]float64 {
	termCounts := make([]map[string]float64, len(corpus))
	df := make(map[string]int)
	total := 0
	for i, doc := range corpus {
		tc := s.ngrams(doc)
		termCounts[i] = tc
		for term := range tc {
			df[term]++
		}
		total += len(tc)
	}
	if total == 0 {
		return nil
	}

	nDocs := float64(len(corpus))
	vectors := make([]map[string]float64, len(corpus))
	for i, tc := range termCounts {
		vec := make(map[string]float64, len(tc))
		var sumSq float64
		for term, tf := range tc {
			idf := math.Log((1+nDocs)/(1+float64(df[term]))) + 1
			w := tf * idf
			vec[term] = w
			sumSq += w * w
		}
		if sumSq > 0 {
			scale := 1 / math.Sqrt(sumSq)
			for term := range vec {
				vec[term] *= scale
			}
		}
		vectors[i] = vec
	}
	return vectors
}

// cosine returns the cosine similarity of two L2-normalized sparse vectors.
func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, wa := range a {
		dot += wa * b[term]
	}
	return dot
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Score returns the similarity of two texts in [0,1]: 0 when either
// normalized string is empty or vectorization degenerates, 1 when the
// normalized strings are identical, otherwise the TF-IDF cosine rounded to
// four decimal places.
func (s *Scorer) Score(a, b string) float64 {
	na := normalizeText(a)
	nb := normalizeText(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	vectors := s.vectorize([]string{na, nb})
	if vectors == nil || len(vectors[0]) == 0 || len(vectors[1]) == 0 {
		return 0
	}
	return round4(cosine(vectors[0], vectors[1]))
}

// ScoreBatch scores many pairs against a single shared corpus, which keeps
// document frequencies comparable across pairs. Returns an all-zero slice
// when the corpus has no features.
func (s *Scorer) ScoreBatch(pairs [][2]string) []float64 {
	if len(pairs) == 0 {
		return nil
	}
	corpus := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		corpus = append(corpus, normalizeText(p[0]), normalizeText(p[1]))
	}
	scores := make([]float64, len(pairs))
	vectors := s.vectorize(corpus)
	if vectors == nil {
		return scores
	}
	for i := range pairs {
		a, b := vectors[2*i], vectors[2*i+1]
		if len(a) == 0 || len(b) == 0 {
			continue
		}
		scores[i] = round4(cosine(a, b))
	}
	return scores
}

// FindBestMatch returns the index and score of the candidate most similar
// to query. Returns (-1, 0) for an empty candidate list and (0, 0) when
// vectorization degenerates.
func (s *Scorer) FindBestMatch(query string, candidates []string) (int, float64) {
	if len(candidates) == 0 {
		return -1, 0
	}
	corpus := make([]string, 0, len(candidates)+1)
	corpus = append(corpus, normalizeText(query))
	for _, c := range candidates {
		corpus = append(corpus, normalizeText(c))
	}
	vectors := s.vectorize(corpus)
	if vectors == nil || len(vectors[0]) == 0 {
		return 0, 0
	}
	bestIdx, bestScore := 0, math.Inf(-1)
	for i := 1; i < len(vectors); i++ {
		sim := cosine(vectors[0], vectors[i])
		if sim > bestScore {
			bestScore = sim
			bestIdx = i - 1
		}
	}
	return bestIdx, round4(bestScore)
}

// Classify buckets a similarity score into a human-readable band.
func Classify(score float64) Class {
	switch {
	case score >= 0.95:
		return ClassExact
	case score >= 0.80:
		return ClassHigh
	case score >= 0.60:
		return ClassMedium
	case score >= 0.40:
		return ClassLow
	default:
		return ClassNoMatch
	}
}
