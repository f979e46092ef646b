// Package grade fills in grades the keyword rules could not decide by
// training a decision tree on the rows they did decide.
package grade

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// ErrInsufficientTrainingData is returned when no row carries a grade.
var ErrInsufficientTrainingData = errors.New("insufficient training data: no rows with a known grade")

// TextNormalizer turns free text into tokens.
type TextNormalizer interface {
	Tokens(text string) []string
}

// TrainConfig controls vectorization, the holdout split, and scoring.
type TrainConfig struct {
	MinDocFreq   int
	TestFraction float64
	Folds        int
	Seed         uint64
	MaxDepth     int
}

// DefaultTrainConfig mirrors the documented defaults.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		MinDocFreq:   9,
		TestFraction: 0.25,
		Folds:        15,
		Seed:         42,
	}
}

// Report describes a training run. Scores are micro-averaged F1, which for
// single-label classification equals accuracy.
type Report struct {
	Labeled    int
	TrainSize  int
	TestSize   int
	Vocabulary int
	Folds      int
	Depth      int
	TrainF1    float64
	CrossValF1 float64
	TestF1     float64
}

// Model is a fitted vectorizer and tree. It is immutable and safe for
// concurrent use.
type Model struct {
	vec  *Vectorizer
	tree *Tree
}

// Predictor assigns a grade to a tokenized document.
type Predictor interface {
	Predict(doc []string) string
}

// Predict returns the grade for a tokenized document.
func (m *Model) Predict(doc []string) string {
	return m.tree.Predict(m.vec.Transform(doc))
}

// Document returns the tokens the model sees for a row.
func Document(row vacancy.NormalizedRow, tn TextNormalizer) []string {
	text := strings.Join([]string{row.Title, row.ExperienceBand, row.KeySkillsText}, " ")
	return tn.Tokens(text)
}

// Train fits a model on the rows whose grade is known. The vocabulary is
// fitted on every labeled row, the tree on the training split only.
func Train(rows []vacancy.NormalizedRow, tn TextNormalizer, cfg TrainConfig) (*Model, Report, error) {
	var docs [][]string
	var labels []string
	for _, r := range rows {
		if r.Grade == vacancy.Undefined || r.Grade == "" {
			continue
		}
		docs = append(docs, Document(r, tn))
		labels = append(labels, r.Grade)
	}
	if len(docs) == 0 {
		return nil, Report{}, ErrInsufficientTrainingData
	}

	classes, ys := encodeLabels(labels)
	vec := FitVectorizer(docs, cfg.MinDocFreq)
	xs := make([]Vector, len(docs))
	for i, d := range docs {
		xs[i] = vec.Transform(d)
	}

	trainIdx, testIdx := split(len(xs), cfg.TestFraction, cfg.Seed)
	trainX, trainY := gather(xs, ys, trainIdx)
	testX, testY := gather(xs, ys, testIdx)

	tree := fitTree(trainX, trainY, classes, cfg.MaxDepth)
	rep := Report{
		Labeled:    len(xs),
		TrainSize:  len(trainX),
		TestSize:   len(testX),
		Vocabulary: vec.Size(),
		Depth:      tree.Depth(),
		TrainF1:    score(tree, trainX, trainY),
	}
	rep.Folds, rep.CrossValF1 = crossValidate(trainX, trainY, classes, cfg)
	if rep.Folds < 2 {
		rep.CrossValF1 = rep.TrainF1
	}
	if len(testX) == 0 {
		rep.TestF1 = rep.TrainF1
	} else {
		rep.TestF1 = score(tree, testX, testY)
	}
	return &Model{vec: vec, tree: tree}, rep, nil
}

// Apply returns a copy of rows where every undefined grade is predicted.
// Rows that already carry a grade are never changed. The second result is
// the number of rows predicted.
func Apply(p Predictor, rows []vacancy.NormalizedRow, tn TextNormalizer) ([]vacancy.NormalizedRow, int) {
	out := make([]vacancy.NormalizedRow, len(rows))
	copy(out, rows)
	predicted := 0
	for i := range out {
		if out[i].Grade != vacancy.Undefined {
			continue
		}
		if g := p.Predict(Document(out[i], tn)); g != "" {
			out[i].Grade = g
			predicted++
		}
	}
	return out, predicted
}

func encodeLabels(labels []string) ([]string, []int) {
	set := make(map[string]struct{})
	for _, l := range labels {
		set[l] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	ys := make([]int, len(labels))
	for i, l := range labels {
		ys[i] = index[l]
	}
	return classes, ys
}

// split shuffles indices with a seeded generator and holds out
// ceil(n*fraction) of them, keeping at least one training row.
func split(n int, fraction float64, seed uint64) ([]int, []int) {
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	nTest := int(math.Ceil(float64(n) * fraction))
	if nTest < 0 {
		nTest = 0
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	if n >= 2 && fraction > 0 && nTest == 0 {
		nTest = 1
	}
	return perm[nTest:], perm[:nTest]
}

func gather(xs []Vector, ys []int, idx []int) ([]Vector, []int) {
	outX := make([]Vector, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i] = xs[j]
		outY[i] = ys[j]
	}
	return outX, outY
}

// crossValidate scores contiguous folds of the training split. The fold
// count is clamped to the number of rows; fewer than two folds skip scoring.
func crossValidate(xs []Vector, ys []int, classes []string, cfg TrainConfig) (int, float64) {
	k := min(cfg.Folds, len(xs))
	if k < 2 {
		return k, 0
	}
	n := len(xs)
	total := 0.0
	for f := range k {
		lo, hi := f*n/k, (f+1)*n/k
		var fitX []Vector
		var fitY []int
		fitX = append(fitX, xs[:lo]...)
		fitX = append(fitX, xs[hi:]...)
		fitY = append(fitY, ys[:lo]...)
		fitY = append(fitY, ys[hi:]...)
		tree := fitTree(fitX, fitY, classes, cfg.MaxDepth)
		total += score(tree, xs[lo:hi], ys[lo:hi])
	}
	return k, total / float64(k)
}

// score returns the micro-averaged F1 of the tree on xs.
func score(t *Tree, xs []Vector, ys []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	correct := 0
	for i, x := range xs {
		if t.Predict(x) == t.classes[ys[i]] {
			correct++
		}
	}
	return float64(correct) / float64(len(xs))
}
