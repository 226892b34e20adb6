package classifier

import (
	"math"
	"sort"

	"expensetracker/internal/core"
)

// multinomialNB is a multinomial naive Bayes model over fractional feature
// counts with additive smoothing.
type multinomialNB struct {
	alpha          float64
	classes        []core.CategoryID
	classLogPrior  []float64
	featureLogProb [][]float64
}

func newMultinomialNB(alpha float64) *multinomialNB {
	return &multinomialNB{alpha: alpha}
}

func (nb *multinomialNB) fit(xs []sparseVector, labels []core.CategoryID, features int) error {
	if len(xs) == 0 || len(xs) != len(labels) {
		return ErrEmptyCorpus
	}
	if features == 0 {
		return ErrEmptyVocabulary
	}

	index := make(map[core.CategoryID]int)
	for _, l := range labels {
		if _, ok := index[l]; !ok {
			index[l] = 0
			nb.classes = append(nb.classes, l)
		}
	}
	sort.Slice(nb.classes, func(i, j int) bool { return nb.classes[i] < nb.classes[j] })
	for i, c := range nb.classes {
		index[c] = i
	}

	classCount := make([]float64, len(nb.classes))
	featureCount := make([][]float64, len(nb.classes))
	for i := range featureCount {
		featureCount[i] = make([]float64, features)
	}
	for i, x := range xs {
		c := index[labels[i]]
		classCount[c]++
		for _, tw := range x {
			featureCount[c][tw.index] += tw.weight
		}
	}

	total := float64(len(xs))
	nb.classLogPrior = make([]float64, len(nb.classes))
	nb.featureLogProb = make([][]float64, len(nb.classes))
	for c := range nb.classes {
		nb.classLogPrior[c] = math.Log(classCount[c] / total)

		var smoothedTotal float64
		for _, fc := range featureCount[c] {
			smoothedTotal += fc + nb.alpha
		}
		logTotal := math.Log(smoothedTotal)
		nb.featureLogProb[c] = make([]float64, features)
		for j, fc := range featureCount[c] {
			nb.featureLogProb[c][j] = math.Log(fc+nb.alpha) - logTotal
		}
	}
	return nil
}

// predict returns the class with the highest joint log likelihood. Ties go to
// the lowest category id.
func (nb *multinomialNB) predict(x sparseVector) core.CategoryID {
	best := 0
	bestScore := math.Inf(-1)
	for c := range nb.classes {
		score := nb.classLogPrior[c]
		for _, tw := range x {
			score += tw.weight * nb.featureLogProb[c][tw.index]
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return nb.classes[best]
}
