package classifier

import (
	"math"
	"sort"
)

// sparseVector holds the non-zero weights of a document, ordered by
// vocabulary index so that scoring sums in a fixed order.
type sparseVector []termWeight

type termWeight struct {
	index  int
	weight float64
}

// tfidfVectorizer turns normalized text into L2-normalized TF-IDF vectors over
// unigrams and bigrams.
type tfidfVectorizer struct {
	maxFeatures int
	vocabulary  map[string]int
	idf         []float64
}

func newTFIDFVectorizer(maxFeatures int) *tfidfVectorizer {
	return &tfidfVectorizer{maxFeatures: maxFeatures}
}

// terms expands a token stream into its unigrams followed by its bigrams.
func terms(normalized string) []string {
	tokens := tokenize(normalized)
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(tokens)-1)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// fit learns the vocabulary and inverse document frequencies. The vocabulary
// keeps the maxFeatures terms with the highest corpus frequency, ties broken
// alphabetically, and is indexed in alphabetical order.
func (v *tfidfVectorizer) fit(docs []string) error {
	if len(docs) == 0 {
		return ErrEmptyCorpus
	}

	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, t := range terms(doc) {
			termFreq[t]++
			if !seen[t] {
				docFreq[t]++
				seen[t] = true
			}
		}
	}
	if len(termFreq) == 0 {
		return ErrEmptyVocabulary
	}

	kept := make([]string, 0, len(termFreq))
	for t := range termFreq {
		kept = append(kept, t)
	}
	sort.Slice(kept, func(i, j int) bool {
		if termFreq[kept[i]] != termFreq[kept[j]] {
			return termFreq[kept[i]] > termFreq[kept[j]]
		}
		return kept[i] < kept[j]
	})
	if v.maxFeatures > 0 && len(kept) > v.maxFeatures {
		kept = kept[:v.maxFeatures]
	}
	sort.Strings(kept)

	n := float64(len(docs))
	v.vocabulary = make(map[string]int, len(kept))
	v.idf = make([]float64, len(kept))
	for i, t := range kept {
		v.vocabulary[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[t]))) + 1
	}
	return nil
}

// transform vectorizes one normalized document. Terms outside the vocabulary
// are ignored, so the result may be empty.
func (v *tfidfVectorizer) transform(doc string) sparseVector {
	counts := make(map[int]float64)
	for _, t := range terms(doc) {
		if idx, ok := v.vocabulary[t]; ok {
			counts[idx]++
		}
	}
	vec := make(sparseVector, 0, len(counts))
	for idx, count := range counts {
		vec = append(vec, termWeight{index: idx, weight: count * v.idf[idx]})
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].index < vec[j].index })
	var sumSq float64
	for _, tw := range vec {
		sumSq += tw.weight * tw.weight
	}
	if sumSq > 0 {
		norm := math.Sqrt(sumSq)
		for i := range vec {
			vec[i].weight /= norm
		}
	}
	return vec
}

func (v *tfidfVectorizer) size() int {
	return len(v.idf)
}
