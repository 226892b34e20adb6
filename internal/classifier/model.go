package classifier

import (
	"time"

	"expensetracker/internal/core"
)

// model is an immutable fitted pipeline. A published model is never mutated;
// retraining builds a new one.
type model struct {
	vectorizer *tfidfVectorizer
	bayes      *multinomialNB
	examples   int
	source     string
	trainedAt  time.Time
}

// fitModel trains a pipeline over already-normalized examples.
func fitModel(corpus []TrainingExample, opts Options, source string) (*model, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	docs := make([]string, len(corpus))
	labels := make([]core.CategoryID, len(corpus))
	for i, ex := range corpus {
		docs[i] = ex.Note
		labels[i] = ex.CategoryID
	}

	vec := newTFIDFVectorizer(opts.MaxFeatures)
	if err := vec.fit(docs); err != nil {
		return nil, err
	}
	xs := make([]sparseVector, len(docs))
	for i, d := range docs {
		xs[i] = vec.transform(d)
	}

	nb := newMultinomialNB(opts.Alpha)
	if err := nb.fit(xs, labels, vec.size()); err != nil {
		return nil, err
	}

	return &model{
		vectorizer: vec,
		bayes:      nb,
		examples:   len(corpus),
		source:     source,
		trainedAt:  time.Now(),
	}, nil
}

// predict classifies normalized text. It reports false when the text shares
// no term with the vocabulary, since the decision would rest on priors alone.
func (m *model) predict(normalized string) (core.CategoryID, bool) {
	x := m.vectorizer.transform(normalized)
	if len(x) == 0 {
		return 0, false
	}
	return m.bayes.predict(x), true
}
