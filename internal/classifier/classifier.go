// Package classifier assigns expense categories to free-text transaction notes.
//
// A Classifier starts uninitialized and lazily fits a TF-IDF plus multinomial
// naive Bayes model from the keyword table of its categories on first use.
// RetrainFromHistory replaces that model with one fitted on a user's own
// labelled notes. Every failure collapses to a "no answer" result; callers
// decide which fallback category to use.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

const (
	DefaultMaxFeatures = 100
	DefaultAlpha       = 0.1
	// MinHistoryExamples is the smallest usable history accepted for retraining.
	MinHistoryExamples = 10
	// MaxHistoryExamples caps how much history a retrain considers.
	MaxHistoryExamples = 1000
)

var (
	ErrEmptyCorpus      = errors.New("training corpus is empty")
	ErrEmptyVocabulary  = errors.New("training corpus has no usable terms")
	ErrInsufficientData = errors.New("not enough training examples")
)

type State int32

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// TrainingExample pairs a note with the category it was filed under.
type TrainingExample struct {
	Note       string
	CategoryID core.CategoryID
}

// HistorySource supplies a user's most recent labelled notes, newest first.
type HistorySource interface {
	RecentNotes(ctx context.Context, userID int64, limit int) ([]TrainingExample, error)
}

// Recorder receives classifier events, typically to feed metrics.
type Recorder interface {
	PredictionMade(category core.CategoryID, ok bool)
	ModelTrained(source string, examples int, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) PredictionMade(core.CategoryID, bool) {}
func (nopRecorder) ModelTrained(string, int, bool)       {}

type Options struct {
	Categories  []core.Category
	MaxFeatures int
	Alpha       float64
	MinExamples int
	MaxExamples int
	Recorder    Recorder
}

func DefaultOptions() Options {
	return Options{
		Categories:  DefaultCategories(),
		MaxFeatures: DefaultMaxFeatures,
		Alpha:       DefaultAlpha,
		MinExamples: MinHistoryExamples,
		MaxExamples: MaxHistoryExamples,
	}
}

// Info describes the currently published model.
type Info struct {
	Source    string
	Examples  int
	Features  int
	TrainedAt time.Time
}

type Classifier struct {
	opts   Options
	valid  map[core.CategoryID]bool
	names  map[core.CategoryID]string
	rec    Recorder
	model  atomic.Pointer[model]
	loader singleflight.Group
}

// New creates an uninitialized classifier. Zero option fields take defaults.
func New(opts Options) *Classifier {
	def := DefaultOptions()
	if len(opts.Categories) == 0 {
		opts.Categories = def.Categories
	}
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = def.MaxFeatures
	}
	if opts.Alpha <= 0 {
		opts.Alpha = def.Alpha
	}
	if opts.MinExamples <= 0 {
		opts.MinExamples = def.MinExamples
	}
	if opts.MaxExamples <= 0 {
		opts.MaxExamples = def.MaxExamples
	}

	c := &Classifier{
		opts:  opts,
		valid: make(map[core.CategoryID]bool, len(opts.Categories)),
		names: make(map[core.CategoryID]string, len(opts.Categories)),
		rec:   opts.Recorder,
	}
	if c.rec == nil {
		c.rec = nopRecorder{}
	}
	for _, cat := range opts.Categories {
		c.valid[cat.ID] = true
		c.names[cat.ID] = cat.Name
	}
	return c
}

// Categories returns the configured category table.
func (c *Classifier) Categories() []core.Category {
	return c.opts.Categories
}

// CategoryName returns the display name of a configured category.
func (c *Classifier) CategoryName(id core.CategoryID) (string, bool) {
	name, ok := c.names[id]
	return name, ok
}

func (c *Classifier) State() State {
	if c.model.Load() == nil {
		return StateUninitialized
	}
	return StateReady
}

// Info reports on the published model, if any.
func (c *Classifier) Info() (Info, bool) {
	m := c.model.Load()
	if m == nil {
		return Info{}, false
	}
	return Info{Source: m.source, Examples: m.examples, Features: m.vectorizer.size(), TrainedAt: m.trainedAt}, true
}

// WarmUp fits the seed model if no model has been published yet.
func (c *Classifier) WarmUp() error {
	_, err := c.ensureLoaded()
	return err
}

// ensureLoaded returns the published model, fitting the seed model on first
// use. Concurrent first callers share one fit.
func (c *Classifier) ensureLoaded() (*model, error) {
	if m := c.model.Load(); m != nil {
		return m, nil
	}
	v, err, _ := c.loader.Do("seed", func() (any, error) {
		if m := c.model.Load(); m != nil {
			return m, nil
		}
		corpus := make([]TrainingExample, 0)
		for _, ex := range SeedCorpus(c.opts.Categories) {
			if note := Normalize(ex.Note); note != "" {
				corpus = append(corpus, TrainingExample{Note: note, CategoryID: ex.CategoryID})
			}
		}
		m, err := fitModel(corpus, c.opts, "seed")
		if err != nil {
			c.rec.ModelTrained("seed", len(corpus), false)
			return nil, fmt.Errorf("fit seed model: %w", err)
		}
		// A retrain may have published while the seed was fitting; keep it.
		if !c.model.CompareAndSwap(nil, m) {
			return c.model.Load(), nil
		}
		c.rec.ModelTrained("seed", len(corpus), true)
		slog.Info("Classifier seed model ready",
			log.FieldComponent, log.ComponentClassifier,
			"examples", len(corpus),
			"features", m.vectorizer.size())
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model), nil
}

// Predict returns the most likely category for a note. It reports false when
// the note is empty, shares no vocabulary with the model, or classification
// fails for any reason. The amount is accepted but not used.
func (c *Classifier) Predict(note string, amount *decimal.Decimal) (id core.CategoryID, ok bool) {
	normalized := Normalize(note)
	if normalized == "" {
		return 0, false
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Classifier prediction panicked",
				log.FieldComponent, log.ComponentClassifier,
				"panic", r)
			id, ok = 0, false
		}
		c.rec.PredictionMade(id, ok)
	}()

	m, err := c.ensureLoaded()
	if err != nil {
		slog.Error("Classifier unavailable",
			log.FieldComponent, log.ComponentClassifier,
			log.FieldError, err)
		return 0, false
	}
	id, ok = m.predict(normalized)
	if !ok || !c.valid[id] {
		return 0, false
	}
	return id, true
}

// RetrainFromHistory fits a new model on exactly the given history, newest
// first, and publishes it. Only the first MaxExamples entries are considered;
// entries with empty notes or unknown categories are dropped. It returns false
// without touching the current model when fewer than MinExamples remain or
// fitting fails.
func (c *Classifier) RetrainFromHistory(history []TrainingExample) bool {
	m, err := c.retrain(history)
	if err != nil {
		slog.Warn("Classifier retrain rejected",
			log.FieldComponent, log.ComponentClassifier,
			"history", len(history),
			log.FieldError, err)
		return false
	}
	c.model.Store(m)
	slog.Info("Classifier retrained from history",
		log.FieldComponent, log.ComponentClassifier,
		"examples", m.examples,
		"features", m.vectorizer.size())
	return true
}

func (c *Classifier) retrain(history []TrainingExample) (*model, error) {
	if len(history) > c.opts.MaxExamples {
		history = history[:c.opts.MaxExamples]
	}
	corpus := make([]TrainingExample, 0, len(history))
	for _, ex := range history {
		if !c.valid[ex.CategoryID] {
			continue
		}
		note := Normalize(ex.Note)
		if note == "" {
			continue
		}
		corpus = append(corpus, TrainingExample{Note: note, CategoryID: ex.CategoryID})
	}
	if len(corpus) < c.opts.MinExamples {
		c.rec.ModelTrained("history", len(corpus), false)
		return nil, fmt.Errorf("%w: %d usable, need %d", ErrInsufficientData, len(corpus), c.opts.MinExamples)
	}
	m, err := fitModel(corpus, c.opts, "history")
	if err != nil {
		c.rec.ModelTrained("history", len(corpus), false)
		return nil, err
	}
	c.rec.ModelTrained("history", len(corpus), true)
	return m, nil
}
