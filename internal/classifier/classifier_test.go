package classifier

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
)

type countingRecorder struct {
	seedFits    atomic.Int32
	historyFits atomic.Int32
	predictions atomic.Int32
}

func (r *countingRecorder) PredictionMade(core.CategoryID, bool) { r.predictions.Add(1) }

func (r *countingRecorder) ModelTrained(source string, _ int, ok bool) {
	if !ok {
		return
	}
	switch source {
	case "seed":
		r.seedFits.Add(1)
	case "history":
		r.historyFits.Add(1)
	}
}

func history(note string, id core.CategoryID, n int) []TrainingExample {
	out := make([]TrainingExample, n)
	for i := range out {
		out[i] = TrainingExample{Note: note, CategoryID: id}
	}
	return out
}

func TestPredictEmptyNote(t *testing.T) {
	c := New(DefaultOptions())

	for _, note := range []string{"", "   ", "?!"} {
		id, ok := c.Predict(note, nil)
		assert.False(t, ok, "note %q", note)
		assert.Zero(t, id)
	}
	assert.Equal(t, StateUninitialized, c.State(), "empty notes must not load the model")
}

func TestPredictSeedKeywords(t *testing.T) {
	c := New(DefaultOptions())
	amount := decimal.RequireFromString("18.50")

	cases := []struct {
		note string
		want core.CategoryID
	}{
		{"Lunch at restaurant", 1},
		{"Uber ride downtown", 2},
		{"Movie tickets with Netflix", 3},
		{"PHARMACY - medicine", 4},
		{"Coffee!!", 1},
	}
	for _, tc := range cases {
		id, ok := c.Predict(tc.note, &amount)
		require.True(t, ok, "note %q", tc.note)
		assert.Equal(t, tc.want, id, "note %q", tc.note)
	}
	assert.Equal(t, StateReady, c.State())

	info, ok := c.Info()
	require.True(t, ok)
	assert.Equal(t, "seed", info.Source)
	assert.Equal(t, 41, info.Examples)
}

func TestPredictUnknownVocabulary(t *testing.T) {
	c := New(DefaultOptions())
	id, ok := c.Predict("quarterly insurance premium", nil)
	assert.False(t, ok)
	assert.Zero(t, id)
	assert.Equal(t, StateReady, c.State())
}

func TestRetrainRejectsShortHistory(t *testing.T) {
	c := New(DefaultOptions())
	probes := []string{"Lunch at restaurant", "Uber ride downtown", "gym membership"}
	before := make([]core.CategoryID, len(probes))
	for i, p := range probes {
		before[i], _ = c.Predict(p, nil)
	}

	assert.False(t, c.RetrainFromHistory(history("gym membership", 3, 9)))
	assert.False(t, c.RetrainFromHistory(nil))

	for i, p := range probes {
		got, _ := c.Predict(p, nil)
		assert.Equal(t, before[i], got, "probe %q changed", p)
	}
	info, _ := c.Info()
	assert.Equal(t, "seed", info.Source)
}

func TestRetrainFiltersUnusableExamples(t *testing.T) {
	c := New(DefaultOptions())

	h := history("gym membership", 3, 8)
	h = append(h, TrainingExample{Note: "  ", CategoryID: 3})
	h = append(h, TrainingExample{Note: "rent", CategoryID: 99})
	require.Len(t, h, 10)

	assert.False(t, c.RetrainFromHistory(h))
	assert.Equal(t, StateUninitialized, c.State())
}

func TestRetrainLearnsNewVocabulary(t *testing.T) {
	rec := &countingRecorder{}
	c := New(Options{Recorder: rec})

	_, ok := c.Predict("gym membership", nil)
	require.False(t, ok, "seed model must not know gym")

	h := append(history("Gym membership fee", 3, 6), history("Apartment rent payment", 4, 6)...)
	require.True(t, c.RetrainFromHistory(h))

	id, ok := c.Predict("GYM", nil)
	require.True(t, ok)
	assert.Equal(t, core.CategoryID(3), id)

	id, ok = c.Predict("rent for the apartment", nil)
	require.True(t, ok)
	assert.Equal(t, core.CategoryID(4), id)

	// No seed blending: seed-only keywords are now unknown.
	_, ok = c.Predict("pizza", nil)
	assert.False(t, ok)

	info, _ := c.Info()
	assert.Equal(t, "history", info.Source)
	assert.Equal(t, 12, info.Examples)
	assert.Equal(t, int32(1), rec.historyFits.Load())
}

func TestRetrainConsidersOnlyFirstThousand(t *testing.T) {
	c := New(DefaultOptions())

	h := history("alpha beta", 1, MaxHistoryExamples)
	h = append(h, history("zeta", 2, 20)...)
	require.True(t, c.RetrainFromHistory(h))

	id, ok := c.Predict("alpha", nil)
	require.True(t, ok)
	assert.Equal(t, core.CategoryID(1), id)

	_, ok = c.Predict("zeta", nil)
	assert.False(t, ok, "entries past the cap must be ignored")
}

func TestWarmUpRunsOnce(t *testing.T) {
	rec := &countingRecorder{}
	c := New(Options{Recorder: rec})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.WarmUp())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), rec.seedFits.Load())
	assert.Equal(t, StateReady, c.State())

	probes := []string{"Lunch at restaurant", "Uber ride downtown", "concert", "unknown"}
	first := make([]core.CategoryID, len(probes))
	for i, p := range probes {
		first[i], _ = c.Predict(p, nil)
	}
	require.NoError(t, c.WarmUp())
	for i, p := range probes {
		got, _ := c.Predict(p, nil)
		assert.Equal(t, first[i], got, "probe %q", p)
	}
	assert.Equal(t, int32(1), rec.seedFits.Load())
}

func TestWarmUpKeepsRetrainedModel(t *testing.T) {
	c := New(DefaultOptions())
	require.True(t, c.RetrainFromHistory(history("gym membership", 3, 10)))
	require.NoError(t, c.WarmUp())

	info, _ := c.Info()
	assert.Equal(t, "history", info.Source)
}

func TestConcurrentPredictDuringRetrain(t *testing.T) {
	c := New(DefaultOptions())
	require.NoError(t, c.WarmUp())

	h := append(history("lunch downtown", 1, 10), history("night bus", 2, 10)...)

	var (
		wg       sync.WaitGroup
		failures atomic.Int32
		stop     = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				id, ok := c.Predict("Lunch", nil)
				if !ok || id != 1 {
					failures.Add(1)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.True(t, c.RetrainFromHistory(h))
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, failures.Load())
}

func TestCustomCategoriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := `categories:
  - id: 1
    name: Groceries
    keywords: [supermarket, groceries]
  - id: 4
    name: Others
    keywords: [misc]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cats, err := LoadCategories(path)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, core.CategoryTypeExpense, cats[0].Type)

	c := New(Options{Categories: cats})
	id, ok := c.Predict("Supermarket run", nil)
	require.True(t, ok)
	assert.Equal(t, core.CategoryID(1), id)

	name, ok := c.CategoryName(4)
	assert.True(t, ok)
	assert.Equal(t, "Others", name)
}

func TestLoadCategoriesValidation(t *testing.T) {
	cases := map[string]string{
		"missing fallback": "categories:\n  - id: 1\n    name: Food\n",
		"duplicate id":     "categories:\n  - id: 4\n    name: A\n  - id: 4\n    name: B\n",
		"duplicate name":   "categories:\n  - id: 4\n    name: Food\n  - id: 5\n    name: Food\n",
		"empty name":       "categories:\n  - id: 4\n    name: \"  \"\n",
		"bad id":           "categories:\n  - id: 0\n    name: A\n  - id: 4\n    name: B\n",
		"bad yaml":         "categories: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "categories.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := LoadCategories(path)
			assert.Error(t, err)
		})
	}
}
