package services

import (
	"context"
	"fmt"
	"log/slog"

	"expensetracker/internal/classifier"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// Prediction is a classifier answer with the fallback already applied.
type Prediction struct {
	CategoryID   core.CategoryID
	Category     string
	AutoDetected bool
	// Matched is false when the fallback category was used.
	Matched bool
}

// ClassifierService connects the classifier to the user's stored history.
type ClassifierService struct {
	clf     *classifier.Classifier
	history classifier.HistorySource
}

func NewClassifierService(clf *classifier.Classifier, history classifier.HistorySource) *ClassifierService {
	return &ClassifierService{clf: clf, history: history}
}

// Predict classifies note, substituting core.CategoryOthers when the
// classifier has no answer.
func (s *ClassifierService) Predict(note string) Prediction {
	id, ok := s.clf.Predict(note, nil)
	if !ok {
		id = core.CategoryOthers
	}
	name, _ := s.clf.CategoryName(id)
	return Prediction{CategoryID: id, Category: name, AutoDetected: true, Matched: ok}
}

// RetrainForUser refits the classifier on the user's most recent notes. The
// boolean mirrors classifier.RetrainFromHistory; the error reports history
// loading problems only.
func (s *ClassifierService) RetrainForUser(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, core.ErrMissingUser
	}
	history, err := s.history.RecentNotes(ctx, userID, classifier.MaxHistoryExamples)
	if err != nil {
		return false, fmt.Errorf("load history: %w", err)
	}

	ok := s.clf.RetrainFromHistory(history)
	slog.InfoContext(ctx, "Classifier retrain requested",
		log.FieldComponent, log.ComponentClassifier,
		log.FieldOperation, log.OpRetrain,
		log.FieldUserID, userID,
		"history", len(history),
		"retrained", ok)
	return ok, nil
}

// State reports whether a model has been published.
func (s *ClassifierService) State() classifier.State {
	return s.clf.State()
}

// Info describes the published model.
func (s *ClassifierService) Info() (classifier.Info, bool) {
	return s.clf.Info()
}

// Categories lists the configured categories.
func (s *ClassifierService) Categories() []core.Category {
	return s.clf.Categories()
}

// CategoryName returns the display name of a configured category.
func (s *ClassifierService) CategoryName(id core.CategoryID) string {
	name, ok := s.clf.CategoryName(id)
	if !ok {
		return "Unknown"
	}
	return name
}
