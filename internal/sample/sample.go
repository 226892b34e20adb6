// Package sample generates demo transactions and budgets for a user.
package sample

import (
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

// HistoryDays is how far back generated transactions may be dated.
const HistoryDays = 90

type profile struct {
	notes    []string
	min, max float64
	budget   int64
}

var profiles = map[core.CategoryID]profile{
	1: {
		notes: []string{"Lunch at restaurant", "Coffee shop", "Dinner with friends", "Grocery shopping", "Fast food"},
		min:   10, max: 100, budget: 500,
	},
	2: {
		notes: []string{"Taxi ride", "Bus ticket", "Uber", "Gas station", "Parking fee"},
		min:   5, max: 50, budget: 300,
	},
	3: {
		notes: []string{"Movie tickets", "Concert", "Game purchase", "Netflix subscription", "Theater show"},
		min:   15, max: 150, budget: 200,
	},
	core.CategoryOthers: {
		notes: []string{"Pharmacy", "Shopping mall", "Utility bill", "Medicine", "General store"},
		min:   20, max: 200, budget: 400,
	},
}

var categoryOrder = []core.CategoryID{1, 2, 3, core.CategoryOthers}

// Generator produces reproducible sample data for a given seed.
type Generator struct {
	rnd *rand.Rand
	now time.Time
}

func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now.UTC(),
	}
}

// Transactions returns n transactions spread over the last HistoryDays days.
func (g *Generator) Transactions(userID int64, n int) []core.Transaction {
	txs := make([]core.Transaction, 0, n)
	for i := 0; i < n; i++ {
		cat := categoryOrder[g.rnd.IntN(len(categoryOrder))]
		p := profiles[cat]
		amount := decimal.NewFromFloat(p.min + g.rnd.Float64()*(p.max-p.min)).Round(2)
		if !amount.IsPositive() {
			amount = decimal.NewFromFloat(p.min)
		}
		day := g.now.AddDate(0, 0, -g.rnd.IntN(HistoryDays+1))
		txs = append(txs, core.Transaction{
			UserID:     userID,
			CategoryID: cat,
			Amount:     amount,
			Note:       p.notes[g.rnd.IntN(len(p.notes))],
			Date:       core.NewDate(day.Year(), int(day.Month()), day.Day()),
		})
	}
	return txs
}

// Budgets returns one budget per category for the current and the next month.
func (g *Generator) Budgets(userID int64) []core.Budget {
	current := core.CurrentMonth(g.now)
	budgets := make([]core.Budget, 0, 2*len(categoryOrder))
	for _, month := range []core.Month{current, current.Next()} {
		for _, cat := range categoryOrder {
			budgets = append(budgets, core.Budget{
				UserID:     userID,
				CategoryID: cat,
				Limit:      decimal.NewFromInt(profiles[cat].budget),
				Month:      month,
			})
		}
	}
	return budgets
}
