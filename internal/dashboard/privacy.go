package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/model"
)

// Placeholder budget shown when the server has no rounds yet.
const (
	PlaceholderRemaining = 4.2
	PlaceholderEpsilon   = 1.8
	PlaceholderDelta     = 1e-5
)

// BudgetSource fetches per-round privacy metrics, newest first.
type BudgetSource interface {
	PrivacyBudgets(ctx context.Context) ([]model.PrivacyMetrics, error)
}

// BudgetView is the rendered privacy budget.
type BudgetView struct {
	Round      int
	Epsilon    float64
	Delta      float64
	Remaining  float64
	Ceiling    float64
	Percent    float64 // remaining / ceiling, 0..100
	RecordedAt time.Time
	// Placeholder marks fallback values that do not come from the server.
	Placeholder bool
}

// PlaceholderBudget is the view used when no round has been reported.
func PlaceholderBudget(ceiling float64) BudgetView {
	return newBudgetView(model.PrivacyMetrics{
		Epsilon:         PlaceholderEpsilon,
		Delta:           PlaceholderDelta,
		RemainingBudget: PlaceholderRemaining,
	}, ceiling, true)
}

func newBudgetView(m model.PrivacyMetrics, ceiling float64, placeholder bool) BudgetView {
	view := BudgetView{
		Round:       m.Round,
		Epsilon:     m.Epsilon,
		Delta:       m.Delta,
		Remaining:   m.RemainingBudget,
		Ceiling:     ceiling,
		RecordedAt:  m.RecordedAt,
		Placeholder: placeholder,
	}
	if ceiling > 0 {
		view.Percent = min(max(m.RemainingBudget/ceiling*100, 0), 100)
	}
	return view
}

// PrivacyViewer shows the most recent privacy budget entry. It has no live updates.
type PrivacyViewer struct {
	source  BudgetSource
	ceiling float64

	mu     sync.RWMutex
	view   BudgetView
	loaded bool
}

func NewPrivacyViewer(source BudgetSource, ceiling float64) *PrivacyViewer {
	return &PrivacyViewer{
		source:  source,
		ceiling: ceiling,
		view:    PlaceholderBudget(ceiling),
	}
}

// Load fetches the budget list once and keeps the first (newest) entry.
func (v *PrivacyViewer) Load(ctx context.Context) error {
	budgets, err := v.source.PrivacyBudgets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load privacy budgets: %w", err)
	}

	view := PlaceholderBudget(v.ceiling)
	if len(budgets) > 0 {
		view = newBudgetView(budgets[0], v.ceiling, false)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.view = view
	v.loaded = true
	return nil
}

// View returns the current budget view and whether Load has succeeded.
func (v *PrivacyViewer) View() (BudgetView, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.view, v.loaded
}
