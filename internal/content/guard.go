package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-content/internal/apperr"
)

// Existence is the result of a duplicate check.
type Existence struct {
	Exists bool      `json:"exists"`
	Count  int       `json:"count"`
	Items  []Summary `json:"items"`
}

func existence(items []Item) Existence {
	return Existence{Exists: len(items) > 0, Count: len(items), Items: Summarize(items)}
}

// Guard blocks writes over existing period content unless they are forced.
type Guard struct {
	store Store
}

// NewGuard creates a Guard on store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Check reports the active items of a period.
func (g *Guard) Check(ctx context.Context, q PeriodQuery) (Existence, error) {
	items, err := g.store.ActiveInPeriod(ctx, q)
	if err != nil {
		return Existence{}, apperr.Infrastructure("check period", err)
	}
	return existence(items), nil
}

// Prepare runs inside a period lock before a write. When the period has
// active items it returns a Conflict, or soft-deletes them when force is set.
// It returns the number of items replaced.
func (g *Guard) Prepare(ctx context.Context, tx PeriodTx, q PeriodQuery, force bool) (int, error) {
	items, err := tx.Active(ctx)
	if err != nil {
		return 0, apperr.Infrastructure("check period", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	if !force {
		return 0, apperr.New(apperr.KindConflict,
			fmt.Sprintf("%s already has %d active items", q.Period.Label, len(items)),
			existence(items))
	}

	n, err := tx.Deactivate(ctx)
	if err != nil {
		return 0, apperr.Infrastructure("deactivate period", err)
	}
	slog.Info("period content replaced", "track", q.Scope.TrackName, "period", q.Period.Key(), "deactivated", n)
	return n, nil
}

// DeletePeriod soft-deletes every active item of a period.
func (g *Guard) DeletePeriod(ctx context.Context, q PeriodQuery) (int, error) {
	var n int
	err := g.store.WithPeriodLock(ctx, q, func(tx PeriodTx) error {
		var err error
		n, err = tx.Deactivate(ctx)
		return err
	})
	if err != nil {
		return 0, apperr.Infrastructure("delete period", err)
	}
	return n, nil
}
