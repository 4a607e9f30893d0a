package content

import (
	"context"
	"errors"
	"log/slog"

	"github.com/p-n-ai/pai-content/internal/apperr"
)

// Results lists the per-item outcomes of a bulk write.
type Results struct {
	Created    []Item      `json:"created"`
	Errors     []ItemError `json:"errors"`
	Duplicates []ItemError `json:"duplicates"`
}

// BulkResult is returned by BulkUpserter.Upsert. Success is false when items
// were expected but none was created.
type BulkResult struct {
	Success  bool    `json:"success"`
	Results  Results `json:"results"`
	Replaced int     `json:"replaced"`
}

// Merge appends the results of another period's write.
func (r *BulkResult) Merge(o BulkResult) {
	r.Results.Created = append(r.Results.Created, o.Results.Created...)
	r.Results.Errors = append(r.Results.Errors, o.Results.Errors...)
	r.Results.Duplicates = append(r.Results.Duplicates, o.Results.Duplicates...)
	r.Replaced += o.Replaced
	r.Success = r.Success && o.Success
}

// NewBulkResult returns an empty successful result.
func NewBulkResult() BulkResult {
	return BulkResult{Success: true, Results: Results{Created: []Item{}, Errors: []ItemError{}, Duplicates: []ItemError{}}}
}

// errNothingCreated rolls back a period write that created no item, which
// keeps any content it would have replaced active.
var errNothingCreated = errors.New("content: no item created")

// BulkUpserter writes enriched items into one period.
type BulkUpserter struct {
	store Store
	guard *Guard
}

// NewBulkUpserter creates a BulkUpserter on store.
func NewBulkUpserter(store Store) *BulkUpserter {
	return &BulkUpserter{store: store, guard: NewGuard(store)}
}

// Upsert guards the period and inserts items one by one under the period
// lock. A failed item is recorded and the rest of the batch continues. Guard
// and infrastructure failures are returned as errors.
func (b *BulkUpserter) Upsert(ctx context.Context, q PeriodQuery, items []Item, force bool) (BulkResult, error) {
	var result BulkResult
	err := b.store.WithPeriodLock(ctx, q, func(tx PeriodTx) error {
		result = NewBulkResult()

		replaced, err := b.guard.Prepare(ctx, tx, q, force)
		if err != nil {
			return err
		}
		result.Replaced = replaced

		for i, it := range items {
			created, err := tx.Insert(ctx, it)
			switch {
			case errors.Is(err, ErrDuplicate):
				result.Results.Duplicates = append(result.Results.Duplicates,
					ItemError{Index: i, Name: it.Name, Error: "an active item with this name already exists"})
			case err != nil:
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("item insert failed", "name", it.Name, "period", q.Period.Key(), "error", err)
				result.Results.Errors = append(result.Results.Errors, ItemError{Index: i, Name: it.Name, Error: err.Error()})
			default:
				result.Results.Created = append(result.Results.Created, created)
			}
		}

		if len(result.Results.Created) == 0 {
			result.Success = false
			return errNothingCreated
		}
		return nil
	})
	if errors.Is(err, errNothingCreated) {
		result.Replaced = 0
		slog.Warn("period write created nothing", "track", q.Scope.TrackName, "period", q.Period.Key(),
			"errors", len(result.Results.Errors), "duplicates", len(result.Results.Duplicates))
		return result, nil
	}
	if err != nil {
		return BulkResult{}, apperr.Infrastructure("write period", err)
	}

	slog.Info("period written",
		"track", q.Scope.TrackName,
		"period", q.Period.Key(),
		"created", len(result.Results.Created),
		"errors", len(result.Results.Errors),
		"duplicates", len(result.Results.Duplicates),
		"replaced", result.Replaced,
	)
	return result, nil
}
