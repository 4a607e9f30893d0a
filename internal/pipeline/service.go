// Package pipeline exposes the content pipeline's operations: context
// resolution, guarded period uploads and replacements, topic validation and
// assignment, period listing and grouped reads.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/p-n-ai/pai-content/internal/apperr"
	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/resolver"
	"github.com/p-n-ai/pai-content/internal/topic"
)

// ContextRef names a hierarchy context. ExpectedTrackType is filled in from
// the operation's period type when empty.
type ContextRef = resolver.Request

// Deps are the repositories the service reads and writes.
type Deps struct {
	Hierarchy   hierarchy.Repository
	Topics      topic.Repository
	Assignments topic.AssignmentStore
	Content     content.Store
}

// Config tunes period listing.
type Config struct {
	// YearWindow is the number of years listed for years tracks, ending at
	// the current year.
	YearWindow int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Service implements the pipeline operations over its repositories.
type Service struct {
	resolver   *resolver.Resolver
	guard      *content.Guard
	enricher   *content.Enricher
	upserter   *content.BulkUpserter
	validator  *topic.Validator
	aggregator *topic.Aggregator
	topics     topic.Repository
	content    content.Store

	yearWindow int
	now        func() time.Time
}

// New creates a Service.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Hierarchy == nil || deps.Topics == nil || deps.Assignments == nil || deps.Content == nil {
		return nil, fmt.Errorf("pipeline: every repository is required")
	}
	enricher, err := content.NewEnricher()
	if err != nil {
		return nil, fmt.Errorf("creating enricher: %w", err)
	}
	if cfg.YearWindow <= 0 {
		cfg.YearWindow = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		resolver:   resolver.New(deps.Hierarchy),
		guard:      content.NewGuard(deps.Content),
		enricher:   enricher,
		upserter:   content.NewBulkUpserter(deps.Content),
		validator:  topic.NewValidator(deps.Topics),
		aggregator: topic.NewAggregator(deps.Topics, deps.Assignments, deps.Content),
		topics:     deps.Topics,
		content:    deps.Content,
		yearWindow: cfg.YearWindow,
		now:        cfg.Now,
	}, nil
}

// Resolve resolves ref to a hierarchy context.
func (s *Service) Resolve(ctx context.Context, ref ContextRef) (resolver.Resolution, error) {
	return s.resolver.Resolve(ctx, ref)
}

// resolveTyped resolves ref and checks that the track has type t.
func (s *Service) resolveTyped(ctx context.Context, ref ContextRef, t period.TrackType) (resolver.Context, error) {
	if !t.Valid() {
		return resolver.Context{}, apperr.Newf(apperr.KindInvalidInput, "unknown period type %q", t)
	}
	if ref.ExpectedTrackType == "" {
		ref.ExpectedTrackType = t
	}
	res, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return resolver.Context{}, err
	}
	rc := res.Context
	if rc.Track.Type != t {
		return resolver.Context{}, apperr.New(apperr.KindTrackTypeMismatch,
			fmt.Sprintf("track %q has type %s, not %s", rc.Track.Name, rc.Track.Type, t),
			map[string]any{"track": rc.Track.Name, "trackType": rc.Track.Type, "requested": t})
	}
	return rc, nil
}

// periodQuery resolves ref and encodes value as a period of its track.
func (s *Service) periodQuery(ctx context.Context, ref ContextRef, t period.TrackType, value string) (resolver.Context, content.PeriodQuery, error) {
	rc, err := s.resolveTyped(ctx, ref, t)
	if err != nil {
		return resolver.Context{}, content.PeriodQuery{}, err
	}
	q, err := queryFor(rc, value)
	return rc, q, err
}

func queryFor(rc resolver.Context, value string) (content.PeriodQuery, error) {
	enc, err := period.Encode(rc.Track.Type, value)
	if err != nil {
		return content.PeriodQuery{}, err
	}
	if err := enc.CheckRange(rc.Track.Duration); err != nil {
		return content.PeriodQuery{}, err
	}
	return content.PeriodQuery{Scope: rc.Scope(), Period: enc}, nil
}

// CheckPeriod reports the active items of one period.
func (s *Service) CheckPeriod(ctx context.Context, ref ContextRef, t period.TrackType, value string) (content.Existence, error) {
	_, q, err := s.periodQuery(ctx, ref, t, value)
	if err != nil {
		return content.Existence{}, err
	}
	return s.guard.Check(ctx, q)
}

// DeleteResult is returned by DeletePeriod.
type DeleteResult struct {
	DeletedCount int `json:"deletedCount"`
}

// DeletePeriod soft-deletes every active item of one period.
func (s *Service) DeletePeriod(ctx context.Context, ref ContextRef, t period.TrackType, value string) (DeleteResult, error) {
	_, q, err := s.periodQuery(ctx, ref, t, value)
	if err != nil {
		return DeleteResult{}, err
	}
	n, err := s.guard.DeletePeriod(ctx, q)
	if err != nil {
		return DeleteResult{}, err
	}
	slog.Info("period deleted", "track", q.Scope.TrackName, "period", q.Period.Key(), "deleted", n)
	return DeleteResult{DeletedCount: n}, nil
}

// UploadRequest is the input of UploadPeriod.
type UploadRequest struct {
	Ref         ContextRef       `json:"context"`
	PeriodType  period.TrackType `json:"periodType"`
	PeriodValue string           `json:"periodValue"`
	Items       []content.Input  `json:"items"`
	Force       bool             `json:"force"`
}

// UploadPeriod writes items into one period. Batches carrying questions or
// topic labels are validated against the approved vocabulary first and are
// rejected whole when any label fails.
func (s *Service) UploadPeriod(ctx context.Context, req UploadRequest) (content.BulkResult, error) {
	rc, q, err := s.periodQuery(ctx, req.Ref, req.PeriodType, req.PeriodValue)
	if err != nil {
		return content.BulkResult{}, err
	}
	if len(req.Items) == 0 {
		return content.BulkResult{}, apperr.Newf(apperr.KindInvalidInput, "at least one item is required")
	}
	topicIDs, err := s.validateBatch(ctx, rc, req.Items)
	if err != nil {
		return content.BulkResult{}, err
	}
	items, err := s.enricher.Enrich(q, req.Items, topicIDs)
	if err != nil {
		return content.BulkResult{}, err
	}
	return s.upserter.Upsert(ctx, q, items, req.Force)
}

// ReplacePeriod force-replaces the content of every period named by the
// items' Period field. The whole batch is validated and enriched before the
// first period is written.
func (s *Service) ReplacePeriod(ctx context.Context, ref ContextRef, t period.TrackType, inputs []content.Input) (content.BulkResult, error) {
	rc, err := s.resolveTyped(ctx, ref, t)
	if err != nil {
		return content.BulkResult{}, err
	}
	if len(inputs) == 0 {
		return content.BulkResult{}, apperr.Newf(apperr.KindInvalidInput, "at least one item is required")
	}

	type group struct {
		q      content.PeriodQuery
		inputs []content.Input
		topics []string
	}
	var (
		order   []string
		groups  = map[string]*group{}
		keys    = make([]string, len(inputs))
		missing []content.ItemError
		mixed   []content.ItemError
	)
	for i, in := range inputs {
		if strings.TrimSpace(in.Period) == "" {
			missing = append(missing, content.ItemError{Index: i, Name: in.Name, Error: "period is required"})
			continue
		}
		q, err := queryFor(rc, in.Period)
		if err != nil {
			return content.BulkResult{}, err
		}
		k := q.Period.Key()
		keys[i] = k
		g, ok := groups[k]
		if !ok {
			g = &group{q: q}
			groups[k] = g
			order = append(order, k)
		}
		// Semester labels sharing a number would overwrite each other's semesterName.
		if g.q.Period.SemesterName != q.Period.SemesterName {
			mixed = append(mixed, content.ItemError{Index: i, Name: in.Name,
				Error: fmt.Sprintf("period %q shares %s with %q", in.Period, k, g.q.Period.SemesterName)})
			continue
		}
		g.inputs = append(g.inputs, in)
	}
	if len(missing) > 0 {
		return content.BulkResult{}, apperr.New(apperr.KindInvalidInput,
			fmt.Sprintf("%d of %d items have no period", len(missing), len(inputs)), missing)
	}
	if len(mixed) > 0 {
		return content.BulkResult{}, apperr.New(apperr.KindInvalidInput,
			fmt.Sprintf("%d items use a different label for an already named period", len(mixed)), mixed)
	}

	topicIDs, err := s.validateBatch(ctx, rc, inputs)
	if err != nil {
		return content.BulkResult{}, err
	}
	if topicIDs != nil {
		for i, id := range topicIDs {
			g := groups[keys[i]]
			g.topics = append(g.topics, id)
		}
	}

	enriched := make(map[string][]content.Item, len(groups))
	for _, k := range order {
		g := groups[k]
		items, err := s.enricher.Enrich(g.q, g.inputs, g.topics)
		if err != nil {
			return content.BulkResult{}, err
		}
		enriched[k] = items
	}

	result := content.NewBulkResult()
	for _, k := range order {
		r, err := s.upserter.Upsert(ctx, groups[k].q, enriched[k], true)
		if err != nil {
			return content.BulkResult{}, err
		}
		result.Merge(r)
	}
	return result, nil
}

// validateBatch validates the topic labels of the questions and labelled
// items of a batch and returns the topic ID of each input. Plain content
// without a topic is not validated. It returns nil IDs when nothing needs
// validation.
func (s *Service) validateBatch(ctx context.Context, rc resolver.Context, inputs []content.Input) ([]string, error) {
	var checked []int
	for i, in := range inputs {
		if in.IsQuestion() || strings.TrimSpace(in.Topic) != "" {
			checked = append(checked, i)
		}
	}
	if len(checked) == 0 {
		return nil, nil
	}

	subset := make([]string, len(checked))
	for j, i := range checked {
		subset[j] = inputs[i].Topic
	}
	report, err := s.validator.Validate(ctx, rc.Exam.ID, rc.Subject.ID, subset)
	if err != nil {
		return nil, err
	}
	// Report indices refer to the batch, not the validated subset.
	for k := range report.ValidItems {
		report.ValidItems[k].Index = checked[report.ValidItems[k].Index]
	}
	for k := range report.InvalidItems {
		report.InvalidItems[k].Index = checked[report.InvalidItems[k].Index]
	}
	if err := report.Err(); err != nil {
		slog.Warn("batch rejected by topic validation",
			"track", rc.Track.Name, "invalid", report.Summary.Invalid, "total", report.Summary.Total)
		return nil, err
	}
	ids := make([]string, len(inputs))
	for _, i := range checked {
		ids[i], _ = report.TopicID(i)
	}
	return ids, nil
}

func labels(inputs []content.Input) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = in.Topic
	}
	return out
}

// ValidateTopics checks the topic labels of items against the approved
// vocabulary of the exam and subject.
func (s *Service) ValidateTopics(ctx context.Context, examID, subjectID string, items []content.Input) (topic.Report, error) {
	if examID == "" || subjectID == "" {
		return topic.Report{}, apperr.Newf(apperr.KindInvalidInput, "examId and subjectId are required")
	}
	return s.validator.Validate(ctx, examID, subjectID, labels(items))
}

// UpdateItem patches one active item of a period. A topic change is
// validated on its own.
func (s *Service) UpdateItem(ctx context.Context, ref ContextRef, t period.TrackType, value, name string, patch content.Patch) (content.Item, error) {
	rc, q, err := s.periodQuery(ctx, ref, t, value)
	if err != nil {
		return content.Item{}, err
	}

	var topicID string
	if patch.Topic != nil {
		report, err := s.validator.Validate(ctx, rc.Exam.ID, rc.Subject.ID, []string{*patch.Topic})
		if err != nil {
			return content.Item{}, err
		}
		if err := report.Err(); err != nil {
			return content.Item{}, err
		}
		topicID, _ = report.TopicID(0)
	}

	enc := q.Period
	updated, err := s.content.UpdateItem(ctx, q, content.ResolveName(enc, name), func(it *content.Item) error {
		if patch.DisplayName != nil {
			d := strings.TrimSpace(*patch.DisplayName)
			if d == "" {
				return apperr.Newf(apperr.KindInvalidInput, "displayName cannot be empty")
			}
			if !strings.HasPrefix(d, enc.DisplayPrefix()) {
				d = enc.DisplayPrefix() + d
			}
			it.DisplayName = d
		}
		if patch.Description != nil {
			it.Description = *patch.Description
		}
		if patch.Metadata != nil {
			if it.Metadata == nil {
				it.Metadata = map[string]any{}
			}
			maps.Copy(it.Metadata, patch.Metadata)
			maps.Copy(it.Metadata, enc.Fields())
			it.Metadata[period.KeyTimeBasedContent] = true
		}
		if patch.Topic != nil {
			it.Topic = strings.TrimSpace(*patch.Topic)
			it.TopicID = topicID
		}
		if patch.Question != nil {
			it.Question = *patch.Question
			it.Kind = content.KindQuestion
		}
		if patch.Options != nil {
			it.Options = patch.Options
		}
		if patch.Answer != nil {
			it.Answer = *patch.Answer
		}
		if patch.Explanation != nil {
			it.Explanation = *patch.Explanation
		}
		return nil
	})
	if err != nil {
		return content.Item{}, itemError(err, "update item", name, enc)
	}
	slog.Info("item updated", "track", q.Scope.TrackName, "period", enc.Key(), "name", updated.Name)
	return updated, nil
}

// DeleteItem soft-deletes one active item of a period.
func (s *Service) DeleteItem(ctx context.Context, ref ContextRef, t period.TrackType, value, name string) error {
	_, q, err := s.periodQuery(ctx, ref, t, value)
	if err != nil {
		return err
	}
	if err := s.content.DeleteItem(ctx, q, content.ResolveName(q.Period, name)); err != nil {
		return itemError(err, "delete item", name, q.Period)
	}
	slog.Info("item deleted", "track", q.Scope.TrackName, "period", q.Period.Key(), "name", name)
	return nil
}

func itemError(err error, op, name string, enc period.Encoding) error {
	if errors.Is(err, content.ErrNotFound) {
		return apperr.New(apperr.KindItemNotFound,
			fmt.Sprintf("item %q not found in %s", name, enc.Label),
			map[string]any{"name": content.ResolveName(enc, name), "period": enc.Key()})
	}
	return apperr.Infrastructure(op, err)
}
