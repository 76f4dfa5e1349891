package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gehhilfe/shopflux/core"
)

const (
	// MaxTake bounds the page size of every listing query.
	MaxTake = 1000
	// MaxRecentHours bounds the "recent events" window to one week.
	MaxRecentHours = 168
	// MaxReportWindow bounds the report window so scan cost stays
	// predictable.
	MaxReportWindow = 90 * 24 * time.Hour

	defaultTake = 50
	dayFormat   = "2006-01-02"
)

// ErrInvalidWindow is returned for report windows outside the allowed
// bounds, before the store is touched.
var ErrInvalidWindow = errors.New("invalid time window")

// Filter is a composable event filter; zero fields are ignored and supplied
// fields combine with logical AND.
type Filter struct {
	// TypeContains matches the event type, case-insensitive substring.
	TypeContains string
	// UserContains matches the acting user id, case-insensitive substring.
	UserContains string
	// AggregateID matches exactly.
	AggregateID string
	// From/To bound OccurredOn; zero values leave the side unbounded.
	From time.Time
	To   time.Time
}

func (f Filter) matches(e core.StoredEvent) bool {
	if f.TypeContains != "" && !strings.Contains(strings.ToLower(e.EventType), strings.ToLower(f.TypeContains)) {
		return false
	}
	if f.UserContains != "" && !strings.Contains(strings.ToLower(e.Actor.UserID), strings.ToLower(f.UserContains)) {
		return false
	}
	if f.AggregateID != "" && e.AggregateID != f.AggregateID {
		return false
	}
	if !f.From.IsZero() && e.OccurredOn.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.OccurredOn.After(f.To) {
		return false
	}
	return true
}

// QueryService is the read side over the audit store. Every query is an
// in-memory filter over the full log, not an indexed lookup; this is an
// explicit scalability ceiling appropriate to the dataset sizes this demo
// backend holds.
type QueryService struct {
	store core.Store
}

func NewQueryService(store core.Store) *QueryService {
	return &QueryService{store: store}
}

func clampPage(skip, take int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = defaultTake
	}
	if take > MaxTake {
		take = MaxTake
	}
	return skip, take
}

func (q *QueryService) scan(ctx context.Context, f Filter) ([]core.StoredEvent, error) {
	all, err := q.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}

	matched := []core.StoredEvent{}
	for e, err := range all {
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if f.matches(e) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func page(events []core.StoredEvent, skip, take int) []core.StoredEvent {
	if skip >= len(events) {
		return []core.StoredEvent{}
	}
	events = events[skip:]
	if take < len(events) {
		events = events[:take]
	}
	return events
}

// List returns a page of the raw event log in global order. take is clamped
// to MaxTake.
func (q *QueryService) List(ctx context.Context, skip, take int) ([]core.StoredEvent, error) {
	skip, take = clampPage(skip, take)
	events, err := q.scan(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	return page(events, skip, take), nil
}

// Search returns a page of events matching the filter.
func (q *QueryService) Search(ctx context.Context, f Filter, skip, take int) ([]core.StoredEvent, error) {
	skip, take = clampPage(skip, take)
	events, err := q.scan(ctx, f)
	if err != nil {
		return nil, err
	}
	return page(events, skip, take), nil
}

// ByAggregate returns the full ordered history of one aggregate. An unknown
// aggregate yields an empty history.
func (q *QueryService) ByAggregate(ctx context.Context, aggregateID string) ([]core.StoredEvent, error) {
	stream, err := q.store.Events(ctx, aggregateID, 0)
	if errors.Is(err, core.ErrNoStream) {
		return []core.StoredEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", aggregateID, err)
	}

	events := []core.StoredEvent{}
	for e, err := range stream {
		if err != nil {
			return nil, fmt.Errorf("read stream %s: %w", aggregateID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Recent returns events from the last given hours, clamped to
// MaxRecentHours.
func (q *QueryService) Recent(ctx context.Context, hours int) ([]core.StoredEvent, error) {
	if hours <= 0 {
		hours = 24
	}
	if hours > MaxRecentHours {
		hours = MaxRecentHours
	}
	return q.scan(ctx, Filter{From: time.Now().Add(-time.Duration(hours) * time.Hour)})
}

// Report is an aggregate breakdown of the audit log over a bounded window.
type Report struct {
	From    time.Time      `json:"desde"`
	To      time.Time      `json:"hasta"`
	Total   int            `json:"total"`
	ByType  map[string]int `json:"porTipo"`
	ByUser  map[string]int `json:"porUsuario"`
	ByDay   map[string]int `json:"porDia"`
}

// Report computes the breakdowns over [from, to]. Windows with to <= from
// or longer than MaxReportWindow are rejected with ErrInvalidWindow before
// the store is scanned.
func (q *QueryService) Report(ctx context.Context, from, to time.Time) (*Report, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: hasta must be after desde", ErrInvalidWindow)
	}
	if to.Sub(from) > MaxReportWindow {
		return nil, fmt.Errorf("%w: window exceeds %d days", ErrInvalidWindow, int(MaxReportWindow.Hours()/24))
	}

	events, err := q.scan(ctx, Filter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	report := &Report{
		From:   from,
		To:     to,
		Total:  len(events),
		ByType: make(map[string]int),
		ByUser: make(map[string]int),
		ByDay:  make(map[string]int),
	}
	for _, e := range events {
		report.ByType[e.EventType]++
		report.ByUser[actorKey(e.Actor)]++
		report.ByDay[e.OccurredOn.Format(dayFormat)]++
	}
	return report, nil
}

func actorKey(a core.Actor) string {
	if a.UserID == "" {
		return "anonymous"
	}
	return a.UserID
}

// Count is a name/count pair used by Stats rankings.
type Count struct {
	Name  string `json:"nombre"`
	Count int    `json:"total"`
}

// Stats is a derived summary of recent audit activity.
type Stats struct {
	Last24h  int     `json:"ultimas24Horas"`
	Last7d   int     `json:"ultimos7Dias"`
	TopTypes []Count `json:"tiposFrecuentes"`
	TopUsers []Count `json:"usuariosFrecuentes"`
}

// Stats summarizes the last week of events: totals plus the five most
// frequent event types and acting users.
func (q *QueryService) Stats(ctx context.Context) (*Stats, error) {
	now := time.Now()
	events, err := q.scan(ctx, Filter{From: now.Add(-7 * 24 * time.Hour)})
	if err != nil {
		return nil, err
	}

	stats := &Stats{Last7d: len(events)}
	byType := make(map[string]int)
	byUser := make(map[string]int)
	dayAgo := now.Add(-24 * time.Hour)
	for _, e := range events {
		if e.OccurredOn.After(dayAgo) {
			stats.Last24h++
		}
		byType[e.EventType]++
		byUser[actorKey(e.Actor)]++
	}
	stats.TopTypes = top(byType, 5)
	stats.TopUsers = top(byUser, 5)
	return stats, nil
}

func top(counts map[string]int, n int) []Count {
	ranked := make([]Count, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, Count{Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
