package leave

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// SummaryQuery scopes an aggregation. An empty Team matches nobody.
// From/To keep requests whose range intersects [From, To]; their whole
// TotalDays is counted.
type SummaryQuery struct {
	Team     []EmployeeID
	From     *generic.TimePoint
	To       *generic.TimePoint
	Statuses []Status
}

type StatusCounts struct {
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
}

func (c StatusCounts) Total() int {
	return c.Pending + c.Approved + c.Rejected + c.Cancelled
}

// Aggregator answers read-only rollups over stored requests.
type Aggregator struct {
	reader RequestReader
}

func NewAggregator(reader RequestReader) *Aggregator {
	return &Aggregator{reader: reader}
}

// CountByStatus counts the team's requests per status.
func (a *Aggregator) CountByStatus(ctx context.Context, q SummaryQuery) (StatusCounts, error) {
	var counts StatusCounts
	reqs, err := a.load(ctx, q, q.Statuses)
	if err != nil {
		return counts, err
	}
	for _, r := range reqs {
		switch r.Status {
		case StatusPending:
			counts.Pending++
		case StatusApproved:
			counts.Approved++
		case StatusRejected:
			counts.Rejected++
		case StatusCancelled:
			counts.Cancelled++
		}
	}
	return counts, nil
}

// DaysByType sums total days per reporting category. Without a status
// filter only approved requests count.
func (a *Aggregator) DaysByType(ctx context.Context, q SummaryQuery) (map[TypeCode]decimal.Decimal, error) {
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = []Status{StatusApproved}
	}
	reqs, err := a.load(ctx, q, statuses)
	if err != nil {
		return nil, err
	}

	out := make(map[TypeCode]decimal.Decimal)
	for _, r := range reqs {
		cat := Category(r.LeaveType)
		out[cat] = out[cat].Add(r.TotalDays)
	}
	return out, nil
}

// OnLeave lists team members with an approved request covering date.
func (a *Aggregator) OnLeave(ctx context.Context, team []EmployeeID, date generic.TimePoint) ([]EmployeeID, error) {
	reqs, err := a.load(ctx, SummaryQuery{Team: team, From: &date, To: &date}, []Status{StatusApproved})
	if err != nil {
		return nil, err
	}

	seen := make(map[EmployeeID]bool)
	var out []EmployeeID
	for _, r := range reqs {
		if !seen[r.EmployeeID] {
			seen[r.EmployeeID] = true
			out = append(out, r.EmployeeID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (a *Aggregator) load(ctx context.Context, q SummaryQuery, statuses []Status) ([]Request, error) {
	if len(q.Team) == 0 {
		return nil, nil
	}
	return a.reader.ListRequests(ctx, RequestFilter{
		EmployeeIDs: q.Team,
		Statuses:    statuses,
		From:        q.From,
		To:          q.To,
	})
}
