package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// ViewMode is the scope a dashboard reports on.
type ViewMode string

const (
	ViewSelf    ViewMode = "self"    // the actor's own requests
	ViewTeam    ViewMode = "team"    // the actor and their direct reports
	ViewCompany ViewMode = "company" // everyone in the actor's company
)

type Dashboard struct {
	Mode         ViewMode
	Team         []EmployeeID
	Date         generic.TimePoint
	Counts       StatusCounts
	DaysByType   map[TypeCode]decimal.Decimal
	OnLeaveToday []EmployeeID
}

// DashboardService resolves what an actor may see and answers each scope
// with the same read queries.
type DashboardService struct {
	aggregator *Aggregator
	directory  Directory
	gate       *Gate
	clock      func() time.Time
}

func NewDashboardService(aggregator *Aggregator, directory Directory, gate *Gate, clock func() time.Time) *DashboardService {
	if clock == nil {
		clock = time.Now
	}
	return &DashboardService{aggregator: aggregator, directory: directory, gate: gate, clock: clock}
}

// Scope resolves the view mode of actor and the employees it covers.
func (d *DashboardService) Scope(ctx context.Context, actor Actor) (ViewMode, []EmployeeID, error) {
	admin, err := d.gate.IsAdmin(actor)
	if err != nil {
		return "", nil, err
	}
	if admin {
		members, err := d.directory.CompanyMembers(ctx, actor.CompanyID)
		if err != nil {
			return "", nil, err
		}
		return ViewCompany, members, nil
	}

	reports, err := d.directory.Reports(ctx, actor.EmployeeID)
	if err != nil {
		return "", nil, err
	}
	if len(reports) > 0 {
		return ViewTeam, append([]EmployeeID{actor.EmployeeID}, reports...), nil
	}
	return ViewSelf, []EmployeeID{actor.EmployeeID}, nil
}

// Build assembles the dashboard for actor. from/to optionally restrict
// the counts and day totals to requests intersecting that range.
func (d *DashboardService) Build(ctx context.Context, actor Actor, from, to *generic.TimePoint) (*Dashboard, error) {
	mode, team, err := d.Scope(ctx, actor)
	if err != nil {
		return nil, err
	}

	q := SummaryQuery{Team: team, From: from, To: to}
	counts, err := d.aggregator.CountByStatus(ctx, q)
	if err != nil {
		return nil, err
	}
	byType, err := d.aggregator.DaysByType(ctx, q)
	if err != nil {
		return nil, err
	}

	today := generic.FromTime(d.clock().UTC())
	onLeave, err := d.aggregator.OnLeave(ctx, team, today)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Mode:         mode,
		Team:         team,
		Date:         today,
		Counts:       counts,
		DaysByType:   byType,
		OnLeaveToday: onLeave,
	}, nil
}
