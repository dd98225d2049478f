/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave request lifecycle, balances and dashboards over REST.
  Handlers parse and validate input, call the leave services and
  serialize the result. They hold no business rules of their own beyond
  deciding who may read what.

ENDPOINTS:
  Requests:
    POST   /api/leave/requests               Create a pending request
    GET    /api/leave/requests               List (employee_id, status, leave_type, from, to)
    GET    /api/leave/requests/{id}          Get one request
    POST   /api/leave/requests/{id}/approve  Approve and debit the balance
    POST   /api/leave/requests/{id}/reject   Reject with a reason
    POST   /api/leave/requests/{id}/cancel   Cancel, crediting approved days back

  Balances and catalog:
    GET    /api/leave/balances/{employee}/{type}?date=
    GET    /api/leave/types
    PUT    /api/leave/types/{code}           Edit in memory; config is reloaded at start

  Read models:
    GET    /api/leave/on-leave/{employee}?date=
    GET    /api/leave/summary
    GET    /api/leave/dashboard

REQUEST FLOW:
  1. Read the actor placed in the context by the auth middleware
  2. Decode and validate the body (validator/v10)
  3. Check read access where the service doesn't
  4. Call the leave service
  5. Serialize the DTO or map the error (errors.go)

READ ACCESS:
  An actor may read an employee's requests and balances when they are
  that employee or may act for them (direct manager, override holder).
  Listing without employee_id returns the actor's dashboard scope.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Deps are the collaborators the handlers are built from.
type Deps struct {
	Requests  *leave.RequestService
	Reader    leave.RequestReader
	Directory leave.Directory
	Logger    *zap.Logger
	Clock     func() time.Time

	// Health reports whether the backing store is reachable.
	Health func(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	requests  *leave.RequestService
	summary   *leave.Aggregator
	dashboard *leave.DashboardService
	gate      *leave.Gate
	validate  *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
	health    func(ctx context.Context) error
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Health == nil {
		d.Health = func(context.Context) error { return nil }
	}

	agg := leave.NewAggregator(d.Reader)
	gate := d.Requests.Gate()
	return &Handler{
		requests:  d.Requests,
		summary:   agg,
		dashboard: leave.NewDashboardService(agg, d.Directory, gate, d.Clock),
		gate:      gate,
		validate:  newValidator(),
		logger:    d.Logger.Named("api"),
		clock:     d.Clock,
		health:    d.Health,
	}
}

// newValidator reports fields under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// CreateRequest files a pending request, for the caller by default.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)

	var body CreateRequestBody
	if err := h.decode(r, &body); err != nil {
		h.fail(w, err)
		return
	}

	start, err := generic.ParseDate(body.StartDate)
	if err != nil {
		h.fail(w, badRequest("start_date must be a YYYY-MM-DD date", err))
		return
	}
	end, err := generic.ParseDate(body.EndDate)
	if err != nil {
		h.fail(w, badRequest("end_date must be a YYYY-MM-DD date", err))
		return
	}

	in := leave.CreateInput{
		EmployeeID:         actor.EmployeeID,
		LeaveType:          leave.TypeCode(body.LeaveType),
		StartDate:          start,
		EndDate:            end,
		StartHalfDay:       body.StartHalfDay,
		EndHalfDay:         body.EndHalfDay,
		Reason:             body.Reason,
		IsEmergency:        body.IsEmergency,
		WorkHandover:       body.WorkHandover,
		ContactDuringLeave: body.ContactDuringLeave,
	}
	if body.EmployeeID != "" {
		in.EmployeeID = leave.EmployeeID(body.EmployeeID)
	}
	if body.Document != nil {
		in.Document = &leave.DocumentRef{Name: body.Document.Name, Ref: body.Document.Ref}
	}
	if body.ApproverID != nil {
		approver := leave.EmployeeID(*body.ApproverID)
		in.ApproverID = &approver
	}

	req, err := h.requests.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// ListRequests lists requests visible to the caller.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	q := r.URL.Query()

	team, err := h.team(r.Context(), actor, q["employee_id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	statuses, err := parseStatuses(q["status"])
	if err != nil {
		h.fail(w, err)
		return
	}
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, err)
		return
	}

	filter := leave.RequestFilter{EmployeeIDs: team, Statuses: statuses, From: from, To: to}
	for _, code := range splitValues(q["leave_type"]) {
		filter.LeaveTypes = append(filter.LeaveTypes, leave.TypeCode(code))
	}

	reqs, err := h.requests.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	dtos := make([]RequestDTO, len(reqs))
	for i := range reqs {
		dtos[i] = toRequestDTO(&reqs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRequest returns one request to its employee, its creator or anyone
// who may decide on it.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	id, err := requestID(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if req.EmployeeID != actor.EmployeeID && req.CreatedBy != actor.EmployeeID {
		ok, err := h.gate.CanAct(r.Context(), actor, req)
		if err != nil {
			h.fail(w, err)
			return
		}
		if !ok {
			h.fail(w, &leave.AuthorizationError{Actor: actor.EmployeeID, Action: "view", Target: id})
			return
		}
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	req, err := h.requests.Approve(r.Context(), id, h.actor(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body RejectBody
	if err := h.decode(r, &body); err != nil {
		h.fail(w, err)
		return
	}
	req, err := h.requests.Reject(r.Context(), id, h.actor(r), body.RejectionReason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	req, err := h.requests.Cancel(r.Context(), id, h.actor(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// BALANCE AND CATALOG HANDLERS
// =============================================================================

// GetBalance returns the balance for the period holding ?date (default today).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	employee := leave.EmployeeID(chi.URLParam(r, "employee"))
	if err := h.requireView(r.Context(), actor, employee); err != nil {
		h.fail(w, err)
		return
	}
	date, err := h.dateParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	code := leave.TypeCode(chi.URLParam(r, "type"))
	bal, err := h.requests.Ledger().BalanceOn(r.Context(), employee, code, date)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types := h.requests.Catalog().List()
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PutLeaveType adds or updates a catalog entry. The change is not
// written to the store: it lasts until the process exits, after which the
// catalog is rebuilt from the defaults and the leave_types config.
func (h *Handler) PutLeaveType(w http.ResponseWriter, r *http.Request) {
	var body LeaveTypeBody
	if err := h.decode(r, &body); err != nil {
		h.fail(w, err)
		return
	}

	lt := body.toLeaveType(leave.TypeCode(chi.URLParam(r, "code")))
	if err := h.requests.PutLeaveType(r.Context(), h.actor(r), lt); err != nil {
		h.fail(w, err)
		return
	}
	saved, err := h.requests.Catalog().Get(lt.Code)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveTypeDTO(saved))
}

// =============================================================================
// READ MODEL HANDLERS
// =============================================================================

func (h *Handler) OnLeave(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	employee := leave.EmployeeID(chi.URLParam(r, "employee"))
	if err := h.requireView(r.Context(), actor, employee); err != nil {
		h.fail(w, err)
		return
	}
	date, err := h.dateParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	on, err := h.requests.IsOnLeave(r.Context(), employee, date)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OnLeaveDTO{EmployeeID: string(employee), Date: date, OnLeave: on})
}

// Summary returns status counts and days by category for the given
// employees, or for the caller's dashboard scope.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	q := r.URL.Query()

	team, err := h.team(r.Context(), actor, q["employee_id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	statuses, err := parseStatuses(q["status"])
	if err != nil {
		h.fail(w, err)
		return
	}
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, err)
		return
	}

	sq := leave.SummaryQuery{Team: team, From: from, To: to, Statuses: statuses}
	counts, err := h.summary.CountByStatus(r.Context(), sq)
	if err != nil {
		h.fail(w, err)
		return
	}
	byType, err := h.summary.DaysByType(r.Context(), sq)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SummaryDTO{
		EmployeeIDs: idStrings(team),
		Counts:      counts,
		Total:       counts.Total(),
		DaysByType:  daysByType(byType),
	})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, err)
		return
	}

	d, err := h.dashboard.Build(r.Context(), h.actor(r), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.health(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) actor(r *http.Request) leave.Actor {
	actor, _ := ActorFrom(r.Context())
	return actor
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	writeError(w, h.logger, err)
}

// decode reads a JSON body and runs struct validation on it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return badRequest("invalid JSON body", err)
	}
	return h.validate.Struct(dst)
}

// team resolves the employees a read covers. Explicit ids must each be
// visible to actor; without them the actor's dashboard scope is used.
func (h *Handler) team(ctx context.Context, actor leave.Actor, raw []string) ([]leave.EmployeeID, error) {
	ids := splitValues(raw)
	if len(ids) == 0 {
		_, team, err := h.dashboard.Scope(ctx, actor)
		return team, err
	}

	team := make([]leave.EmployeeID, 0, len(ids))
	for _, id := range ids {
		employee := leave.EmployeeID(id)
		if err := h.requireView(ctx, actor, employee); err != nil {
			return nil, err
		}
		team = append(team, employee)
	}
	return team, nil
}

func (h *Handler) requireView(ctx context.Context, actor leave.Actor, employee leave.EmployeeID) error {
	ok, err := h.gate.CanView(ctx, actor, employee)
	if err != nil {
		return err
	}
	if !ok {
		return &leave.AuthorizationError{Actor: actor.EmployeeID, Action: "view leave of " + string(employee)}
	}
	return nil
}

// dateParam reads ?date, defaulting to today.
func (h *Handler) dateParam(r *http.Request) (generic.TimePoint, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return generic.FromTime(h.clock().UTC()), nil
	}
	date, err := generic.ParseDate(raw)
	if err != nil {
		return generic.TimePoint{}, badRequest("date must be a YYYY-MM-DD date", err)
	}
	return date, nil
}

func requestID(r *http.Request) (leave.RequestID, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("request id must be a positive integer", err)
	}
	return leave.RequestID(id), nil
}

func parseStatuses(raw []string) ([]leave.Status, error) {
	var out []leave.Status
	for _, v := range splitValues(raw) {
		s := leave.Status(v)
		if !s.Valid() {
			return nil, badRequest("unknown status "+strconv.Quote(v), nil)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseRange(fromRaw, toRaw string) (*generic.TimePoint, *generic.TimePoint, error) {
	var from, to *generic.TimePoint
	if fromRaw != "" {
		d, err := generic.ParseDate(fromRaw)
		if err != nil {
			return nil, nil, badRequest("from must be a YYYY-MM-DD date", err)
		}
		from = &d
	}
	if toRaw != "" {
		d, err := generic.ParseDate(toRaw)
		if err != nil {
			return nil, nil, badRequest("to must be a YYYY-MM-DD date", err)
		}
		to = &d
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, badRequest("to must not be before from", nil)
	}
	return from, to, nil
}

// splitValues accepts both repeated and comma-separated query values.
func splitValues(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
