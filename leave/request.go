package leave

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// Observer receives one call per finished operation. outcome is "ok"
// or an ErrorCode.
type Observer interface {
	Transition(action, outcome string)
	LedgerEntry(kind generic.TransactionType, days decimal.Decimal)
}

type nopObserver struct{}

func (nopObserver) Transition(string, string)                           {}
func (nopObserver) LedgerEntry(generic.TransactionType, decimal.Decimal) {}

type Option func(*RequestService)

func WithLogger(l *zap.Logger) Option {
	return func(s *RequestService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, which decides "today" for cancellation.
func WithClock(clock func() time.Time) Option {
	return func(s *RequestService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *RequestService) {
		if o != nil {
			s.observer = o
		}
	}
}

// =============================================================================
// REQUEST SERVICE
// =============================================================================

// RequestService owns the leave request state machine:
//
//	pending  -> approved | rejected | cancelled
//	approved -> cancelled (before start_date only)
//
// Approval debits the ledger and cancelling an approved request credits
// it back, each in the same store transaction as the status change.
type RequestService struct {
	store     TxStore
	catalog   *Catalog
	directory Directory
	gate      *Gate
	ledger    *BalanceLedger
	clock     func() time.Time
	logger    *zap.Logger
	observer  Observer
}

func NewRequestService(store TxStore, catalog *Catalog, directory Directory, gate *Gate, opts ...Option) *RequestService {
	s := &RequestService{
		store:     store,
		catalog:   catalog,
		directory: directory,
		gate:      gate,
		clock:     time.Now,
		logger:    zap.NewNop(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = NewBalanceLedger(store, catalog, s.clock, s.logger)
	s.logger = s.logger.Named("leave.requests")
	return s
}

func (s *RequestService) Ledger() *BalanceLedger { return s.ledger }
func (s *RequestService) Catalog() *Catalog      { return s.catalog }
func (s *RequestService) Gate() *Gate            { return s.gate }

// CreateInput carries the fields a requester controls.
type CreateInput struct {
	EmployeeID         EmployeeID
	LeaveType          TypeCode
	StartDate          generic.TimePoint
	EndDate            generic.TimePoint
	StartHalfDay       bool
	EndHalfDay         bool
	Reason             string
	IsEmergency        bool
	WorkHandover       string
	ContactDuringLeave string
	Document           *DocumentRef
	ApproverID         *EmployeeID
}

// Create records a pending request. The balance is checked against the
// period holding the start date but the ledger is not touched.
func (s *RequestService) Create(ctx context.Context, actor Actor, in CreateInput) (*Request, error) {
	log := s.logger.With(
		zap.String("employee_id", string(in.EmployeeID)),
		zap.String("leave_type", string(in.LeaveType)),
		zap.String("actor", string(actor.EmployeeID)))
	log.Debug("creating leave request",
		zap.String("start_date", in.StartDate.String()),
		zap.String("end_date", in.EndDate.String()))

	req, emp, err := s.prepare(ctx, actor, in)
	if err != nil {
		return nil, s.fail(log, "create", err)
	}

	// The catalog stays read-locked until the insert so the rules checked
	// here are the ones the request is stored under.
	err = s.catalog.Hold(req.LeaveType, func(lt LeaveType) error {
		if !lt.EnabledFor(emp.CompanyID) {
			return &ValidationError{Field: "leave_type", Message: "leave type " + string(lt.Code) + " is not enabled for this company"}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.store.WithTx(ctx, func(tx Store) error {
			existing, err := tx.FindOverlapping(ctx, req.EmployeeID, req.StartDate, req.EndDate)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return &OverlapError{
					EmployeeID: req.EmployeeID,
					ExistingID: existing[0].ID,
					Start:      existing[0].StartDate,
					End:        existing[0].EndDate,
				}
			}
			if err := s.ledger.ensureAvailable(ctx, tx, lt, req); err != nil {
				return err
			}
			return tx.InsertRequest(ctx, req)
		})
	})
	if err != nil {
		return nil, s.fail(log, "create", err)
	}

	log.Info("leave request created",
		zap.Int64("request_id", int64(req.ID)),
		zap.String("total_days", req.TotalDays.String()))
	s.observer.Transition("create", "ok")
	return req, nil
}

func (s *RequestService) prepare(ctx context.Context, actor Actor, in CreateInput) (*Request, Employee, error) {
	if in.EmployeeID == "" {
		return nil, Employee{}, &ValidationError{Field: "employee_id", Message: "is required"}
	}
	if in.LeaveType == "" {
		return nil, Employee{}, &ValidationError{Field: "leave_type", Message: "is required"}
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, Employee{}, &ValidationError{Field: "start_date", Message: "start_date and end_date are required"}
	}
	total, err := TotalDays(in.StartDate, in.EndDate, in.StartHalfDay, in.EndHalfDay)
	if err != nil {
		return nil, Employee{}, err
	}
	if in.Document != nil && strings.TrimSpace(in.Document.Ref) == "" {
		return nil, Employee{}, &ValidationError{Field: "document", Message: "ref is required when a document is attached"}
	}
	if in.ApproverID != nil && *in.ApproverID == in.EmployeeID {
		return nil, Employee{}, &ValidationError{Field: "approver_id", Message: "requester cannot approve their own leave"}
	}

	emp, err := s.directory.Employee(ctx, in.EmployeeID)
	if err != nil {
		return nil, Employee{}, err
	}
	if !emp.Active {
		return nil, Employee{}, &ValidationError{Field: "employee_id", Message: "employee is not active"}
	}

	if actor.EmployeeID != in.EmployeeID {
		ok, err := s.gate.CanActFor(ctx, actor, in.EmployeeID)
		if err != nil {
			return nil, Employee{}, err
		}
		if !ok {
			return nil, Employee{}, &AuthorizationError{Actor: actor.EmployeeID, Action: "create leave for " + string(in.EmployeeID)}
		}
	}

	if in.ApproverID != nil {
		if err := s.checkApprover(ctx, actor, emp, *in.ApproverID); err != nil {
			return nil, Employee{}, err
		}
	}

	now := s.clock().UTC()
	return &Request{
		EmployeeID:         in.EmployeeID,
		LeaveType:          in.LeaveType,
		ApproverID:         in.ApproverID,
		CreatedBy:          actor.EmployeeID,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		StartHalfDay:       in.StartHalfDay,
		EndHalfDay:         in.EndHalfDay,
		TotalDays:          total,
		Reason:             strings.TrimSpace(in.Reason),
		IsEmergency:        in.IsEmergency,
		WorkHandover:       in.WorkHandover,
		ContactDuringLeave: in.ContactDuringLeave,
		Document:           in.Document,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            1,
	}, emp, nil
}

// checkApprover accepts an assigned approver only from an actor filing on
// the employee's behalf, and only an active member of the employee's
// company.
func (s *RequestService) checkApprover(ctx context.Context, actor Actor, emp Employee, approver EmployeeID) error {
	if actor.EmployeeID == emp.ID {
		return &AuthorizationError{Actor: actor.EmployeeID, Action: "assign an approver to their own leave"}
	}
	a, err := s.directory.Employee(ctx, approver)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ValidationError{Field: "approver_id", Message: "approver " + string(approver) + " does not exist"}
		}
		return err
	}
	if !a.Active {
		return &ValidationError{Field: "approver_id", Message: "approver " + string(approver) + " is not active"}
	}
	if a.CompanyID != emp.CompanyID {
		return &ValidationError{Field: "approver_id", Message: "approver " + string(approver) + " belongs to another company"}
	}
	return nil
}

// Approve moves a pending request to approved and debits the ledger.
// An insufficient balance leaves both the request and the ledger as
// they were.
func (s *RequestService) Approve(ctx context.Context, id RequestID, actor Actor) (*Request, error) {
	log := s.logger.With(zap.Int64("request_id", int64(id)), zap.String("actor", string(actor.EmployeeID)))
	log.Debug("approving leave request")

	r, err := s.loadForDecision(ctx, id, actor, StatusApproved, "approve")
	if err != nil {
		return nil, s.fail(log, "approve", err)
	}
	lt, err := s.catalog.Get(r.LeaveType)
	if err != nil {
		return nil, s.fail(log, "approve", err)
	}

	now := s.clock().UTC()
	next := *r
	next.Status = StatusApproved
	next.ApproverID = &actor.EmployeeID
	next.ApprovedAt = &now
	next.UpdatedAt = now
	next.Version = r.Version + 1

	err = s.commit(ctx, &next, r, func(tx Store) error {
		if err := s.ledger.ensureAvailable(ctx, tx, lt, &next); err != nil {
			return err
		}
		return s.ledger.debitIn(ctx, tx, &next, actor.EmployeeID)
	})
	if err != nil {
		return nil, s.fail(log, "approve", err)
	}

	log.Info("leave request approved",
		zap.String("employee_id", string(next.EmployeeID)),
		zap.String("total_days", next.TotalDays.String()))
	s.observer.Transition("approve", "ok")
	s.observer.LedgerEntry(generic.TxConsumption, next.TotalDays)
	return &next, nil
}

// Reject moves a pending request to rejected. The reason is mandatory
// and checked before anything is read.
func (s *RequestService) Reject(ctx context.Context, id RequestID, actor Actor, reason string) (*Request, error) {
	log := s.logger.With(zap.Int64("request_id", int64(id)), zap.String("actor", string(actor.EmployeeID)))
	log.Debug("rejecting leave request")

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, s.fail(log, "reject", &ValidationError{Field: "rejection_reason", Message: "is required"})
	}

	r, err := s.loadForDecision(ctx, id, actor, StatusRejected, "reject")
	if err != nil {
		return nil, s.fail(log, "reject", err)
	}

	now := s.clock().UTC()
	next := *r
	next.Status = StatusRejected
	next.RejectionReason = reason
	next.RejectedAt = &now
	next.UpdatedAt = now
	next.Version = r.Version + 1

	if err := s.commit(ctx, &next, r, nil); err != nil {
		return nil, s.fail(log, "reject", err)
	}

	log.Info("leave request rejected", zap.String("employee_id", string(next.EmployeeID)))
	s.observer.Transition("reject", "ok")
	return &next, nil
}

// Cancel withdraws a pending request, or an approved one that hasn't
// started yet, crediting the ledger back in the latter case.
func (s *RequestService) Cancel(ctx context.Context, id RequestID, actor Actor) (*Request, error) {
	log := s.logger.With(zap.Int64("request_id", int64(id)), zap.String("actor", string(actor.EmployeeID)))
	log.Debug("cancelling leave request")

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, s.fail(log, "cancel", err)
	}

	switch r.Status {
	case StatusPending:
	case StatusApproved:
		today := generic.FromTime(s.clock().UTC())
		if !today.Before(r.StartDate) {
			return nil, s.fail(log, "cancel", &TransitionError{ID: id, From: r.Status, To: StatusCancelled, Reason: "leave has already started"})
		}
	default:
		return nil, s.fail(log, "cancel", &TransitionError{ID: id, From: r.Status, To: StatusCancelled})
	}

	if actor.EmployeeID != r.EmployeeID && actor.EmployeeID != r.CreatedBy {
		ok, err := s.gate.CanAct(ctx, actor, r)
		if err != nil {
			return nil, s.fail(log, "cancel", err)
		}
		if !ok {
			return nil, s.fail(log, "cancel", &AuthorizationError{Actor: actor.EmployeeID, Action: "cancel", Target: id})
		}
	}

	now := s.clock().UTC()
	next := *r
	next.Status = StatusCancelled
	next.CancelledAt = &now
	next.CancelledBy = &actor.EmployeeID
	next.UpdatedAt = now
	next.Version = r.Version + 1

	var credit func(Store) error
	if r.Status == StatusApproved {
		credit = func(tx Store) error { return s.ledger.creditIn(ctx, tx, &next, actor.EmployeeID) }
	}
	if err := s.commit(ctx, &next, r, credit); err != nil {
		return nil, s.fail(log, "cancel", err)
	}

	log.Info("leave request cancelled",
		zap.String("employee_id", string(next.EmployeeID)),
		zap.String("from", string(r.Status)))
	s.observer.Transition("cancel", "ok")
	if credit != nil {
		s.observer.LedgerEntry(generic.TxReversal, next.TotalDays)
	}
	return &next, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *RequestService) Get(ctx context.Context, id RequestID) (*Request, error) {
	return s.store.GetRequest(ctx, id)
}

func (s *RequestService) List(ctx context.Context, f RequestFilter) ([]Request, error) {
	return s.store.ListRequests(ctx, f)
}

// IsOnLeave reports whether employee has an approved request covering date.
func (s *RequestService) IsOnLeave(ctx context.Context, employee EmployeeID, date generic.TimePoint) (bool, error) {
	reqs, err := s.store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: []EmployeeID{employee},
		Statuses:    []Status{StatusApproved},
		From:        &date,
		To:          &date,
	})
	if err != nil {
		return false, err
	}
	return len(reqs) > 0, nil
}

// PutLeaveType adds or updates a catalog entry on behalf of an actor
// allowed to manage leave types.
func (s *RequestService) PutLeaveType(ctx context.Context, actor Actor, lt LeaveType) error {
	ok, err := s.gate.CanManageTypes(actor)
	if err != nil {
		return err
	}
	if !ok {
		return &AuthorizationError{Actor: actor.EmployeeID, Action: "manage leave types"}
	}
	if err := s.catalog.Put(ctx, lt, s.store); err != nil {
		return err
	}
	s.logger.Info("leave type saved", zap.String("leave_type", string(lt.Code)), zap.String("actor", string(actor.EmployeeID)))
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadForDecision loads a request that must be pending and that actor
// must be allowed to approve or reject.
func (s *RequestService) loadForDecision(ctx context.Context, id RequestID, actor Actor, to Status, action string) (*Request, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, to) || r.Status != StatusPending {
		return nil, &TransitionError{ID: id, From: r.Status, To: to}
	}
	ok, err := s.gate.CanAct(ctx, actor, r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AuthorizationError{Actor: actor.EmployeeID, Action: action, Target: id}
	}
	return r, nil
}

// commit writes next in one store transaction together with ledgerOp,
// provided the stored request is still exactly prev. Ledger writes for
// the request's balance are serialized around the transaction.
func (s *RequestService) commit(ctx context.Context, next, prev *Request, ledgerOp func(Store) error) error {
	unlock := s.ledger.Lock(next.BalanceKey())
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	lostRace := &TransitionError{ID: next.ID, From: prev.Status, To: next.Status, Reason: "already processed by another approver"}
	return s.store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetRequest(ctx, next.ID)
		if err != nil {
			return err
		}
		if current.Status != prev.Status || current.Version != prev.Version {
			return lostRace
		}
		if ledgerOp != nil {
			if err := ledgerOp(tx); err != nil {
				if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
					return lostRace
				}
				return err
			}
		}
		if err := tx.UpdateRequest(ctx, next, prev.Version); err != nil {
			if errors.Is(err, generic.ErrConcurrentModification) {
				return lostRace
			}
			return err
		}
		return nil
	})
}

func (s *RequestService) fail(log *zap.Logger, action string, err error) error {
	code := ErrorCode(err)
	if IsBusinessError(err) {
		log.Warn(action+" rejected", zap.String("code", code), zap.Error(err))
	} else {
		log.Error(action+" failed", zap.String("code", code), zap.Error(err))
	}
	s.observer.Transition(action, code)
	return err
}
