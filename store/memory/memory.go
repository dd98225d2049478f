// Package memory provides an in-memory leave store for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of leave.TxStore and leave.Directory
// =============================================================================

type Store struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	transactions map[generic.BalanceKey][]generic.Transaction
	idempotency  map[string]bool
	requests     map[leave.RequestID]leave.Request
	nextID       leave.RequestID
	employees    map[leave.EmployeeID]leave.Employee
}

func New() *Store {
	return &Store{st: &state{
		transactions: make(map[generic.BalanceKey][]generic.Transaction),
		idempotency:  make(map[string]bool),
		requests:     make(map[leave.RequestID]leave.Request),
		employees:    make(map[leave.EmployeeID]leave.Employee),
	}}
}

// PutEmployee adds or replaces a directory entry.
func (m *Store) PutEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.employees[e.ID] = e
	return nil
}

// WithTx runs fn against the live state and restores a snapshot taken
// beforehand if fn fails. The store is locked for the duration.
func (m *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(view{m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Locked wrappers; view does the work.

func (m *Store) Append(ctx context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.Append(ctx, tx)
}

func (m *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.AppendBatch(ctx, txs)
}

func (m *Store) Load(ctx context.Context, entityID generic.EntityID, policyID generic.PolicyID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.st}.Load(ctx, entityID, policyID)
}

func (m *Store) LoadRange(ctx context.Context, entityID generic.EntityID, policyID generic.PolicyID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.st}.LoadRange(ctx, entityID, policyID, from, to)
}

func (m *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.st}.Exists(ctx, idempotencyKey)
}

func (m *Store) InsertRequest(ctx context.Context, r *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.InsertRequest(ctx, r)
}

func (m *Store) UpdateRequest(ctx context.Context, r *leave.Request, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.UpdateRequest(ctx, r, expectedVersion)
}

func (m *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.st}.GetRequest(ctx, id)
}

func (m *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.st}.ListRequests(ctx, f)
}

func (m *Store) FindOverlapping(ctx context.Context, employee leave.EmployeeID, start, end generic.TimePoint) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.st}.FindOverlapping(ctx, employee, start, end)
}

func (m *Store) HasRequestsForType(ctx context.Context, code leave.TypeCode) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.st}.HasRequestsForType(ctx, code)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Store) Employee(_ context.Context, id leave.EmployeeID) (leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.st.employees[id]
	if !ok {
		return leave.Employee{}, leave.EmployeeNotFound(id)
	}
	return e, nil
}

func (m *Store) Reports(_ context.Context, manager leave.EmployeeID) ([]leave.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.EmployeeID
	for _, e := range m.st.employees {
		if e.ManagerID != nil && *e.ManagerID == manager {
			out = append(out, e.ID)
		}
	}
	sortIDs(out)
	return out, nil
}

func (m *Store) CompanyMembers(_ context.Context, company leave.CompanyID) ([]leave.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.EmployeeID
	for _, e := range m.st.employees {
		if e.CompanyID == company {
			out = append(out, e.ID)
		}
	}
	sortIDs(out)
	return out, nil
}

func sortIDs(ids []leave.EmployeeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// =============================================================================
// VIEW - Unlocked operations over a state
// =============================================================================

type view struct {
	st *state
}

func (v view) Append(_ context.Context, tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && v.st.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	v.appendTx(tx)
	return nil
}

func (v view) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if v.st.idempotency[tx.IdempotencyKey] || seen[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}
	for _, tx := range txs {
		v.appendTx(tx)
	}
	return nil
}

// appendTx keeps each key's slice ordered by EffectiveAt.
func (v view) appendTx(tx generic.Transaction) {
	k := tx.Key()
	txs := v.st.transactions[k]

	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})
	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	v.st.transactions[k] = txs

	if tx.IdempotencyKey != "" {
		v.st.idempotency[tx.IdempotencyKey] = true
	}
}

func (v view) Load(_ context.Context, entityID generic.EntityID, policyID generic.PolicyID) ([]generic.Transaction, error) {
	txs := v.st.transactions[generic.BalanceKey{EntityID: entityID, PolicyID: policyID}]
	result := make([]generic.Transaction, len(txs))
	copy(result, txs)
	return result, nil
}

func (v view) LoadRange(_ context.Context, entityID generic.EntityID, policyID generic.PolicyID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	var result []generic.Transaction
	for _, tx := range v.st.transactions[generic.BalanceKey{EntityID: entityID, PolicyID: policyID}] {
		if from.BeforeOrEqual(tx.EffectiveAt) && tx.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (v view) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return v.st.idempotency[idempotencyKey], nil
}

func (v view) InsertRequest(_ context.Context, r *leave.Request) error {
	v.st.nextID++
	r.ID = v.st.nextID
	v.st.requests[r.ID] = *r
	return nil
}

func (v view) UpdateRequest(_ context.Context, r *leave.Request, expectedVersion int) error {
	current, ok := v.st.requests[r.ID]
	if !ok {
		return leave.RequestNotFound(r.ID)
	}
	if current.Version != expectedVersion {
		return generic.ErrConcurrentModification
	}
	v.st.requests[r.ID] = *r
	return nil
}

func (v view) GetRequest(_ context.Context, id leave.RequestID) (*leave.Request, error) {
	r, ok := v.st.requests[id]
	if !ok {
		return nil, leave.RequestNotFound(id)
	}
	return &r, nil
}

func (v view) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var out []leave.Request
	for _, r := range v.st.requests {
		if f.Match(&r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v view) FindOverlapping(_ context.Context, employee leave.EmployeeID, start, end generic.TimePoint) ([]leave.Request, error) {
	var out []leave.Request
	for _, r := range v.st.requests {
		if r.EmployeeID == employee && r.Blocking() && r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v view) HasRequestsForType(_ context.Context, code leave.TypeCode) (bool, error) {
	for _, r := range v.st.requests {
		if r.LeaveType == code {
			return true, nil
		}
	}
	return false, nil
}

// clone copies everything a transaction can write.
func (s *state) clone() *state {
	c := &state{
		transactions: make(map[generic.BalanceKey][]generic.Transaction, len(s.transactions)),
		idempotency:  make(map[string]bool, len(s.idempotency)),
		requests:     make(map[leave.RequestID]leave.Request, len(s.requests)),
		nextID:       s.nextID,
		employees:    s.employees,
	}
	for k, v := range s.transactions {
		c.transactions[k] = append([]generic.Transaction(nil), v...)
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}
