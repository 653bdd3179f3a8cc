package approval

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/tools"
)

// ErrNotFound is returned when an approval ID resolves to nothing.
var ErrNotFound = errors.New("approval not found")

// Store persists approval requests. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(id uuid.UUID) (*PendingApproval, bool)
	Put(a *PendingApproval)
	ListByUser(userID string) []*PendingApproval
	All() []*PendingApproval
	Delete(id uuid.UUID)
}

// MemoryStore keeps approvals in a map. Used in tests and as the
// fallback when no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*PendingApproval
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*PendingApproval)}
}

func (s *MemoryStore) Get(id uuid.UUID) (*PendingApproval, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, found := s.items[id]
	return a, found
}

func (s *MemoryStore) Put(a *PendingApproval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[a.ID] = a
}

func (s *MemoryStore) ListByUser(userID string) []*PendingApproval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*PendingApproval
	for _, a := range s.items {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemoryStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// CreateRequest carries everything needed to park an action behind an
// approval prompt.
type CreateRequest struct {
	UserID         string
	Capability     string
	Action         string
	Parameters     map[string]any
	Description    string
	EstimatedCost  float64
	Options        []tools.Option
	PlanID         uuid.UUID
	StepID         uuid.UUID
	Channel        string
	ExpiresInHours int
}

// Manager owns the approval lifecycle. Resolution is idempotent: the
// first decision wins and later ones are no-ops. Create and resolve
// for the same user are serialized by a per-user lock.
type Manager struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	ttl   time.Duration

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewManager(store Store, ttlHours int, log *zap.Logger) *Manager {
	ttl := DefaultTTL
	if ttlHours > 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}
	return &Manager{
		store: store,
		log:   log,
		now:   time.Now,
		ttl:   ttl,
		users: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, found := m.users[userID]
	if !found {
		l = &sync.Mutex{}
		m.users[userID] = l
	}
	return l
}

// Create registers a new pending approval and returns it.
func (m *Manager) Create(req CreateRequest) *PendingApproval {
	l := m.userLock(req.UserID)
	l.Lock()
	defer l.Unlock()

	ttl := m.ttl
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}
	now := m.now()
	a := &PendingApproval{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Capability:    req.Capability,
		Action:        req.Action,
		Parameters:    req.Parameters,
		Description:   req.Description,
		EstimatedCost: req.EstimatedCost,
		Options:       req.Options,
		Status:        StatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		PlanID:        req.PlanID,
		StepID:        req.StepID,
		Channel:       req.Channel,
	}
	m.store.Put(a)
	m.log.Info("approval requested",
		zap.String("user", req.UserID),
		zap.String("action", req.Capability+"."+req.Action),
		zap.String("approval_id", a.ID.String()))
	return a
}

// Get fetches an approval, flipping it to expired when past its TTL.
func (m *Manager) Get(id uuid.UUID) (*PendingApproval, bool) {
	a, found := m.store.Get(id)
	if !found {
		return nil, false
	}
	if a.ExpiredAt(m.now()) {
		a.Status = StatusExpired
		m.store.Put(a)
	}
	return a, true
}

// PendingForUser returns the user's still-pending approvals, oldest
// first.
func (m *Manager) PendingForUser(userID string) []*PendingApproval {
	now := m.now()
	var out []*PendingApproval
	for _, a := range m.store.ListByUser(userID) {
		if a.ExpiredAt(now) {
			a.Status = StatusExpired
			m.store.Put(a)
			continue
		}
		if a.Status == StatusPending {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// MostRecent returns the user's latest approval in any state, or nil.
// Used to decide whether an incoming message is an approval reply.
func (m *Manager) MostRecent(userID string) *PendingApproval {
	var latest *PendingApproval
	for _, a := range m.store.ListByUser(userID) {
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest != nil && latest.ExpiredAt(m.now()) {
		latest.Status = StatusExpired
		m.store.Put(latest)
	}
	return latest
}

// Approve marks the approval granted. Resolving an already-resolved or
// expired item returns an error and leaves it untouched.
func (m *Manager) Approve(id uuid.UUID, selected *int) (*PendingApproval, error) {
	a, found := m.Get(id)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	l := m.userLock(a.UserID)
	l.Lock()
	defer l.Unlock()

	if a.Status != StatusPending {
		return a, fmt.Errorf("approval already %s", a.Status)
	}
	if selected != nil && (*selected < 0 || *selected >= len(a.Options)) {
		return a, fmt.Errorf("option %d out of range", *selected+1)
	}
	now := m.now()
	a.Status = StatusApproved
	a.SelectedOption = selected
	a.ResolvedAt = &now
	m.store.Put(a)
	m.log.Info("approval granted", zap.String("approval_id", a.ID.String()))
	return a, nil
}

// Reject marks the approval declined.
func (m *Manager) Reject(id uuid.UUID, reason string) (*PendingApproval, error) {
	a, found := m.Get(id)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	l := m.userLock(a.UserID)
	l.Lock()
	defer l.Unlock()

	if a.Status != StatusPending {
		return a, fmt.Errorf("approval already %s", a.Status)
	}
	now := m.now()
	a.Status = StatusRejected
	a.RejectionReason = reason
	a.ResolvedAt = &now
	m.store.Put(a)
	m.log.Info("approval rejected", zap.String("approval_id", a.ID.String()))
	return a, nil
}

// ResolveFromMessage applies a free-text reply to the user's most
// recent approval. The returned string is a user-facing status message
// for replies that do not resolve anything (expired item, bad option,
// unrecognized text); it is empty when the approval was resolved.
func (m *Manager) ResolveFromMessage(userID, text string) (*PendingApproval, string) {
	d := ParseDecision(text)
	if d.Kind == DecisionNone {
		return nil, ""
	}

	a := m.MostRecent(userID)
	if a == nil {
		return nil, ""
	}
	if a.Status == StatusExpired {
		return nil, "That approval request has expired. Please start over if you still want to proceed."
	}
	if a.Status != StatusPending {
		return nil, ""
	}

	switch d.Kind {
	case DecisionApprove:
		resolved, err := m.Approve(a.ID, nil)
		if err != nil {
			return nil, ""
		}
		return resolved, ""

	case DecisionReject:
		resolved, err := m.Reject(a.ID, "user declined")
		if err != nil {
			return nil, ""
		}
		return resolved, ""

	case DecisionOption:
		idx := d.Option - 1
		if idx >= len(a.Options) {
			return nil, fmt.Sprintf("Invalid option. Please choose between 1 and %d, or reply 'cancel'.", len(a.Options))
		}
		resolved, err := m.Approve(a.ID, &idx)
		if err != nil {
			return nil, ""
		}
		return resolved, ""
	}
	return nil, ""
}

// CleanupExpired flips expired items and evicts ones resolved more
// than a week ago. Returns how many were expired on this pass.
func (m *Manager) CleanupExpired() int {
	now := m.now()
	expired := 0
	for _, a := range m.store.All() {
		if a.ExpiredAt(now) {
			a.Status = StatusExpired
			m.store.Put(a)
			expired++
			continue
		}
		// Evict items nobody can act on anymore: resolved a while ago, or
		// expired long enough that "start over" has been said.
		if a.Status == StatusExpired && now.Sub(a.ExpiresAt) > 7*24*time.Hour {
			m.store.Delete(a.ID)
			continue
		}
		if a.Resolved() && a.ResolvedAt != nil && now.Sub(*a.ResolvedAt) > 7*24*time.Hour {
			m.store.Delete(a.ID)
		}
	}
	if expired > 0 {
		m.log.Info("expired stale approvals", zap.Int("count", expired))
	}
	return expired
}

// All exposes the memory store's contents for cleanup sweeps.
func (s *MemoryStore) All() []*PendingApproval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*PendingApproval, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a)
	}
	return out
}
