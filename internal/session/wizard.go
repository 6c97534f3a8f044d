package session

import (
	"sync"
	"time"
)

// WizardKind names a multi-step admin dialog
type WizardKind string

const (
	// WizardCreateTask walks through title, reward, review flag.
	WizardCreateTask WizardKind = "create_task"
	// WizardCreateCode walks through amount, max uses, ttl.
	WizardCreateCode WizardKind = "create_code"
)

// CreateTaskState holds partial input for the create-task wizard
type CreateTaskState struct {
	Step        int
	Title       string
	Reward      int64
	NeedsReview bool
}

// CreateCodeState holds partial input for the create-code wizard
type CreateCodeState struct {
	Step    int
	Amount  int64
	MaxUses int
	TTL     time.Duration
}

// Wizard is one admin's in-progress dialog. Exactly one of the typed state
// fields is non-nil, matching Kind.
type Wizard struct {
	Kind       WizardKind
	StartedAt  time.Time
	CreateTask *CreateTaskState
	CreateCode *CreateCodeState
}

// Store keeps at most one wizard per admin, expiring abandoned ones.
type Store struct {
	mu      sync.Mutex
	wizards map[int64]*Wizard
	ttl     time.Duration
}

// NewStore creates a wizard store with the given abandonment timeout
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		wizards: make(map[int64]*Wizard),
		ttl:     ttl,
	}
}

// Begin starts a wizard for the admin, replacing any in-progress one.
func (s *Store) Begin(adminID int64, kind WizardKind) *Wizard {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &Wizard{Kind: kind, StartedAt: time.Now()}
	switch kind {
	case WizardCreateTask:
		w.CreateTask = &CreateTaskState{}
	case WizardCreateCode:
		w.CreateCode = &CreateCodeState{}
	}
	s.wizards[adminID] = w
	return w
}

// Get returns the admin's in-progress wizard, dropping it if it has expired.
// The store's lock covers map access only: the returned wizard is mutated by
// the caller as the dialog advances, so inputs for one admin must arrive one
// at a time. The bot front end delivers an admin's messages sequentially,
// which provides that ordering.
func (s *Store) Get(adminID int64) (*Wizard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wizards[adminID]
	if !ok {
		return nil, false
	}
	if time.Since(w.StartedAt) > s.ttl {
		delete(s.wizards, adminID)
		return nil, false
	}
	return w, true
}

// End clears the admin's wizard on completion or cancellation.
func (s *Store) End(adminID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wizards, adminID)
}
