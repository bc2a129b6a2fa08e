package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driptext/driptext/pkg/log"
)

// Registry owns all assignments. Operations on different assignments
// run in parallel; operations on the same assignment serialize on a
// per-assignment mutex, so a dispatch cycle advancing the cursor and an
// inbound reply recording a submission cannot lose updates.
type Registry struct {
	store Store

	mu          sync.RWMutex
	users       map[string]*User
	byContact   map[string]string // email or phone -> user ID
	assignments map[string]*entry
	byPair      map[string]string // userID|textID -> assignment ID
}

type entry struct {
	mu sync.Mutex
	a  *Assignment
}

func NewRegistry(store Store) *Registry {
	r := &Registry{
		store:       store,
		users:       make(map[string]*User),
		byContact:   make(map[string]string),
		assignments: make(map[string]*entry),
		byPair:      make(map[string]string),
	}
	r.hydrateFromStore(context.Background())
	return r
}

// CreateUser registers a new translator. Contacts are unique: a second
// user with the same email or phone is rejected.
func (r *Registry) CreateUser(name, email, phone string, preferred ChannelType) (*User, error) {
	u := &User{
		ID:        "usr-" + uuid.NewString(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		Preferred: preferred,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	for _, contact := range []string{email, phone} {
		if contact == "" {
			continue
		}
		if _, exists := r.byContact[contact]; exists {
			r.mu.Unlock()
			return nil, &ContactInUseError{Contact: contact}
		}
	}
	r.users[u.ID] = u
	if email != "" {
		r.byContact[email] = u.ID
	}
	if phone != "" {
		r.byContact[phone] = u.ID
	}
	r.mu.Unlock()

	snapshot := cloneUser(u)
	r.persistUser(snapshot)
	return snapshot, nil
}

// GetUser returns a snapshot of a user.
func (r *Registry) GetUser(id string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return cloneUser(u), ok
}

// UserByContact resolves an email address or phone number to a user.
func (r *Registry) UserByContact(contact string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byContact[contact]
	if !ok {
		return nil, false
	}
	u, ok := r.users[id]
	return cloneUser(u), ok
}

// ListUsers returns snapshots of all users.
func (r *Registry) ListUsers() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		ret = append(ret, cloneUser(u))
	}
	return ret
}

func pairKey(userID, textID string) string {
	return userID + "|" + textID
}

// Create registers a new assignment with the cursor at portion 0. A
// (user, text) pair can only be assigned once.
func (r *Registry) Create(userID, textID string, portionCount int, policy DuplicatePolicy) (*Assignment, error) {
	if portionCount < 1 {
		return nil, fmt.Errorf("portion count must be >= 1, got %d", portionCount)
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown duplicate policy %q", policy)
	}

	now := time.Now().UTC()
	a := &Assignment{
		ID:           "asg-" + uuid.NewString(),
		UserID:       userID,
		TextID:       textID,
		PortionCount: portionCount,
		Policy:       policy,
		Submissions:  make(map[int]Submission),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	key := pairKey(userID, textID)
	if _, exists := r.byPair[key]; exists {
		r.mu.Unlock()
		return nil, &AlreadyAssignedError{UserID: userID, TextID: textID}
	}
	r.assignments[a.ID] = &entry{a: a}
	r.byPair[key] = a.ID
	r.mu.Unlock()

	snapshot := cloneAssignment(a)
	r.persist(snapshot)
	return snapshot, nil
}

// Get returns a snapshot of an assignment.
func (r *Registry) Get(id string) (*Assignment, bool) {
	e := r.entry(id)
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAssignment(e.a), true
}

// FindByPair returns the assignment of a (user, text) pair.
func (r *Registry) FindByPair(userID, textID string) (*Assignment, bool) {
	r.mu.RLock()
	id, ok := r.byPair[pairKey(userID, textID)]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// List returns snapshots of all assignments.
func (r *Registry) List() []*Assignment {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.assignments))
	for _, e := range r.assignments {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	ret := make([]*Assignment, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		ret = append(ret, cloneAssignment(e.a))
		e.mu.Unlock()
	}
	return ret
}

// ListByUser returns snapshots of a user's assignments.
func (r *Registry) ListByUser(userID string) []*Assignment {
	ret := make([]*Assignment, 0)
	for _, a := range r.List() {
		if a.UserID == userID {
			ret = append(ret, a)
		}
	}
	return ret
}

// NextIndex returns the cursor index, or ok=false when the text is
// fully sent.
func (r *Registry) NextIndex(id string) (int, bool, error) {
	e := r.entry(id)
	if e == nil {
		return 0, false, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.a.FullySent() {
		return 0, false, nil
	}
	return e.a.Cursor, true, nil
}

// Advance moves the cursor past the current portion. Callers invoke it
// only after the dispatch gateway acknowledged the send.
func (r *Registry) Advance(id string) error {
	e := r.entry(id)
	if e == nil {
		return ErrNotFound
	}

	e.mu.Lock()
	if e.a.FullySent() {
		e.mu.Unlock()
		return fmt.Errorf("assignment %s is already fully sent", id)
	}
	e.a.Cursor++
	e.a.Version++
	e.a.UpdatedAt = time.Now().UTC()
	snapshot := cloneAssignment(e.a)
	e.mu.Unlock()

	r.persist(snapshot)
	return nil
}

// RecordSubmission stores a translated portion. The index must be in
// range and already dispatched; an existing submission is replaced or
// rejected per the assignment's duplicate policy. The cursor never
// moves here.
func (r *Registry) RecordSubmission(id string, index int, content string, receivedAt time.Time) (*Assignment, error) {
	e := r.entry(id)
	if e == nil {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	a := e.a
	if index < 0 || index >= a.PortionCount {
		e.mu.Unlock()
		return nil, &UnknownPortionError{Index: index, PortionCount: a.PortionCount}
	}
	if index >= a.Cursor {
		e.mu.Unlock()
		return nil, &NotYetSentError{Index: index, Cursor: a.Cursor}
	}
	if existing, ok := a.Submissions[index]; ok {
		if a.Policy == RejectDuplicate {
			e.mu.Unlock()
			return nil, &DuplicateSubmissionError{Index: index}
		}
		// overwrite-latest: an older resend never clobbers newer content
		if receivedAt.Before(existing.ReceivedAt) {
			snapshot := cloneAssignment(a)
			e.mu.Unlock()
			return snapshot, nil
		}
	}

	sub := Submission{
		AssignmentID: a.ID,
		PortionIndex: index,
		Content:      content,
		ReceivedAt:   receivedAt,
	}
	a.Submissions[index] = sub
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	snapshot := cloneAssignment(a)
	e.mu.Unlock()

	r.persist(snapshot)
	r.persistSubmission(sub)
	return snapshot, nil
}

func (r *Registry) entry(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.assignments[id]
}

func (r *Registry) hydrateFromStore(ctx context.Context) {
	if r.store == nil {
		return
	}
	users, err := r.store.LoadUsers(ctx)
	if err != nil {
		log.Error("Failed to load users from store: %v", err)
		return
	}
	loaded, err := r.store.LoadAssignments(ctx)
	if err != nil {
		log.Error("Failed to load assignments from store: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, raw := range users {
		if raw == nil || raw.ID == "" {
			continue
		}
		u := cloneUser(raw)
		r.users[u.ID] = u
		if u.Email != "" {
			r.byContact[u.Email] = u.ID
		}
		if u.Phone != "" {
			r.byContact[u.Phone] = u.ID
		}
	}
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		a := cloneAssignment(raw)
		if a.Submissions == nil {
			a.Submissions = make(map[int]Submission)
		}
		if !a.Policy.Valid() {
			a.Policy = OverwriteLatest
		}
		r.assignments[a.ID] = &entry{a: a}
		r.byPair[pairKey(a.UserID, a.TextID)] = a.ID
	}
}

func (r *Registry) persist(a *Assignment) {
	if r.store == nil || a == nil {
		return
	}
	if err := r.store.UpsertAssignment(context.Background(), a); err != nil {
		log.Error("Failed to persist assignment %s: %v", a.ID, err)
	}
}

func (r *Registry) persistUser(u *User) {
	if r.store == nil || u == nil {
		return
	}
	if err := r.store.UpsertUser(context.Background(), u); err != nil {
		log.Error("Failed to persist user %s: %v", u.ID, err)
	}
}

func (r *Registry) persistSubmission(sub Submission) {
	if r.store == nil {
		return
	}
	if err := r.store.UpsertSubmission(context.Background(), sub); err != nil {
		log.Error("Failed to persist submission %s/%d: %v", sub.AssignmentID, sub.PortionIndex, err)
	}
}
