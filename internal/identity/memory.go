package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of all identity store
// interfaces. It backs tests and the simulator profile, where a real
// database adds nothing.
type MemoryStore struct {
	mu sync.Mutex

	nextUserID int64
	users      map[int64]*User
	faces      map[int64][]float64
	slots      map[uint16]int64
	access     []AccessEvent
	system     []SystemLogEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextUserID: 1,
		users:      make(map[int64]*User),
		faces:      make(map[int64][]float64),
		slots:      make(map[uint16]int64),
	}
}

// Create inserts a new user and assigns it an ID.
func (m *MemoryStore) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.EmployeeID != "" {
		for _, u := range m.users {
			if u.EmployeeID == user.EmployeeID {
				return ErrEmployeeIDExists
			}
		}
	}

	user.ID = m.nextUserID
	m.nextUserID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// GetByID retrieves a user by ID.
func (m *MemoryStore) GetByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// List returns all users, optionally restricted to active accounts.
func (m *MemoryStore) List(_ context.Context, activeOnly bool) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := []User{}
	for id := int64(1); id < m.nextUserID; id++ {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		if activeOnly && !u.IsActive {
			continue
		}
		users = append(users, *u)
	}
	return users, nil
}

// SetActive enables or disables a user account.
func (m *MemoryStore) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	return nil
}

// SetEnrollment updates enrollment flags. Nil leaves a flag unchanged.
func (m *MemoryStore) SetEnrollment(_ context.Context, id int64, face, fingerprint *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if face != nil {
		u.FaceEnrolled = *face
	}
	if fingerprint != nil {
		u.FingerprintEnrolled = *fingerprint
	}
	return nil
}

// Delete removes a user along with its face encoding and slots.
func (m *MemoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.faces, id)
	for slot, uid := range m.slots {
		if uid == id {
			delete(m.slots, slot)
		}
	}
	return nil
}

// Count returns the number of users.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// Faces returns the FaceStore view of this store. A separate view is
// needed because FaceStore.Delete removes an embedding while
// MemoryStore.Delete removes the whole user.
func (m *MemoryStore) Faces() FaceStore {
	return memoryFaces{m}
}

type memoryFaces struct {
	m *MemoryStore
}

// Upsert stores a face embedding for a user.
func (f memoryFaces) Upsert(_ context.Context, userID int64, embedding []float64) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()

	cp := make([]float64, len(embedding))
	copy(cp, embedding)
	f.m.faces[userID] = cp
	return nil
}

// ListEnrolled returns embeddings for active users.
func (f memoryFaces) ListEnrolled(_ context.Context) ([]FaceEncoding, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()

	encodings := []FaceEncoding{}
	for id := int64(1); id < f.m.nextUserID; id++ {
		emb, ok := f.m.faces[id]
		if !ok {
			continue
		}
		if u, ok := f.m.users[id]; !ok || !u.IsActive {
			continue
		}
		cp := make([]float64, len(emb))
		copy(cp, emb)
		encodings = append(encodings, FaceEncoding{UserID: id, Embedding: cp})
	}
	return encodings, nil
}

// Delete removes a user's face embedding.
func (f memoryFaces) Delete(_ context.Context, userID int64) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()

	if _, ok := f.m.faces[userID]; !ok {
		return ErrNotFound
	}
	delete(f.m.faces, userID)
	return nil
}

// Assign records a slot assignment.
func (m *MemoryStore) Assign(_ context.Context, slot uint16, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slot < MinSlot || slot > MaxSlot {
		return ErrInvalidSlot
	}
	if _, ok := m.slots[slot]; ok {
		return ErrSlotTaken
	}
	m.slots[slot] = userID
	return nil
}

// UserForSlot resolves a slot to its user.
func (m *MemoryStore) UserForSlot(_ context.Context, slot uint16) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.slots[slot]
	if !ok {
		return 0, ErrNotFound
	}
	return userID, nil
}

// SlotsForUser returns all slots assigned to a user.
func (m *MemoryStore) SlotsForUser(_ context.Context, userID int64) ([]uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slots := []uint16{}
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if m.slots[slot] == userID {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

// Release frees a slot.
func (m *MemoryStore) Release(_ context.Context, slot uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slots[slot]; !ok {
		return ErrNotFound
	}
	delete(m.slots, slot)
	return nil
}

// FreeSlot returns the lowest unassigned slot.
func (m *MemoryStore) FreeSlot(_ context.Context) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if _, ok := m.slots[slot]; !ok {
			return slot, nil
		}
	}
	return 0, ErrCapacityExhausted
}

// RecordAccess appends an access event.
func (m *MemoryStore) RecordAccess(_ context.Context, event *AccessEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = "acc-" + uuid.NewString()[:8]
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.EventType == "" {
		event.EventType = EventTypeEntry
	}
	m.access = append(m.access, *event)
	return nil
}

// RecentAccess returns the newest access events, newest first.
func (m *MemoryStore) RecentAccess(_ context.Context, limit int) ([]AccessEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events := []AccessEvent{}
	for i := len(m.access) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, m.access[i])
	}
	return events, nil
}

// Stats aggregates access events since the given time.
func (m *MemoryStore) Stats(_ context.Context, since time.Time) (*AccessStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &AccessStats{}
	for _, ev := range m.access {
		if ev.OccurredAt.Before(since) {
			continue
		}
		stats.Total++
		switch ev.Result {
		case ResultSuccess:
			stats.Granted++
		case ResultDenied:
			stats.Denied++
		case ResultFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// RecordSystem appends a system log entry.
func (m *MemoryStore) RecordSystem(_ context.Context, entry *SystemLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}
	entry.ID = int64(len(m.system) + 1)
	m.system = append(m.system, *entry)
	return nil
}
