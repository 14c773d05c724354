package authflow

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/door-sentinel/internal/fingerprint"
	"github.com/nerrad567/door-sentinel/internal/identity"
)

// countingInvalidator records Invalidate calls.
type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

func newEnrollerFixture(t *testing.T) (*Enroller, *identity.MemoryStore, *fingerprint.SimSensor, *countingInvalidator) {
	t.Helper()
	store := identity.NewMemoryStore()
	sensor := fingerprint.NewSimSensor()
	index := &countingInvalidator{}
	return NewEnroller(store, store.Faces(), store, sensor, index), store, sensor, index
}

func createUser(t *testing.T, store *identity.MemoryStore, name string) *identity.User {
	t.Helper()
	user := &identity.User{Name: name, IsActive: true}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user
}

func TestEnrollerEnrollFace(t *testing.T) {
	en, store, _, index := newEnrollerFixture(t)
	user := createUser(t, store, "Ada")

	if err := en.EnrollFace(context.Background(), user.ID, []float64{0.1, 0.2}); err != nil {
		t.Fatalf("EnrollFace() error = %v", err)
	}

	got, err := store.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.FaceEnrolled {
		t.Fatal("FaceEnrolled not set")
	}
	if index.calls != 1 {
		t.Fatalf("index invalidated %d times, want 1", index.calls)
	}

	encodings, err := store.Faces().ListEnrolled(context.Background())
	if err != nil {
		t.Fatalf("ListEnrolled() error = %v", err)
	}
	if len(encodings) != 1 || encodings[0].UserID != user.ID {
		t.Fatalf("ListEnrolled() = %+v, want one encoding for user %d", encodings, user.ID)
	}
}

func TestEnrollerEnrollFaceUnknownUser(t *testing.T) {
	en, _, _, _ := newEnrollerFixture(t)
	err := en.EnrollFace(context.Background(), 999, []float64{0.1})
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("EnrollFace() error = %v, want %v", err, identity.ErrNotFound)
	}
}

func TestEnrollerEnrollFaceEmptyEmbedding(t *testing.T) {
	en, store, _, _ := newEnrollerFixture(t)
	user := createUser(t, store, "Ada")
	if err := en.EnrollFace(context.Background(), user.ID, nil); err == nil {
		t.Fatal("EnrollFace() with empty embedding must fail")
	}
}

func TestEnrollerEnrollFingerprint(t *testing.T) {
	en, store, sensor, _ := newEnrollerFixture(t)
	user := createUser(t, store, "Ada")

	slot, err := en.EnrollFingerprint(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("EnrollFingerprint() error = %v", err)
	}
	if slot != identity.MinSlot {
		t.Fatalf("slot = %d, want lowest free slot %d", slot, identity.MinSlot)
	}

	bound, err := store.UserForSlot(context.Background(), slot)
	if err != nil {
		t.Fatalf("UserForSlot() error = %v", err)
	}
	if bound != user.ID {
		t.Fatalf("slot bound to user %d, want %d", bound, user.ID)
	}

	got, err := store.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.FingerprintEnrolled {
		t.Fatal("FingerprintEnrolled not set")
	}

	enrolled := sensor.EnrolledSlots()
	if len(enrolled) != 1 || enrolled[0] != slot {
		t.Fatalf("sensor slots = %v, want [%d]", enrolled, slot)
	}
}

func TestEnrollerEnrollFingerprintCapacityExhausted(t *testing.T) {
	en, store, _, _ := newEnrollerFixture(t)
	user := createUser(t, store, "Ada")

	for slot := identity.MinSlot; slot <= identity.MaxSlot; slot++ {
		if err := store.Assign(context.Background(), slot, user.ID); err != nil {
			t.Fatalf("Assign(%d) error = %v", slot, err)
		}
	}

	_, err := en.EnrollFingerprint(context.Background(), user.ID)
	if !errors.Is(err, identity.ErrCapacityExhausted) {
		t.Fatalf("EnrollFingerprint() error = %v, want %v", err, identity.ErrCapacityExhausted)
	}
}

func TestEnrollerRemoveUser(t *testing.T) {
	en, store, sensor, index := newEnrollerFixture(t)
	user := createUser(t, store, "Ada")

	if err := en.EnrollFace(context.Background(), user.ID, []float64{0.5}); err != nil {
		t.Fatalf("EnrollFace() error = %v", err)
	}
	slot, err := en.EnrollFingerprint(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("EnrollFingerprint() error = %v", err)
	}

	index.calls = 0
	if err := en.RemoveUser(context.Background(), user.ID); err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}

	if _, err := store.GetByID(context.Background(), user.ID); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("GetByID() after removal error = %v, want %v", err, identity.ErrNotFound)
	}
	if _, err := store.UserForSlot(context.Background(), slot); !errors.Is(err, identity.ErrNotFound) {
		t.Fatal("slot binding must be released")
	}
	if got := sensor.EnrolledSlots(); len(got) != 0 {
		t.Fatalf("sensor slots = %v, want empty", got)
	}
	if index.calls != 1 {
		t.Fatalf("index invalidated %d times, want 1", index.calls)
	}
}

func TestEnrollerSetActive(t *testing.T) {
	en, store, _, index := newEnrollerFixture(t)
	user := createUser(t, store, "Ada")

	index.calls = 0
	if err := en.SetActive(context.Background(), user.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	got, err := store.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.IsActive {
		t.Fatal("user should be inactive")
	}
	if index.calls != 1 {
		t.Fatalf("index invalidated %d times, want 1", index.calls)
	}
}
