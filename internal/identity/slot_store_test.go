package identity

import (
	"context"
	"errors"
	"testing"
)

func TestSlotStore_AssignAndResolve(t *testing.T) {
	db := testDB(t)
	users := NewUserStore(db)
	slots := NewSlotStore(db)
	ctx := context.Background()

	user := createTestUser(t, users, "Print Owner", true)

	if err := slots.Assign(ctx, 5, user.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	got, err := slots.UserForSlot(ctx, 5)
	if err != nil {
		t.Fatalf("UserForSlot() error = %v", err)
	}
	if got != user.ID {
		t.Errorf("UserForSlot(5) = %d, want %d", got, user.ID)
	}
}

func TestSlotStore_AssignOutOfRange(t *testing.T) {
	db := testDB(t)
	slots := NewSlotStore(db)
	ctx := context.Background()

	if err := slots.Assign(ctx, 0, 1); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("Assign(0) error = %v, want ErrInvalidSlot", err)
	}
	if err := slots.Assign(ctx, 163, 1); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("Assign(163) error = %v, want ErrInvalidSlot", err)
	}
}

func TestSlotStore_AssignTaken(t *testing.T) {
	db := testDB(t)
	users := NewUserStore(db)
	slots := NewSlotStore(db)
	ctx := context.Background()

	a := createTestUser(t, users, "A", true)
	b := createTestUser(t, users, "B", true)

	if err := slots.Assign(ctx, 10, a.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	if err := slots.Assign(ctx, 10, b.ID); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("Assign(taken) error = %v, want ErrSlotTaken", err)
	}
}

func TestSlotStore_SlotsForUser(t *testing.T) {
	db := testDB(t)
	users := NewUserStore(db)
	slots := NewSlotStore(db)
	ctx := context.Background()

	user := createTestUser(t, users, "Multi", true)
	other := createTestUser(t, users, "Other", true)

	for _, slot := range []uint16{3, 7, 12} {
		if err := slots.Assign(ctx, slot, user.ID); err != nil {
			t.Fatalf("Assign(%d) error = %v", slot, err)
		}
	}
	if err := slots.Assign(ctx, 5, other.ID); err != nil {
		t.Fatalf("Assign(5) error = %v", err)
	}

	got, err := slots.SlotsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("SlotsForUser() error = %v", err)
	}
	want := []uint16{3, 7, 12}
	if len(got) != len(want) {
		t.Fatalf("SlotsForUser() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SlotsForUser()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSlotStore_Release(t *testing.T) {
	db := testDB(t)
	users := NewUserStore(db)
	slots := NewSlotStore(db)
	ctx := context.Background()

	user := createTestUser(t, users, "Releasee", true)

	if err := slots.Assign(ctx, 20, user.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if err := slots.Release(ctx, 20); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if _, err := slots.UserForSlot(ctx, 20); !errors.Is(err, ErrNotFound) {
		t.Errorf("UserForSlot(released) error = %v, want ErrNotFound", err)
	}

	if err := slots.Release(ctx, 20); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Release() error = %v, want ErrNotFound", err)
	}
}

func TestSlotStore_FreeSlot(t *testing.T) {
	db := testDB(t)
	users := NewUserStore(db)
	slots := NewSlotStore(db)
	ctx := context.Background()

	user := createTestUser(t, users, "Filler", true)

	slot, err := slots.FreeSlot(ctx)
	if err != nil {
		t.Fatalf("FreeSlot() error = %v", err)
	}
	if slot != 1 {
		t.Errorf("FreeSlot() on empty library = %d, want 1", slot)
	}

	// Occupy 1 and 2; the next free slot is 3
	if err := slots.Assign(ctx, 1, user.ID); err != nil {
		t.Fatalf("Assign(1) error = %v", err)
	}
	if err := slots.Assign(ctx, 2, user.ID); err != nil {
		t.Fatalf("Assign(2) error = %v", err)
	}

	slot, err = slots.FreeSlot(ctx)
	if err != nil {
		t.Fatalf("FreeSlot() error = %v", err)
	}
	if slot != 3 {
		t.Errorf("FreeSlot() = %d, want 3", slot)
	}

	// Gaps are reused: releasing 1 makes it the lowest free slot again
	if err := slots.Release(ctx, 1); err != nil {
		t.Fatalf("Release(1) error = %v", err)
	}
	slot, err = slots.FreeSlot(ctx)
	if err != nil {
		t.Fatalf("FreeSlot() error = %v", err)
	}
	if slot != 1 {
		t.Errorf("FreeSlot() after release = %d, want 1", slot)
	}
}

func TestMemoryStore_FreeSlotExhaustion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if err := store.Assign(ctx, slot, 1); err != nil {
			t.Fatalf("Assign(%d) error = %v", slot, err)
		}
	}

	if _, err := store.FreeSlot(ctx); !errors.Is(err, ErrCapacityExhausted) {
		t.Errorf("FreeSlot() on full library error = %v, want ErrCapacityExhausted", err)
	}
}
