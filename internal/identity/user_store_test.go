package identity

import (
	"context"
	"errors"
	"testing"
)

func TestUserStore_CreateAndGet(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	user := &User{Name: "Ada Lovelace", EmployeeID: "E-001", IsActive: true}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == 0 {
		t.Error("Create() should assign a non-zero ID")
	}

	got, err := store.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Name != "Ada Lovelace" {
		t.Errorf("Name = %q, want %q", got.Name, "Ada Lovelace")
	}
	if got.EmployeeID != "E-001" {
		t.Errorf("EmployeeID = %q, want %q", got.EmployeeID, "E-001")
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
	if got.FaceEnrolled || got.FingerprintEnrolled {
		t.Error("new user should have no enrollment flags set")
	}
}

func TestUserStore_DuplicateEmployeeID(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	first := &User{Name: "First", EmployeeID: "E-100", IsActive: true}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second := &User{Name: "Second", EmployeeID: "E-100", IsActive: true}
	err := store.Create(ctx, second)
	if !errors.Is(err, ErrEmployeeIDExists) {
		t.Errorf("Create() error = %v, want ErrEmployeeIDExists", err)
	}
}

func TestUserStore_GetByID_NotFound(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)

	_, err := store.GetByID(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserStore_List_ActiveOnly(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	createTestUser(t, store, "Active One", true)
	createTestUser(t, store, "Disabled", false)
	createTestUser(t, store, "Active Two", true)

	all, err := store.List(ctx, false)
	if err != nil {
		t.Fatalf("List(false) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(false) returned %d users, want 3", len(all))
	}

	active, err := store.List(ctx, true)
	if err != nil {
		t.Fatalf("List(true) error = %v", err)
	}
	if len(active) != 2 {
		t.Errorf("List(true) returned %d users, want 2", len(active))
	}
	for _, u := range active {
		if !u.IsActive {
			t.Errorf("List(true) returned inactive user %q", u.Name)
		}
	}
}

func TestUserStore_SetActive(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	user := createTestUser(t, store, "Toggle", true)

	if err := store.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	got, err := store.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.IsActive {
		t.Error("IsActive = true after SetActive(false)")
	}

	if err := store.SetActive(ctx, 999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetActive(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUserStore_SetEnrollment(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	user := createTestUser(t, store, "Enrollee", true)

	yes := true
	if err := store.SetEnrollment(ctx, user.ID, &yes, nil); err != nil {
		t.Fatalf("SetEnrollment(face) error = %v", err)
	}

	got, err := store.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.FaceEnrolled {
		t.Error("FaceEnrolled = false after SetEnrollment")
	}
	if got.FingerprintEnrolled {
		t.Error("FingerprintEnrolled should be untouched by nil pointer")
	}

	// Both nil is a no-op, not an error
	if err := store.SetEnrollment(ctx, user.ID, nil, nil); err != nil {
		t.Errorf("SetEnrollment(nil, nil) error = %v", err)
	}
}

func TestUserStore_Delete(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	user := createTestUser(t, store, "Goner", true)

	if err := store.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := store.GetByID(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}

	if err := store.Delete(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestUserStore_Count(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	createTestUser(t, store, "One", true)
	createTestUser(t, store, "Two", false)

	count, err = store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}
