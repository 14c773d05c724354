package authflow

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/door-sentinel/internal/fingerprint"
	"github.com/nerrad567/door-sentinel/internal/identity"
)

// IndexInvalidator drops the face index cache after enrollment changes.
type IndexInvalidator interface {
	Invalidate()
}

// Enroller manages user enrollment: face embeddings in the database,
// fingerprint templates on the sensor, and the slot bookkeeping that
// ties the two factors to one identity.
type Enroller struct {
	users  identity.UserStore
	faces  identity.FaceStore
	slots  identity.SlotStore
	sensor fingerprint.Sensor
	index  IndexInvalidator
	logger Logger
}

// NewEnroller creates an enroller. index may be nil when no face index
// is in use.
func NewEnroller(
	users identity.UserStore,
	faces identity.FaceStore,
	slots identity.SlotStore,
	sensor fingerprint.Sensor,
	index IndexInvalidator,
) *Enroller {
	return &Enroller{
		users:  users,
		faces:  faces,
		slots:  slots,
		sensor: sensor,
		index:  index,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the enroller.
func (en *Enroller) SetLogger(logger Logger) {
	en.logger = logger
}

// EnrollFace stores a face embedding for the user and marks the face
// factor enrolled.
func (en *Enroller) EnrollFace(ctx context.Context, userID int64, embedding []float64) error {
	if _, err := en.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if len(embedding) == 0 {
		return fmt.Errorf("authflow: empty face embedding for user %d", userID)
	}

	if err := en.faces.Upsert(ctx, userID, embedding); err != nil {
		return fmt.Errorf("storing face embedding: %w", err)
	}

	enrolled := true
	if err := en.users.SetEnrollment(ctx, userID, &enrolled, nil); err != nil {
		return fmt.Errorf("marking face enrolled: %w", err)
	}

	en.invalidate()
	en.logger.Info("face enrolled", "user_id", userID)
	return nil
}

// EnrollFingerprint captures a fingerprint on the sensor, stores the
// template in the lowest free slot, and binds the slot to the user.
// Returns identity.ErrCapacityExhausted when the sensor library is
// full, and the slot on success.
func (en *Enroller) EnrollFingerprint(ctx context.Context, userID int64) (uint16, error) {
	if _, err := en.users.GetByID(ctx, userID); err != nil {
		return 0, err
	}

	slot, err := en.slots.FreeSlot(ctx)
	if err != nil {
		return 0, err
	}

	if err := en.sensor.Enroll(ctx, slot); err != nil {
		return 0, fmt.Errorf("sensor enrollment in slot %d: %w", slot, err)
	}

	if err := en.slots.Assign(ctx, slot, userID); err != nil {
		// The template is on the sensor but unbound; remove it so an
		// orphan slot can never open the door.
		if delErr := en.sensor.Delete(ctx, slot); delErr != nil {
			en.logger.Error("orphan template cleanup failed", "slot", slot, "error", delErr)
		}
		return 0, fmt.Errorf("binding slot %d: %w", slot, err)
	}

	enrolled := true
	if err := en.users.SetEnrollment(ctx, userID, nil, &enrolled); err != nil {
		return 0, fmt.Errorf("marking fingerprint enrolled: %w", err)
	}

	en.logger.Info("fingerprint enrolled", "user_id", userID, "slot", slot)
	return slot, nil
}

// RemoveUser deletes the user and all their biometric data: sensor
// templates, slot bindings, and the face embedding. Sensor deletions
// are best effort; a dead slot binding is removed regardless so the
// template can no longer resolve to an identity.
func (en *Enroller) RemoveUser(ctx context.Context, userID int64) error {
	slots, err := en.slots.SlotsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing slots: %w", err)
	}

	delCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, slot := range slots {
		if err := en.sensor.Delete(delCtx, slot); err != nil {
			en.logger.Warn("sensor template deletion failed", "slot", slot, "error", err)
		}
		if err := en.slots.Release(ctx, slot); err != nil {
			return fmt.Errorf("releasing slot %d: %w", slot, err)
		}
	}

	if err := en.users.Delete(ctx, userID); err != nil {
		return err
	}

	en.invalidate()
	en.logger.Info("user removed", "user_id", userID, "slots", len(slots))
	return nil
}

// SetActive enables or disables a user. Disabling invalidates the face
// index so the user stops matching on the next frame.
func (en *Enroller) SetActive(ctx context.Context, userID int64, active bool) error {
	if err := en.users.SetActive(ctx, userID, active); err != nil {
		return err
	}
	en.invalidate()
	en.logger.Info("user active flag changed", "user_id", userID, "active", active)
	return nil
}

func (en *Enroller) invalidate() {
	if en.index != nil {
		en.index.Invalidate()
	}
}
