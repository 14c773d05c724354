package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/nerrad567/door-sentinel/internal/authflow"
	"github.com/nerrad567/door-sentinel/internal/fingerprint"
	"github.com/nerrad567/door-sentinel/internal/identity"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/config"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/database"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/logging"
)

// Admin subcommands manage users and their biometrics without starting
// the service:
//
//	doorsentinel users                     list users and enrollment state
//	doorsentinel add -name NAME            create a user
//	doorsentinel enroll -user ID [flags]   enroll face and/or fingerprint
//	doorsentinel remove -user ID           delete a user and their biometrics
//	doorsentinel enable -user ID           reactivate a user
//	doorsentinel disable -user ID          deactivate a user
//
// Face embeddings arrive as a JSON array of floats produced by an
// external capture tool; fingerprint enrollment talks to the configured
// sensor directly.

// isAdminCommand reports whether the first CLI argument selects an
// admin subcommand rather than the service loop.
func isAdminCommand(name string) bool {
	switch name {
	case "users", "add", "enroll", "remove", "enable", "disable":
		return true
	}
	return false
}

// adminEnv holds the shared dependencies of the admin subcommands.
type adminEnv struct {
	db       *database.DB
	users    identity.UserStore
	sensor   fingerprint.Sensor
	enroller *authflow.Enroller
}

func (a *adminEnv) close() {
	if a.sensor != nil {
		_ = a.sensor.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// openAdminEnv loads config and opens the database and sensor the same
// way the service does. The face index is nil; the running service
// refreshes its cache on the TTL, so enrollment changes land without a
// restart.
func openAdminEnv(ctx context.Context) (*adminEnv, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	log := logging.New(config.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"}, version)
	sensor, err := buildSensor(ctx, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting fingerprint sensor: %w", err)
	}

	users := identity.NewUserStore(db.DB)
	faces := identity.NewFaceStore(db.DB)
	slots := identity.NewSlotStore(db.DB)
	enroller := authflow.NewEnroller(users, faces, slots, sensor, nil)
	enroller.SetLogger(log)

	return &adminEnv{
		db:       db,
		users:    users,
		sensor:   sensor,
		enroller: enroller,
	}, nil
}

// runAdmin dispatches one admin subcommand.
func runAdmin(ctx context.Context, name string, args []string) error {
	env, err := openAdminEnv(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	switch name {
	case "users":
		return adminListUsers(ctx, env)
	case "add":
		return adminAddUser(ctx, env, args)
	case "enroll":
		return adminEnroll(ctx, env, args)
	case "remove":
		return adminRemoveUser(ctx, env, args)
	case "enable":
		return adminSetActive(ctx, env, name, args, true)
	case "disable":
		return adminSetActive(ctx, env, name, args, false)
	}
	return fmt.Errorf("unknown command %q", name)
}

func adminListUsers(ctx context.Context, env *adminEnv) error {
	users, err := env.users.List(ctx, false)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("no users enrolled")
		return nil
	}

	fmt.Printf("%-5s %-15s %-25s %-7s %-5s %s\n",
		"ID", "EMPLOYEE", "NAME", "ACTIVE", "FACE", "FINGERPRINT")
	for _, u := range users {
		fmt.Printf("%-5d %-15s %-25s %-7v %-5v %v\n",
			u.ID, u.EmployeeID, u.Name, u.IsActive, u.FaceEnrolled, u.FingerprintEnrolled)
	}
	return nil
}

func adminAddUser(ctx context.Context, env *adminEnv, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "user name (required)")
	employeeID := fs.String("employee", "", "employee identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("add: -name is required")
	}

	user := &identity.User{Name: *name, EmployeeID: *employeeID, IsActive: true}
	if err := env.users.Create(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	fmt.Printf("user %d created: %s\n", user.ID, user.Name)
	return nil
}

func adminEnroll(ctx context.Context, env *adminEnv, args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ContinueOnError)
	userID := fs.Int64("user", 0, "user ID (required)")
	facePath := fs.String("face", "", "path to a face embedding JSON file")
	fp := fs.Bool("fp", false, "enroll a fingerprint on the sensor")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == 0 {
		return fmt.Errorf("enroll: -user is required")
	}
	if *facePath == "" && !*fp {
		return fmt.Errorf("enroll: nothing to do, pass -face and/or -fp")
	}

	if *facePath != "" {
		embedding, err := loadEmbedding(*facePath)
		if err != nil {
			return err
		}
		if err := env.enroller.EnrollFace(ctx, *userID, embedding); err != nil {
			return fmt.Errorf("enrolling face: %w", err)
		}
		fmt.Printf("face enrolled for user %d\n", *userID)
	}

	if *fp {
		fmt.Println("place finger on the sensor...")
		slot, err := env.enroller.EnrollFingerprint(ctx, *userID)
		if err != nil {
			return fmt.Errorf("enrolling fingerprint: %w", err)
		}
		fmt.Printf("fingerprint enrolled for user %d in slot %d\n", *userID, slot)
	}
	return nil
}

func adminRemoveUser(ctx context.Context, env *adminEnv, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	userID := fs.Int64("user", 0, "user ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == 0 {
		return fmt.Errorf("remove: -user is required")
	}

	if err := env.enroller.RemoveUser(ctx, *userID); err != nil {
		return fmt.Errorf("removing user: %w", err)
	}
	fmt.Printf("user %d removed\n", *userID)
	return nil
}

func adminSetActive(ctx context.Context, env *adminEnv, name string, args []string, active bool) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	userID := fs.Int64("user", 0, "user ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == 0 {
		return fmt.Errorf("%s: -user is required", name)
	}

	if err := env.enroller.SetActive(ctx, *userID, active); err != nil {
		return fmt.Errorf("updating user %d: %w", *userID, err)
	}
	fmt.Printf("user %d active=%v\n", *userID, active)
	return nil
}

// loadEmbedding reads a face embedding from a JSON array of floats.
func loadEmbedding(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading embedding file: %w", err)
	}
	var embedding []float64
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, fmt.Errorf("parsing embedding file %s: %w", path, err)
	}
	return embedding, nil
}
