package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeClock is a manually advanced clock.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// seqIDs returns a deterministic id generator: prefix-1, prefix-2, ...
func seqIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

// seedRoster inserts the default roster: one master, one admin, two staff.
func seedRoster(t *testing.T, db *gorm.DB) map[string]*domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := map[string]*domain.User{
		"master-1": {ID: "master-1", Name: "Master Admin", Email: "master@helpdesk.com", Role: domain.RoleMaster},
		"admin-1":  {ID: "admin-1", Name: "Admin User", Email: "admin@helpdesk.com", Role: domain.RoleAdmin},
		"staff-1":  {ID: "staff-1", Name: "Staff User", Email: "staff@helpdesk.com", Role: domain.RoleStaff},
		"staff-2":  {ID: "staff-2", Name: "Second Staff", Email: "staff2@helpdesk.com", Role: domain.RoleStaff},
	}
	for _, u := range users {
		u.PasswordHash = string(hash)
		u.CreatedAt = t0
		if err := repo.CreateUser(context.Background(), db, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	return users
}

func notificationsFor(t *testing.T, db *gorm.DB, userID string) []domain.Notification {
	t.Helper()
	ns, err := repo.ListNotifications(context.Background(), db, userID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return ns
}

func ptr[T any](v T) *T { return &v }
