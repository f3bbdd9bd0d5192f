package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/schedulesync/backend/internal/models"
)

var serviceDBSeq atomic.Int64

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache in-memory database accepts more than one
	// connection, so the race tests' interceptor can insert its competing row
	// while the insert under test pins another connection.
	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", serviceDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed opening test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql db: %v", err)
	}
	// Keep an idle connection open for the lifetime of the test so the
	// in-memory database is not dropped between operations.
	sqlDB.SetMaxIdleConns(2)

	err = db.AutoMigrate(&models.User{}, &models.Group{}, &models.GroupMembership{})
	if err != nil {
		t.Fatalf("failed migrating test database: %v", err)
	}

	return db
}

// registerCreateInterceptor hooks fn in right before every insert on db,
// letting a test slip a competing row in ahead of the insert under test. The
// hook is removed when the test finishes.
func registerCreateInterceptor(t *testing.T, db *gorm.DB, name string, fn func(tx *gorm.DB)) {
	t.Helper()

	if err := db.Callback().Create().Before("gorm:create").Register(name, fn); err != nil {
		t.Fatalf("failed registering create callback: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove(name)
	})
}

func googleProfile(subject, email, firstName, lastName string) *IdentityProfile {
	return &IdentityProfile{
		SubjectID: subject,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}
}

func createFederatedUser(t *testing.T, db *gorm.DB, email, firstName, lastName string) *models.User {
	t.Helper()

	accounts := NewAccountService(db)
	user, _, err := accounts.FindOrCreateFederated(context.Background(), models.AuthProviderGoogle,
		googleProfile(fmt.Sprintf("sub-%s", email), email, firstName, lastName))
	if err != nil {
		t.Fatalf("failed creating test user %s: %v", email, err)
	}
	return user
}

func createGroup(t *testing.T, db *gorm.DB, creator *models.User, name string) *models.Group {
	t.Helper()

	groups := NewGroupService(db)
	group, err := groups.Create(context.Background(), creator, name, nil)
	if err != nil {
		t.Fatalf("failed creating test group %q: %v", name, err)
	}
	return group
}
