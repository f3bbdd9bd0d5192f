package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/models"
)

func TestFindOrCreateFederated(t *testing.T) {
	db := setupServiceDB(t)
	accounts := NewAccountService(db)
	ctx := context.Background()

	t.Run("creates an account on first sight", func(t *testing.T) {
		avatar := "https://lh3.example.com/photo.jpg"
		profile := googleProfile("sub-100", "Jane.Doe@Example.com", "Jane", "Doe")
		profile.AvatarURL = &avatar

		user, created, err := accounts.FindOrCreateFederated(ctx, models.AuthProviderGoogle, profile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !created {
			t.Fatal("expected created to be true on first sight")
		}
		if user.Email != "jane.doe@example.com" {
			t.Fatalf("expected normalized email, got %q", user.Email)
		}
		if user.Username != "jane-doe" {
			t.Fatalf("expected username jane-doe, got %q", user.Username)
		}
		if user.AuthProvider == nil || *user.AuthProvider != models.AuthProviderGoogle {
			t.Fatal("expected google auth provider")
		}
		if user.HasUsablePassword() {
			t.Fatal("federated accounts must not have a usable password")
		}
		if user.AvatarURL == nil || *user.AvatarURL != avatar {
			t.Fatal("expected avatar url to be captured")
		}
		if user.IsStaff || user.IsSuperuser {
			t.Fatal("federated accounts must not be privileged")
		}
	})

	t.Run("returns the existing account on later sign-ins", func(t *testing.T) {
		profile := googleProfile("sub-100", "jane.doe@example.com", "Janet", "Doe")

		user, created, err := accounts.FindOrCreateFederated(ctx, models.AuthProviderGoogle, profile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created {
			t.Fatal("expected created to be false for a known subject")
		}
		if user.FirstName != "Jane" {
			t.Fatalf("claims are captured at creation only, got first name %q", user.FirstName)
		}

		var count int64
		db.Model(&models.User{}).Count(&count)
		if count != 1 {
			t.Fatalf("expected a single account, got %d", count)
		}
	})

	t.Run("suffixes colliding usernames", func(t *testing.T) {
		user, _, err := accounts.FindOrCreateFederated(ctx, models.AuthProviderGoogle,
			googleProfile("sub-101", "other.jane@example.com", "Jane", "Doe"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Username != "jane-doe-2" {
			t.Fatalf("expected suffixed username jane-doe-2, got %q", user.Username)
		}

		third, _, err := accounts.FindOrCreateFederated(ctx, models.AuthProviderGoogle,
			googleProfile("sub-102", "third.jane@example.com", "Jane", "Doe"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if third.Username != "jane-doe-3" {
			t.Fatalf("expected suffixed username jane-doe-3, got %q", third.Username)
		}
	})

	t.Run("rejects incomplete profiles", func(t *testing.T) {
		cases := []*IdentityProfile{
			googleProfile("", "a@example.com", "A", "B"),
			googleProfile("sub-200", "not-an-email", "A", "B"),
			googleProfile("sub-201", "a@example.com", "", "B"),
			googleProfile("sub-202", "a@example.com", "A", ""),
		}
		for _, profile := range cases {
			if _, _, err := accounts.FindOrCreateFederated(ctx, models.AuthProviderGoogle, profile); err == nil {
				t.Fatalf("expected validation error for profile %+v", profile)
			}
		}
	})
}

func TestFindOrCreateFederatedLosingRaces(t *testing.T) {
	ctx := context.Background()

	t.Run("subject race converges on the winner's row", func(t *testing.T) {
		db := setupServiceDB(t)
		accounts := NewAccountService(db)

		// Insert a competing account with the same (provider, subject) right
		// before the insert under test, as a concurrent sign-in would.
		provider := models.AuthProviderGoogle
		subject := "sub-contested"
		winner := models.User{
			Email:          "winner@example.com",
			FirstName:      "Wynn",
			LastName:       "First",
			Username:       "wynn-first",
			PasswordHash:   models.UnusablePassword,
			AuthProvider:   &provider,
			ProviderUserID: &subject,
			IsActive:       true,
		}

		fired := false
		registerCreateInterceptor(t, db, "subject_race_winner", func(tx *gorm.DB) {
			if fired {
				return
			}
			if _, ok := tx.Statement.Dest.(*models.User); !ok {
				return
			}
			fired = true
			if err := db.Create(&winner).Error; err != nil {
				t.Errorf("failed inserting competing account: %v", err)
			}
		})

		user, created, err := accounts.FindOrCreateFederated(ctx, models.AuthProviderGoogle,
			googleProfile("sub-contested", "loser@example.com", "Lola", "Second"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created {
			t.Fatal("the losing creator must not report created")
		}
		if user.ID != winner.ID {
			t.Fatalf("expected the winner's row back, got %s", user.ID)
		}

		var count int64
		db.Model(&models.User{}).Where("provider_user_id = ?", subject).Count(&count)
		if count != 1 {
			t.Fatalf("expected a single account for the subject, got %d", count)
		}
	})

	t.Run("username race retries with the next suffix", func(t *testing.T) {
		db := setupServiceDB(t)
		accounts := NewAccountService(db)

		fired := false
		registerCreateInterceptor(t, db, "username_race_winner", func(tx *gorm.DB) {
			if fired {
				return
			}
			if _, ok := tx.Statement.Dest.(*models.User); !ok {
				return
			}
			fired = true
			claim := models.User{
				Email:        "claimed@example.com",
				FirstName:    "Cleo",
				LastName:     "Claim",
				Username:     "race-name",
				PasswordHash: models.UnusablePassword,
				IsActive:     true,
			}
			if err := db.Create(&claim).Error; err != nil {
				t.Errorf("failed inserting competing username: %v", err)
			}
		})

		user, created, err := accounts.FindOrCreateFederated(ctx, models.AuthProviderGoogle,
			googleProfile("sub-race", "racer@example.com", "Race", "Name"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !created {
			t.Fatal("expected the account to be created on retry")
		}
		if user.Username != "race-name-2" {
			t.Fatalf("expected suffixed username race-name-2, got %q", user.Username)
		}
	})
}

func TestCreateSuperuser(t *testing.T) {
	db := setupServiceDB(t)
	accounts := NewAccountService(db)
	ctx := context.Background()

	t.Run("creates a privileged account", func(t *testing.T) {
		user, err := accounts.CreateSuperuser(ctx, "Admin", "Root", "Admin@Example.com", "s3cret-pass")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !user.IsStaff || !user.IsSuperuser {
			t.Fatal("expected staff and superuser flags to be set")
		}
		if user.Email != "admin@example.com" {
			t.Fatalf("expected normalized email, got %q", user.Email)
		}
		if !user.HasUsablePassword() {
			t.Fatal("expected a usable password hash")
		}
	})

	t.Run("rejects invalid configurations", func(t *testing.T) {
		cases := []struct {
			firstName, lastName, email, password string
		}{
			{"", "Root", "a@example.com", "pass"},
			{"Admin", "", "a@example.com", "pass"},
			{"Admin", "Root", "a@example.com", ""},
			{"Admin", "Root", "not-an-email", "pass"},
		}
		for _, tc := range cases {
			_, err := accounts.CreateSuperuser(ctx, tc.firstName, tc.lastName, tc.email, tc.password)
			if !errors.Is(err, ErrInvalidSuperuser) {
				t.Fatalf("expected ErrInvalidSuperuser for %+v, got %v", tc, err)
			}
		}
	})
}

func TestAccountGetOrNone(t *testing.T) {
	db := setupServiceDB(t)
	accounts := NewAccountService(db)
	ctx := context.Background()

	user := createFederatedUser(t, db, "lookup@example.com", "Look", "Up")

	found, err := accounts.GetOrNone(ctx, "email = ?", "lookup@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found == nil || found.ID != user.ID {
		t.Fatal("expected to find the created account")
	}

	missing, err := accounts.GetOrNone(ctx, "email = ?", "no-such@example.com")
	if err != nil {
		t.Fatalf("miss must not be an error: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for an unknown email")
	}
}
