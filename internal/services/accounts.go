package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/models"
	"github.com/schedulesync/backend/pkg/logger"
	"github.com/schedulesync/backend/pkg/utils"
)

// ErrInvalidSuperuser is returned when a privileged account is created with
// an invalid configuration.
var ErrInvalidSuperuser = errors.New("invalid superuser configuration")

type AccountService struct {
	DB *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{DB: db}
}

// GetOrNone looks up a single account and returns nil without an error when
// no row matches.
func (s *AccountService) GetOrNone(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, append([]interface{}{query}, args...)...).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreateFederated returns the account keyed by (provider, subject),
// creating it from the verified profile claims on first sight. Profile
// claims are captured at creation only and not reconciled on later sign-ins.
// Concurrent calls for the same subject converge on one row: a creator that
// loses the unique-index race falls back to fetching the winner's row.
func (s *AccountService) FindOrCreateFederated(ctx context.Context, provider models.AuthProvider, profile *IdentityProfile) (*models.User, bool, error) {
	existing, err := s.getFederated(ctx, provider, profile.SubjectID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if err := validateFederatedProfile(profile); err != nil {
		return nil, false, err
	}

	subjectID := profile.SubjectID
	user := models.User{
		Email:          strings.ToLower(strings.TrimSpace(profile.Email)),
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
		AvatarURL:      profile.AvatarURL,
		AuthProvider:   &provider,
		ProviderUserID: &subjectID,
		PasswordHash:   models.UnusablePassword,
		IsActive:       true,
	}

	for attempt := 0; attempt < 3; attempt++ {
		username, err := s.uniqueUsername(ctx, profile.FirstName, profile.LastName)
		if err != nil {
			return nil, false, err
		}
		user.Username = username

		err = s.DB.WithContext(ctx).Create(&user).Error
		if err == nil {
			logger.Info("federated_account_created", map[string]interface{}{
				"user_id":  user.ID.String(),
				"email":    user.Email,
				"provider": string(provider),
			})
			return &user, true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, err
		}

		winner, ferr := s.getFederated(ctx, provider, profile.SubjectID)
		if ferr != nil {
			return nil, false, ferr
		}
		if winner != nil {
			return winner, false, nil
		}

		// No row for this subject, so the collision was on the username,
		// claimed between the uniqueness probe and the insert. The next
		// probe sees the claimed name and suffixes past it.
	}

	return nil, false, gorm.ErrDuplicatedKey
}

func (s *AccountService) getFederated(ctx context.Context, provider models.AuthProvider, subjectID string) (*models.User, error) {
	return s.GetOrNone(ctx, "auth_provider = ? AND provider_user_id = ?", provider, subjectID)
}

// CreateSuperuser provisions a privileged local account. Both staff and
// superuser flags must end up true or creation fails.
func (s *AccountService) CreateSuperuser(ctx context.Context, firstName, lastName, email, password string) (*models.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.ToLower(strings.TrimSpace(email))

	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first name and last name are required", ErrInvalidSuperuser)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidSuperuser)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: a valid email address is required", ErrInvalidSuperuser)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	username, err := s.uniqueUsername(ctx, firstName, lastName)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		Username:     username,
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
		IsActive:     true,
	}

	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	logger.Info("superuser_created", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
	})

	return &user, nil
}

func validateFederatedProfile(profile *IdentityProfile) error {
	if profile.SubjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	if profile.FirstName == "" || profile.LastName == "" {
		return fmt.Errorf("first name and last name are required")
	}
	if _, err := mail.ParseAddress(profile.Email); err != nil {
		return fmt.Errorf("a valid email address is required")
	}
	return nil
}

// uniqueUsername derives a slug from the account's name and suffixes it
// until it is free.
func (s *AccountService) uniqueUsername(ctx context.Context, firstName, lastName string) (string, error) {
	base := utils.Slugify(firstName + " " + lastName)
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 2; ; i++ {
		existing, err := s.GetOrNone(ctx, "username = ?", candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
