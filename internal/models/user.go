package models

// AuthProvider identifies the external identity provider an account was
// federated from. Only Google is supported right now.
type AuthProvider string

const (
	AuthProviderGoogle AuthProvider = "google"
)

// UnusablePassword is stored for federated accounts. It is not a valid
// bcrypt hash, so a password check against it always fails.
const UnusablePassword = "!"

type User struct {
	BaseModel
	Email          string        `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	FirstName      string        `json:"firstName" gorm:"type:varchar(50);not null"`
	LastName       string        `json:"lastName" gorm:"type:varchar(50);not null"`
	Username       string        `json:"username" gorm:"type:varchar(120);uniqueIndex;not null"`
	PasswordHash   string        `json:"-" gorm:"type:text;not null"`
	AuthProvider   *AuthProvider `json:"authProvider,omitempty" gorm:"type:varchar(20);uniqueIndex:idx_provider_subject"`
	ProviderUserID *string       `json:"-" gorm:"type:varchar(255);uniqueIndex:idx_provider_subject"`
	AvatarURL      *string       `json:"avatarURL,omitempty" gorm:"type:text"`
	Bio            *string       `json:"bio,omitempty" gorm:"type:varchar(200)"`
	IsStaff        bool          `json:"isStaff" gorm:"not null;default:false"`
	IsSuperuser    bool          `json:"isSuperuser" gorm:"not null;default:false"`
	IsActive       bool          `json:"isActive" gorm:"not null;default:true"`

	CreatedGroups    []Group           `json:"-" gorm:"foreignKey:CreatedByID"`
	GroupMemberships []GroupMembership `json:"-" gorm:"foreignKey:UserID"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// HasUsablePassword reports whether the account can authenticate with a
// local credential. Federated accounts never can.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && u.PasswordHash != UnusablePassword
}
