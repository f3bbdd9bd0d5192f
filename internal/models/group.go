package models

import "github.com/google/uuid"

type Group struct {
	BaseModel
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	Slug        string    `json:"slug" gorm:"type:varchar(120);uniqueIndex;not null"`
	CreatedByID uuid.UUID `json:"createdByID" gorm:"type:uuid;not null;index"`
	IsActive    bool      `json:"isActive" gorm:"not null;default:true"`

	CreatedBy   User              `json:"createdBy" gorm:"foreignKey:CreatedByID"`
	Memberships []GroupMembership `json:"memberships,omitempty" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}
