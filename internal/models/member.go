package models

import (
	"github.com/google/uuid"
)

// Member is a club member. Member administration lives in a separate
// service; this table carries only what referral tracking and reward
// distribution need to reference.
type Member struct {
	Base
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name     string    `gorm:"type:varchar(255)" json:"name"`
	Email    string    `gorm:"type:varchar(255);index" json:"email"`
}
