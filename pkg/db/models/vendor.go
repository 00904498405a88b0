package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is the marketplace seller that owns products. Managed by the
// account collaborator; inventory reads it for scoping and display context.
type Vendor struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyName string    `gorm:"column:company_name;not null"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
