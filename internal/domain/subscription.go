package domain

import "time"

// Subscription is the SQL row backing an EntitlementRecord. The primary key
// is the principal, so a new registration replaces the previous row.
type Subscription struct {
	Principal      string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	OrderReference string    `gorm:"type:TEXT NOT NULL"`
	ExpiresAt      time.Time `gorm:"type:DATETIME NOT NULL;index"`
	UpdatedAt      time.Time `gorm:"type:DATETIME NOT NULL;autoUpdateTime"`
}

// TableName implements the GORM tabler interface.
func (Subscription) TableName() string { return "subscriptions" }

// Record converts the row to its domain form.
func (s Subscription) Record() EntitlementRecord {
	return EntitlementRecord{
		Principal:      s.Principal,
		OrderReference: s.OrderReference,
		ExpiresAt:      s.ExpiresAt,
	}
}

// DeliveredEvent remembers a processed webhook event id until ExpiresAt so a
// platform redelivery is not answered twice.
type DeliveredEvent struct {
	EventID   string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (DeliveredEvent) TableName() string { return "delivered_events" }
