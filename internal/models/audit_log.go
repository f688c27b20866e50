package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions recorded by the engine.
const (
	AuditActionLoginSuccess     = "auth.login_success"
	AuditActionLoginFailed      = "auth.login_failed"
	AuditActionBalanceQuery     = "account.balance_query"
	AuditActionTransferComplete = "transfer.completed"
	AuditActionTransferFailed   = "transfer.failed"
	AuditActionTransferQuery    = "transfer.status_query"
)

// AuditLog is the durable operation log. One row per observable operation,
// mirroring the structured audit events emitted through slog.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action     string     `gorm:"type:varchar(100);not null;index" json:"action"`
	Resource   string     `gorm:"type:varchar(50);not null" json:"resource"`
	ResourceID string     `gorm:"type:varchar(100)" json:"resource_id,omitempty"`
	IPAddress  string     `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent  string     `gorm:"type:text" json:"user_agent,omitempty"`
	Metadata   JSONBMap   `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate hook for AuditLog
func (al *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if al.ID == uuid.Nil {
		al.ID = uuid.New()
	}

	if al.CreatedAt.IsZero() {
		al.CreatedAt = time.Now()
	}

	if al.Metadata == nil {
		al.Metadata = make(JSONBMap)
	}

	return nil
}

// TableName returns the table name for AuditLog
func (al *AuditLog) TableName() string {
	return "audit_logs"
}

// JSONBMap stores arbitrary metadata as JSON text. Works on both postgres and
// sqlite since the column is serialized through Value/Scan.
type JSONBMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONBMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (m *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(JSONBMap)
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into JSONBMap", value)
	}
}
