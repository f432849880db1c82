package audit

import (
	"time"

	"github.com/google/uuid"
)

// AccessLogEntry represents access_log_entries. Append-only; the repository
// prunes the oldest rows beyond the per-user cap at write time.
type AccessLogEntry struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey"`
	UserID    string        `gorm:"size:64;not null;index:idx_access_logs_user_created,priority:1"`
	UserType  string        `gorm:"size:16;not null"`
	ThreadID  uuid.NullUUID `gorm:"type:uuid;index"`
	MessageID uuid.NullUUID `gorm:"type:uuid"`
	Result    string        `gorm:"size:16;not null;index"`
	Reason    string        `gorm:"size:255;not null"`
	Metadata  string        `gorm:"type:text"`
	CreatedAt time.Time     `gorm:"index:idx_access_logs_user_created,priority:2"`
}

// SecurityStats aggregates audit results over a period.
type SecurityStats struct {
	Granted    int64 `json:"granted"`
	Denied     int64 `json:"denied"`
	Errors     int64 `json:"errors"`
	Total      int64 `json:"total"`
	PeriodDays int   `json:"period_days"`
}

func (AccessLogEntry) TableName() string {
	return "access_log_entries"
}
