package thread

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Thread represents the threads table. At most one thread exists per
// (couple_id, vendor_id) pair; the unique index resolves creation races.
// IsActive carries no column default: gorm omits zero-value fields from the
// INSERT when a default tag is present, which would flip false to true.
type Thread struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	CoupleID      string         `gorm:"size:64;not null;uniqueIndex:idx_threads_couple_vendor,priority:1;index"`
	VendorID      string         `gorm:"size:64;not null;uniqueIndex:idx_threads_couple_vendor,priority:2;index"`
	IsActive      bool           `gorm:"not null"`
	LeadID        sql.NullString `gorm:"size:64"`
	ServiceType   sql.NullString `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastMessageAt sql.NullTime
}

// Stats aggregates thread counts for one user.
type Stats struct {
	TotalThreads    int64 `json:"total_threads"`
	ActiveThreads   int64 `json:"active_threads"`
	ArchivedThreads int64 `json:"archived_threads"`
}

func (Thread) TableName() string {
	return "threads"
}
