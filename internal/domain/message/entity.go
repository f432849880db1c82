package message

import (
	"time"

	"wedhabesha-chat/internal/domain/thread"

	"github.com/google/uuid"
)

// Message represents the messages table. Content always holds the AEAD
// ciphertext token; plaintext never touches the row. Rows are owned by their
// thread through the declared foreign key.
type Message struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	ThreadID   uuid.UUID     `gorm:"type:uuid;not null;index:idx_messages_thread_created,priority:1"`
	Thread     thread.Thread `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID   string        `gorm:"size:64;not null;index"`
	SenderType string        `gorm:"size:16;not null"`
	Content    string        `gorm:"type:text;not null"`
	Type       string        `gorm:"size:16;not null;default:text"`
	Priority   string        `gorm:"size:16;not null;default:normal"`
	Status     string        `gorm:"size:16;not null;default:sent"`
	IsDeleted  bool          `gorm:"not null;default:false"`
	CreatedAt  time.Time     `gorm:"index:idx_messages_thread_created,priority:2"`
	UpdatedAt  time.Time
}

// ReadStatus represents message_read_statuses. One row per (message, reader);
// never updated after insertion.
type ReadStatus struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Message   Message   `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    string    `gorm:"size:64;primaryKey"`
	ReadAt    time.Time
}

// Attachment represents message_attachments. Attachment rows survive the
// sender's soft-delete so the other participant keeps access.
type Attachment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Message    Message   `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	FileName   string    `gorm:"size:255;not null"`
	FileType   string    `gorm:"size:64;not null"`
	SizeBytes  int64     `gorm:"not null"`
	StorageKey string    `gorm:"size:255;not null"`
	CreatedAt  time.Time
}

// ThreadMessageStats aggregates message counts for one thread.
type ThreadMessageStats struct {
	TotalMessages   int64 `json:"total_messages"`
	ActiveMessages  int64 `json:"active_messages"`
	DeletedMessages int64 `json:"deleted_messages"`
	ReadMessages    int64 `json:"read_messages"`
	UnreadMessages  int64 `json:"unread_messages"`
}

func (Message) TableName() string {
	return "messages"
}

func (ReadStatus) TableName() string {
	return "message_read_statuses"
}

func (Attachment) TableName() string {
	return "message_attachments"
}
