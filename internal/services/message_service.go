package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"wedhabesha-chat/internal/crypto"
	"wedhabesha-chat/internal/domain"
	"wedhabesha-chat/internal/domain/message"
	"wedhabesha-chat/internal/events"
	"wedhabesha-chat/internal/proxy"
	"wedhabesha-chat/internal/repository"
	chat_errors "wedhabesha-chat/pkg/errors"
	"wedhabesha-chat/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxContentLength = 10000
	defaultPageSize  = 50
	maxPageSize      = 50
	searchScanCap    = 500
	defaultSearchCap = 50
)

// RoomPublisher fans live events out to thread and user rooms. Satisfied by
// events.RoomBus; faked in tests.
type RoomPublisher interface {
	PublishToThread(ctx context.Context, threadID, eventType string, payload interface{}) error
	PublishToUser(ctx context.Context, userID, eventType string, payload interface{}) error
}

// MessageService orchestrates validation, authorization, encryption,
// persistence and notification for the message lifecycle.
type MessageService struct {
	db          *gorm.DB
	messageRepo repository.MessageRepository
	threadRepo  repository.ThreadRepository
	access      *proxy.AccessControl
	engine      *crypto.Engine
	notifier    *NotificationService
	rooms       RoomPublisher
	validator   FileValidator
	log         *logger.Logger
}

func NewMessageService(db *gorm.DB, messageRepo repository.MessageRepository, threadRepo repository.ThreadRepository, access *proxy.AccessControl, engine *crypto.Engine, notifier *NotificationService, rooms RoomPublisher, validator FileValidator, log *logger.Logger) *MessageService {
	return &MessageService{
		db:          db,
		messageRepo: messageRepo,
		threadRepo:  threadRepo,
		access:      access,
		engine:      engine,
		notifier:    notifier,
		rooms:       rooms,
		validator:   validator,
		log:         log,
	}
}

// MessageView is a message with decrypted content, as returned to callers.
// The stored row always holds ciphertext.
type MessageView struct {
	ID              uuid.UUID            `json:"id"`
	ThreadID        uuid.UUID            `json:"thread_id"`
	SenderID        string               `json:"sender_id"`
	SenderType      string               `json:"sender_type"`
	Content         string               `json:"content"`
	Type            string               `json:"type"`
	Priority        string               `json:"priority"`
	Status          string               `json:"status"`
	IsDeleted       bool                 `json:"is_deleted"`
	DecryptionError bool                 `json:"decryption_error,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Attachments     []message.Attachment `json:"attachments,omitempty"`
}

type AttachmentInput struct {
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	SizeBytes  int64  `json:"size_bytes"`
	StorageKey string `json:"storage_key"`
}

type SendMessageInput struct {
	ThreadID    uuid.UUID
	SenderID    string
	SenderType  string
	Content     string
	MessageType string
	Priority    string
	Attachments []AttachmentInput
}

// ValidateMessageContent rejects missing, blank or oversized content and
// returns a sanitized copy. HTML-significant characters are neutralized on
// the plaintext before encryption, never after decryption.
func ValidateMessageContent(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("message content is required: %w", chat_errors.ErrInvalidInput)
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("message content cannot be empty: %w", chat_errors.ErrInvalidInput)
	}
	if len([]rune(trimmed)) > maxContentLength {
		return "", fmt.Errorf("message content exceeds maximum length of %d characters: %w", maxContentLength, chat_errors.ErrInvalidInput)
	}
	return html.EscapeString(trimmed), nil
}

// SendMessage validates input, authorizes the sender, encrypts the sanitized
// content and persists the message together with the thread activity bump in
// one transaction. Validation runs strictly before authorization so malformed
// input never reaches the audit trail or storage. The returned view carries
// the decrypted plaintext for immediate display.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (*MessageView, error) {
	sanitized, err := ValidateMessageContent(in.Content)
	if err != nil {
		return nil, err
	}
	senderType, err := domain.ParseParticipantType(in.SenderType)
	if err != nil {
		return nil, fmt.Errorf("invalid sender type %q: %w", in.SenderType, chat_errors.ErrInvalidInput)
	}
	msgType := domain.MessageText
	if in.MessageType != "" {
		msgType, err = domain.ParseMessageType(in.MessageType)
		if err != nil {
			return nil, fmt.Errorf("invalid message type %q: %w", in.MessageType, chat_errors.ErrInvalidInput)
		}
	}
	if err := s.validateAttachments(in.Attachments); err != nil {
		return nil, err
	}

	decision := s.access.VerifyThreadAccess(ctx, in.SenderID, in.SenderType, in.ThreadID)
	if !decision.Authorized {
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}

	ciphertext, err := s.engine.Encrypt(sanitized, in.ThreadID.String())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := message.Message{
		ID:         uuid.New(),
		ThreadID:   in.ThreadID,
		SenderID:   in.SenderID,
		SenderType: string(senderType),
		Content:    ciphertext,
		Type:       string(msgType),
		Priority:   string(domain.ParsePriority(in.Priority)),
		Status:     string(domain.StatusSent),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var attachments []message.Attachment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgRepo := repository.NewMessageRepository(tx)
		threadRepo := repository.NewThreadRepository(tx)

		if err := msgRepo.Create(ctx, &msg); err != nil {
			return err
		}
		for _, a := range in.Attachments {
			att := message.Attachment{
				ID:         uuid.New(),
				MessageID:  msg.ID,
				FileName:   a.FileName,
				FileType:   a.FileType,
				SizeBytes:  a.SizeBytes,
				StorageKey: a.StorageKey,
				CreatedAt:  now,
			}
			if err := msgRepo.CreateAttachment(ctx, &att); err != nil {
				return err
			}
			attachments = append(attachments, att)
		}
		return threadRepo.TouchActivity(ctx, in.ThreadID, now)
	})
	if err != nil {
		return nil, err
	}

	view := &MessageView{
		ID:          msg.ID,
		ThreadID:    msg.ThreadID,
		SenderID:    msg.SenderID,
		SenderType:  msg.SenderType,
		Content:     sanitized,
		Type:        msg.Type,
		Priority:    msg.Priority,
		Status:      msg.Status,
		CreatedAt:   msg.CreatedAt,
		Attachments: attachments,
	}

	s.fanOut(ctx, decision, view)
	return view, nil
}

// fanOut dispatches the notification and the live room event. Both are
// best-effort: the message is already durable.
func (s *MessageService) fanOut(ctx context.Context, decision proxy.Decision, view *MessageView) {
	recipient := decision.Thread.CoupleID
	if view.SenderID == decision.Thread.CoupleID {
		recipient = decision.Thread.VendorID
	}

	if s.notifier != nil {
		err := s.notifier.SendMessageNotification(ctx, MessageNotificationInput{
			UserID:     recipient,
			MessageID:  view.ID,
			ThreadID:   view.ThreadID,
			SenderID:   view.SenderID,
			SenderName: view.SenderType,
			Content:    view.Content,
			Priority:   view.Priority,
		})
		if err != nil && s.log != nil {
			s.log.Warnf("message %s: notification dispatch failed: %v", view.ID, err)
		}
	}

	if s.rooms != nil {
		if err := s.rooms.PublishToThread(ctx, view.ThreadID.String(), events.TypeMessageNew, view); err != nil && s.log != nil {
			s.log.Warnf("message %s: room fan-out failed: %v", view.ID, err)
		}
	}
}

func (s *MessageService) validateAttachments(attachments []AttachmentInput) error {
	if len(attachments) == 0 || s.validator == nil {
		return nil
	}
	for _, a := range attachments {
		v := s.validator.Validate(a.FileName, a.SizeBytes, a.FileType)
		if !v.Valid {
			return fmt.Errorf("attachment %q rejected: %s: %w", a.FileName, v.Reason, chat_errors.ErrInvalidInput)
		}
	}
	return nil
}

// MessagePage is one page of decrypted messages.
type MessagePage struct {
	Messages []MessageView `json:"messages"`
	Total    int64         `json:"total"`
	HasMore  bool          `json:"has_more"`
}

// GetMessages returns a page of the thread's messages in stable order.
// Pagination inputs are normalized rather than rejected. A row that fails to
// decrypt is reported in place without aborting the batch.
func (s *MessageService) GetMessages(ctx context.Context, threadID uuid.UUID, userID, userType string, limit, offset int) (*MessagePage, error) {
	decision := s.access.VerifyThreadAccess(ctx, userID, userType, threadID)
	if !decision.Authorized {
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}

	limit = clampLimit(limit, defaultPageSize)
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.messageRepo.GetThreadMessages(ctx, threadID, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(rows))
	for _, row := range rows {
		views = append(views, s.decryptRow(ctx, row))
	}

	return &MessagePage{
		Messages: views,
		Total:    total,
		HasMore:  int64(offset+len(views)) < total,
	}, nil
}

func (s *MessageService) decryptRow(ctx context.Context, row message.Message) MessageView {
	view := MessageView{
		ID:         row.ID,
		ThreadID:   row.ThreadID,
		SenderID:   row.SenderID,
		SenderType: row.SenderType,
		Type:       row.Type,
		Priority:   row.Priority,
		Status:     row.Status,
		IsDeleted:  row.IsDeleted,
		CreatedAt:  row.CreatedAt,
	}

	plaintext, err := s.engine.Decrypt(row.Content, row.ThreadID.String())
	if err != nil {
		if s.log != nil {
			s.log.Warnf("message %s: decrypt failed: %v", row.ID, err)
		}
		view.Content = "[Decryption failed]"
		view.DecryptionError = true
	} else {
		view.Content = plaintext
	}

	if attachments, err := s.messageRepo.GetAttachments(ctx, row.ID); err == nil && len(attachments) > 0 {
		view.Attachments = attachments
	}
	return view
}

// ReadResult reports the outcome of MarkAsRead.
type ReadResult struct {
	AlreadyRead bool `json:"already_read"`
}

// MarkAsRead records that the reader saw the message. Senders cannot mark
// their own messages; repeated calls are idempotent.
func (s *MessageService) MarkAsRead(ctx context.Context, messageID uuid.UUID, readerID, readerType string) (*ReadResult, error) {
	decision := s.access.VerifyMessageAccess(ctx, readerID, readerType, messageID)
	if !decision.Authorized {
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}
	if decision.Message.SenderID == readerID {
		return nil, fmt.Errorf("cannot mark own message as read: %w", chat_errors.ErrForbidden)
	}

	if _, err := s.messageRepo.GetReadStatus(ctx, messageID, readerID); err == nil {
		return &ReadResult{AlreadyRead: true}, nil
	} else if !errorsIsNotFound(err) {
		return nil, err
	}

	rs := message.ReadStatus{
		MessageID: messageID,
		UserID:    readerID,
		ReadAt:    time.Now(),
	}
	if err := s.messageRepo.CreateReadStatus(ctx, &rs); err != nil {
		if errorsIsAlreadyExists(err) {
			return &ReadResult{AlreadyRead: true}, nil
		}
		return nil, err
	}

	if err := s.messageRepo.SetStatus(ctx, messageID, string(domain.StatusRead)); err != nil {
		return nil, err
	}
	return &ReadResult{AlreadyRead: false}, nil
}

// DeleteResult reports the outcome of DeleteMessage.
type DeleteResult struct {
	AlreadyDeleted bool `json:"already_deleted"`
}

// DeleteMessage soft-deletes a message. Only the original sender may delete;
// repeated deletion is idempotent. Attachments and read-status rows are
// retained for the other participant's continuity. Authorization runs first
// so every refused delete lands in the audit trail.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID uuid.UUID, userID, userType string) (*DeleteResult, error) {
	decision := s.access.VerifyMessageAccess(ctx, userID, userType, messageID)
	if !decision.Authorized {
		switch decision.Reason {
		case proxy.ReasonMessageMissing:
			return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrNotFound)
		case proxy.ReasonMessageDeleted:
			// The sender repeating their own delete is a no-op, not a denial.
			m, err := s.messageRepo.GetByID(ctx, messageID)
			if err != nil {
				return nil, err
			}
			if m.SenderID == userID {
				return &DeleteResult{AlreadyDeleted: true}, nil
			}
		}
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}

	if decision.Message.SenderID != userID {
		s.access.RecordDenial(ctx, userID, userType, decision.Thread.ID, messageID, proxy.ReasonNotSender)
		return nil, fmt.Errorf("%s: %w", proxy.ReasonNotSender, chat_errors.ErrForbidden)
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return nil, err
	}
	return &DeleteResult{AlreadyDeleted: false}, nil
}

// SearchResult is the outcome of a message search.
type SearchResult struct {
	Messages []MessageView `json:"messages"`
	Query    string        `json:"query"`
}

// SearchMessages decrypts the thread's active messages and performs a
// case-insensitive substring match. Rows that fail to decrypt are silently
// excluded; they cannot match what cannot be read.
func (s *MessageService) SearchMessages(ctx context.Context, threadID uuid.UUID, userID, userType, query string, limit int) (*SearchResult, error) {
	decision := s.access.VerifyThreadAccess(ctx, userID, userType, threadID)
	if !decision.Authorized {
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, fmt.Errorf("search query cannot be empty: %w", chat_errors.ErrInvalidInput)
	}
	limit = clampLimit(limit, defaultSearchCap)

	rows, err := s.messageRepo.GetActiveThreadMessages(ctx, threadID, searchScanCap)
	if err != nil {
		return nil, err
	}

	matches := make([]MessageView, 0)
	for _, row := range rows {
		plaintext, err := s.engine.Decrypt(row.Content, row.ThreadID.String())
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(plaintext), needle) {
			continue
		}
		view := s.decryptRow(ctx, row)
		matches = append(matches, view)
		if len(matches) >= limit {
			break
		}
	}

	return &SearchResult{Messages: matches, Query: strings.TrimSpace(query)}, nil
}

// RotationResult reports when a thread key was rotated.
type RotationResult struct {
	ThreadID  uuid.UUID `json:"thread_id"`
	RotatedAt time.Time `json:"rotated_at"`
}

// RotateThreadKey replaces the thread's encryption key with a fresh one.
// Rotation is one-way: messages sealed under the prior key stop decrypting
// and render as decryption failures in reads.
func (s *MessageService) RotateThreadKey(ctx context.Context, threadID uuid.UUID, userID, userType string) (*RotationResult, error) {
	decision := s.access.VerifyThreadAccess(ctx, userID, userType, threadID)
	if !decision.Authorized {
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}

	rotatedAt, err := s.engine.Keys().RotateKey(threadID.String())
	if err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("thread %s: encryption key rotated", threadID)
	}
	return &RotationResult{ThreadID: threadID, RotatedAt: rotatedAt}, nil
}

// GetThreadStats returns message counts for one thread.
func (s *MessageService) GetThreadStats(ctx context.Context, threadID uuid.UUID, userID, userType string) (*message.ThreadMessageStats, error) {
	decision := s.access.VerifyThreadAccess(ctx, userID, userType, threadID)
	if !decision.Authorized {
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}

	stats, err := s.messageRepo.Stats(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
