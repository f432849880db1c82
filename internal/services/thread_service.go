package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wedhabesha-chat/internal/domain"
	"wedhabesha-chat/internal/domain/thread"
	"wedhabesha-chat/internal/proxy"
	"wedhabesha-chat/internal/repository"
	chat_errors "wedhabesha-chat/pkg/errors"
	"wedhabesha-chat/pkg/logger"

	"github.com/google/uuid"
)

const threadPageSize = 20

// ThreadService manages conversation thread lifecycle: creation, listing,
// archival and activity tracking.
type ThreadService struct {
	threadRepo  repository.ThreadRepository
	messageRepo repository.MessageRepository
	access      *proxy.AccessControl
	log         *logger.Logger
}

func NewThreadService(threadRepo repository.ThreadRepository, messageRepo repository.MessageRepository, access *proxy.AccessControl, log *logger.Logger) *ThreadService {
	return &ThreadService{
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		access:      access,
		log:         log,
	}
}

type ThreadMetadata struct {
	LeadID      string
	ServiceType string
}

// CreateThreadResult carries the thread plus whether it already existed.
type CreateThreadResult struct {
	Thread        thread.Thread `json:"thread"`
	AlreadyExists bool          `json:"already_exists"`
}

// CreateThread creates the single thread for a couple/vendor pair, or returns
// the existing one. Two concurrent creators converge on the same row via the
// unique pair index.
func (s *ThreadService) CreateThread(ctx context.Context, coupleID, vendorID string, meta *ThreadMetadata) (*CreateThreadResult, error) {
	coupleID = strings.TrimSpace(coupleID)
	vendorID = strings.TrimSpace(vendorID)
	if coupleID == "" || vendorID == "" {
		return nil, fmt.Errorf("couple id and vendor id are required: %w", chat_errors.ErrInvalidInput)
	}

	if existing, err := s.threadRepo.GetByParticipants(ctx, coupleID, vendorID); err == nil {
		return &CreateThreadResult{Thread: existing, AlreadyExists: true}, nil
	} else if !errorsIsNotFound(err) {
		return nil, err
	}

	now := time.Now()
	t := thread.Thread{
		ID:        uuid.New(),
		CoupleID:  coupleID,
		VendorID:  vendorID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if meta != nil {
		if meta.LeadID != "" {
			t.LeadID.String = meta.LeadID
			t.LeadID.Valid = true
		}
		if meta.ServiceType != "" {
			t.ServiceType.String = meta.ServiceType
			t.ServiceType.Valid = true
		}
	}

	if err := s.threadRepo.Create(ctx, &t); err != nil {
		if errorsIsAlreadyExists(err) {
			// Lost the creation race; the other writer's row wins.
			existing, getErr := s.threadRepo.GetByParticipants(ctx, coupleID, vendorID)
			if getErr != nil {
				return nil, getErr
			}
			return &CreateThreadResult{Thread: existing, AlreadyExists: true}, nil
		}
		return nil, err
	}
	return &CreateThreadResult{Thread: t, AlreadyExists: false}, nil
}

// ThreadView is a thread enriched with message counts for the viewer.
type ThreadView struct {
	Thread       thread.Thread `json:"thread"`
	MessageCount int64         `json:"message_count"`
	UnreadCount  int64         `json:"unread_count"`
}

// GetThread returns one thread with viewer-relative counts. Access is
// verified and audited.
func (s *ThreadService) GetThread(ctx context.Context, threadID uuid.UUID, userID, userType string) (*ThreadView, error) {
	decision := s.access.VerifyThreadAccess(ctx, userID, userType, threadID)
	if !decision.Authorized {
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}

	total, err := s.messageRepo.CountForThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	unread, err := s.messageRepo.CountUnreadForUser(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	return &ThreadView{Thread: *decision.Thread, MessageCount: total, UnreadCount: unread}, nil
}

// ThreadPage is one page of a user's threads, most recently active first.
type ThreadPage struct {
	Threads []ThreadView `json:"threads"`
	Total   int64        `json:"total"`
	HasMore bool         `json:"has_more"`
}

func (s *ThreadService) GetThreadsForUser(ctx context.Context, userID, userType string, limit, offset int, includeInactive bool) (*ThreadPage, error) {
	ptype, err := domain.ParseParticipantType(userType)
	if err != nil {
		return nil, fmt.Errorf("invalid user type %q: %w", userType, chat_errors.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = threadPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.threadRepo.GetForUser(ctx, userID, ptype, limit, offset, includeInactive)
	if err != nil {
		return nil, err
	}

	views := make([]ThreadView, 0, len(rows))
	for _, t := range rows {
		view := ThreadView{Thread: t}
		if unread, err := s.messageRepo.CountUnreadForUser(ctx, t.ID, userID); err == nil {
			view.UnreadCount = unread
		}
		views = append(views, view)
	}

	return &ThreadPage{
		Threads: views,
		Total:   total,
		HasMore: int64(offset+len(views)) < total,
	}, nil
}

// UpdateThreadActivity bumps the thread's last-activity timestamp.
func (s *ThreadService) UpdateThreadActivity(ctx context.Context, threadID uuid.UUID) error {
	return s.threadRepo.TouchActivity(ctx, threadID, time.Now())
}

// ArchiveResult reports the outcome of ArchiveThread.
type ArchiveResult struct {
	AlreadyArchived bool `json:"already_archived"`
}

// ArchiveThread deactivates a thread. Participants only; idempotent.
// Membership is checked directly here rather than through thread access
// verification, which would reject inactive threads and break idempotency.
func (s *ThreadService) ArchiveThread(ctx context.Context, threadID uuid.UUID, userID, userType string) (*ArchiveResult, error) {
	t, err := s.requireParticipant(ctx, threadID, userID, userType)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return &ArchiveResult{AlreadyArchived: true}, nil
	}
	if err := s.threadRepo.SetActive(ctx, threadID, false); err != nil {
		return nil, err
	}
	return &ArchiveResult{AlreadyArchived: false}, nil
}

// ReactivateResult reports the outcome of ReactivateThread.
type ReactivateResult struct {
	AlreadyActive bool `json:"already_active"`
}

// ReactivateThread reverses an archive. Participants only; idempotent.
func (s *ThreadService) ReactivateThread(ctx context.Context, threadID uuid.UUID, userID, userType string) (*ReactivateResult, error) {
	t, err := s.requireParticipant(ctx, threadID, userID, userType)
	if err != nil {
		return nil, err
	}
	if t.IsActive {
		return &ReactivateResult{AlreadyActive: true}, nil
	}
	if err := s.threadRepo.SetActive(ctx, threadID, true); err != nil {
		return nil, err
	}
	return &ReactivateResult{AlreadyActive: false}, nil
}

func (s *ThreadService) requireParticipant(ctx context.Context, threadID uuid.UUID, userID, userType string) (thread.Thread, error) {
	ptype, err := domain.ParseParticipantType(userType)
	if err != nil {
		return thread.Thread{}, fmt.Errorf("invalid user type %q: %w", userType, chat_errors.ErrInvalidInput)
	}

	t, err := s.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		return thread.Thread{}, err
	}

	var member bool
	switch ptype {
	case domain.ParticipantCouple:
		member = t.CoupleID == userID
	case domain.ParticipantVendor:
		member = t.VendorID == userID
	}
	if !member {
		return thread.Thread{}, fmt.Errorf("user is not a participant in this thread: %w", chat_errors.ErrForbidden)
	}
	return t, nil
}

// UserThreadStats aggregates a user's thread and unread counts.
type UserThreadStats struct {
	TotalThreads        int64 `json:"total_threads"`
	ActiveThreads       int64 `json:"active_threads"`
	ArchivedThreads     int64 `json:"archived_threads"`
	TotalUnreadMessages int64 `json:"total_unread_messages"`
}

// GetThreadStats summarizes the user's threads. Unread totals are summed
// across active threads only.
func (s *ThreadService) GetThreadStats(ctx context.Context, userID, userType string) (*UserThreadStats, error) {
	ptype, err := domain.ParseParticipantType(userType)
	if err != nil {
		return nil, fmt.Errorf("invalid user type %q: %w", userType, chat_errors.ErrInvalidInput)
	}

	base, err := s.threadRepo.StatsForUser(ctx, userID, ptype)
	if err != nil {
		return nil, err
	}

	stats := UserThreadStats{
		TotalThreads:    base.TotalThreads,
		ActiveThreads:   base.ActiveThreads,
		ArchivedThreads: base.ArchivedThreads,
	}

	const scan = 500
	rows, _, err := s.threadRepo.GetForUser(ctx, userID, ptype, scan, 0, false)
	if err != nil {
		return nil, err
	}
	for _, t := range rows {
		unread, err := s.messageRepo.CountUnreadForUser(ctx, t.ID, userID)
		if err != nil {
			return nil, err
		}
		stats.TotalUnreadMessages += unread
	}
	return &stats, nil
}
