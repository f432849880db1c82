package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wedhabesha-chat/internal/domain"
	"wedhabesha-chat/internal/domain/audit"
	"wedhabesha-chat/internal/domain/message"
	"wedhabesha-chat/internal/domain/thread"
	"wedhabesha-chat/internal/repository"
	chat_errors "wedhabesha-chat/pkg/errors"
	"wedhabesha-chat/pkg/logger"

	"github.com/google/uuid"
)

// Denial reasons are part of the API contract; callers and tests match on them.
const (
	ReasonInvalidParams  = "Invalid parameters"
	ReasonInvalidType    = "Invalid user type"
	ReasonThreadNotFound = "Thread not found"
	ReasonThreadInactive = "Thread is inactive"
	ReasonNotParticipant = "User is not a participant in this thread"
	ReasonMessageMissing = "Message not found"
	ReasonMessageDeleted = "Message is deleted"
	ReasonNotSender      = "Only the sender can delete this message"
	ReasonSystemError    = "Access check failed: system error"
)

// Decision is the outcome of an authorization check. Reason is always
// non-empty when Authorized is false.
type Decision struct {
	Authorized bool
	Thread     *thread.Thread
	Message    *message.Message
	Reason     string
}

// AccessControl authorizes thread and message operations against participant
// identity and thread state, and writes an audit trail for every check.
// Storage failures deny (fail closed); audit failures never affect the
// returned decision.
type AccessControl struct {
	threadRepo  repository.ThreadRepository
	messageRepo repository.MessageRepository
	auditRepo   repository.AuditRepository
	log         *logger.Logger
}

func NewAccessControl(threadRepo repository.ThreadRepository, messageRepo repository.MessageRepository, auditRepo repository.AuditRepository, log *logger.Logger) *AccessControl {
	return &AccessControl{
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		auditRepo:   auditRepo,
		log:         log,
	}
}

// VerifyThreadAccess checks that the user is the active thread's participant
// on the side their type claims.
func (a *AccessControl) VerifyThreadAccess(ctx context.Context, userID, userType string, threadID uuid.UUID) Decision {
	if userID == "" || userType == "" || threadID == uuid.Nil {
		return a.deny(ctx, userID, userType, threadID, uuid.Nil, ReasonInvalidParams)
	}

	ptype, err := domain.ParseParticipantType(userType)
	if err != nil {
		return a.deny(ctx, userID, userType, threadID, uuid.Nil, ReasonInvalidType)
	}

	t, err := a.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return a.deny(ctx, userID, userType, threadID, uuid.Nil, ReasonThreadNotFound)
		}
		return a.fail(ctx, userID, userType, threadID, uuid.Nil, err)
	}

	return a.decideForThread(ctx, userID, userType, ptype, &t, uuid.Nil)
}

// VerifyMessageAccess checks access to one message by joining through its
// owning thread. Soft-deleted messages are never accessible.
func (a *AccessControl) VerifyMessageAccess(ctx context.Context, userID, userType string, messageID uuid.UUID) Decision {
	if userID == "" || userType == "" || messageID == uuid.Nil {
		return a.deny(ctx, userID, userType, uuid.Nil, messageID, ReasonInvalidParams)
	}

	ptype, err := domain.ParseParticipantType(userType)
	if err != nil {
		return a.deny(ctx, userID, userType, uuid.Nil, messageID, ReasonInvalidType)
	}

	m, err := a.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return a.deny(ctx, userID, userType, uuid.Nil, messageID, ReasonMessageMissing)
		}
		return a.fail(ctx, userID, userType, uuid.Nil, messageID, err)
	}
	if m.IsDeleted {
		return a.deny(ctx, userID, userType, m.ThreadID, messageID, ReasonMessageDeleted)
	}

	t, err := a.threadRepo.GetByID(ctx, m.ThreadID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return a.deny(ctx, userID, userType, m.ThreadID, messageID, ReasonThreadNotFound)
		}
		return a.fail(ctx, userID, userType, m.ThreadID, messageID, err)
	}

	decision := a.decideForThread(ctx, userID, userType, ptype, &t, messageID)
	if decision.Authorized {
		decision.Message = &m
	}
	return decision
}

func (a *AccessControl) decideForThread(ctx context.Context, userID, userType string, ptype domain.ParticipantType, t *thread.Thread, messageID uuid.UUID) Decision {
	if !t.IsActive {
		return a.deny(ctx, userID, userType, t.ID, messageID, ReasonThreadInactive)
	}

	var participant string
	switch ptype {
	case domain.ParticipantCouple:
		participant = t.CoupleID
	case domain.ParticipantVendor:
		participant = t.VendorID
	}
	if participant != userID {
		return a.deny(ctx, userID, userType, t.ID, messageID, ReasonNotParticipant)
	}

	a.record(ctx, userID, userType, t.ID, messageID, domain.AccessGranted, "access granted")
	return Decision{Authorized: true, Thread: t}
}

// GetAccessLogs returns the user's most recent audit entries, optionally
// filtered by result.
func (a *AccessControl) GetAccessLogs(ctx context.Context, userID string, limit int, resultFilter string) ([]audit.AccessLogEntry, error) {
	if userID == "" {
		return nil, chat_errors.ErrInvalidInput
	}
	return a.auditRepo.List(ctx, userID, limit, resultFilter)
}

// GetSecurityStats aggregates audit results over the trailing period. An
// empty userID aggregates across all users.
func (a *AccessControl) GetSecurityStats(ctx context.Context, userID string, periodDays int) (audit.SecurityStats, error) {
	if periodDays <= 0 {
		periodDays = 7
	}
	since := time.Now().AddDate(0, 0, -periodDays)
	stats, err := a.auditRepo.Stats(ctx, userID, since)
	if err != nil {
		return audit.SecurityStats{}, err
	}
	stats.PeriodDays = periodDays
	return stats, nil
}

// SuspiciousActivity reports whether a user's denied-access count within the
// window crossed the threshold.
type SuspiciousActivity struct {
	Suspicious  bool  `json:"suspicious"`
	DeniedCount int64 `json:"denied_count"`
	Threshold   int   `json:"threshold"`
}

func (a *AccessControl) CheckSuspiciousActivity(ctx context.Context, userID string, deniedThreshold int, windowMinutes int) (SuspiciousActivity, error) {
	if userID == "" {
		return SuspiciousActivity{}, chat_errors.ErrInvalidInput
	}
	if deniedThreshold <= 0 {
		deniedThreshold = 10
	}
	if windowMinutes <= 0 {
		windowMinutes = 60
	}

	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)
	count, err := a.auditRepo.CountDenied(ctx, userID, since)
	if err != nil {
		return SuspiciousActivity{}, err
	}
	return SuspiciousActivity{
		Suspicious:  count >= int64(deniedThreshold),
		DeniedCount: count,
		Threshold:   deniedThreshold,
	}, nil
}

// RecordDenial writes an audit denial for a rule enforced outside the
// controller, such as the sender-only delete restriction. The trail must see
// those refusals too.
func (a *AccessControl) RecordDenial(ctx context.Context, userID, userType string, threadID, messageID uuid.UUID, reason string) {
	a.record(ctx, userID, userType, threadID, messageID, domain.AccessDenied, reason)
}

func (a *AccessControl) deny(ctx context.Context, userID, userType string, threadID, messageID uuid.UUID, reason string) Decision {
	a.record(ctx, userID, userType, threadID, messageID, domain.AccessDenied, reason)
	return Decision{Authorized: false, Reason: reason}
}

func (a *AccessControl) fail(ctx context.Context, userID, userType string, threadID, messageID uuid.UUID, cause error) Decision {
	if a.log != nil {
		a.log.Errorf("access check storage failure: %v", cause)
	}
	a.record(ctx, userID, userType, threadID, messageID, domain.AccessError, ReasonSystemError)
	return Decision{Authorized: false, Reason: ReasonSystemError}
}

// record appends an audit entry. Failures are swallowed: the trail is a side
// channel and must never abort the primary operation.
func (a *AccessControl) record(ctx context.Context, userID, userType string, threadID, messageID uuid.UUID, result domain.AccessResult, reason string) {
	if a.auditRepo == nil {
		return
	}

	metadata, _ := json.Marshal(map[string]string{"user_type": userType})
	entry := &audit.AccessLogEntry{
		ID:        uuid.New(),
		UserID:    userID,
		UserType:  userType,
		Result:    string(result),
		Reason:    reason,
		Metadata:  string(metadata),
		CreatedAt: time.Now(),
	}
	if threadID != uuid.Nil {
		entry.ThreadID = uuid.NullUUID{UUID: threadID, Valid: true}
	}
	if messageID != uuid.Nil {
		entry.MessageID = uuid.NullUUID{UUID: messageID, Valid: true}
	}

	if err := a.auditRepo.Create(ctx, entry); err != nil && a.log != nil {
		a.log.Warnf("audit write failed: %v", err)
	}
}
