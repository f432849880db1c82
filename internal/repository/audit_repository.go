package repository

import (
	"context"
	"time"

	"wedhabesha-chat/internal/domain"
	"wedhabesha-chat/internal/domain/audit"

	"gorm.io/gorm"
)

const defaultAuditCap = 1000

type PostgresAuditRepository struct {
	db         *gorm.DB
	perUserCap int
}

func NewAuditRepository(db *gorm.DB, perUserCap int) AuditRepository {
	if perUserCap <= 0 {
		perUserCap = defaultAuditCap
	}
	return &PostgresAuditRepository{db: db, perUserCap: perUserCap}
}

// Create appends an entry and prunes the oldest rows beyond the per-user cap.
// Pruning failures are ignored; the trail is bounded, not exact.
func (r *PostgresAuditRepository) Create(ctx context.Context, e *audit.AccessLogEntry) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return err
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&audit.AccessLogEntry{}).
		Where("user_id = ?", e.UserID).
		Count(&count).Error; err != nil {
		return nil
	}
	if count > int64(r.perUserCap) {
		excess := count - int64(r.perUserCap)
		subQuery := r.db.
			Model(&audit.AccessLogEntry{}).
			Select("id").
			Where("user_id = ?", e.UserID).
			Order("created_at ASC").
			Limit(int(excess))
		r.db.WithContext(ctx).
			Where("id IN (?)", subQuery).
			Delete(&audit.AccessLogEntry{})
	}
	return nil
}

func (r *PostgresAuditRepository) List(ctx context.Context, userID string, limit int, resultFilter string) ([]audit.AccessLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if resultFilter != "" {
		q = q.Where("result = ?", resultFilter)
	}

	var entries []audit.AccessLogEntry
	err := q.Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Stats aggregates results since the given time. An empty userID aggregates
// across all users.
func (r *PostgresAuditRepository) Stats(ctx context.Context, userID string, since time.Time) (audit.SecurityStats, error) {
	var stats audit.SecurityStats
	base := r.db.WithContext(ctx).
		Model(&audit.AccessLogEntry{}).
		Where("created_at >= ?", since)
	if userID != "" {
		base = base.Where("user_id = ?", userID)
	}

	type row struct {
		Result string
		Count  int64
	}
	var rows []row
	if err := base.Select("result, COUNT(*) as count").Group("result").Scan(&rows).Error; err != nil {
		return audit.SecurityStats{}, err
	}

	for _, rw := range rows {
		switch domain.AccessResult(rw.Result) {
		case domain.AccessGranted:
			stats.Granted = rw.Count
		case domain.AccessDenied:
			stats.Denied = rw.Count
		case domain.AccessError:
			stats.Errors = rw.Count
		}
		stats.Total += rw.Count
	}
	return stats, nil
}

func (r *PostgresAuditRepository) CountDenied(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&audit.AccessLogEntry{}).
		Where("user_id = ? AND result = ? AND created_at >= ?", userID, string(domain.AccessDenied), since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
