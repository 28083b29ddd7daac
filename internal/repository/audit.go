package repository

import (
	"context"
	"time"

	"aviator/internal/models"

	"github.com/google/uuid"
)

// RecordAudit appends an audit entry. Audit failures are logged but never
// surfaced: a broken audit sink must not block money movement.
func (r *Repository) RecordAudit(ctx context.Context, event string, userID int64, details string) {
	entry := &models.AuditLog{
		Ref:       uuid.New().String(),
		Event:     event,
		UserID:    userID,
		Details:   details,
		CreatedAt: time.Now(),
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.Errorf("Failed to record audit event %s for user %d: %v", event, userID, err)
	}
}
