package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

// EventPublisher fans row changes out to realtime subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, table, recordID string, data interface{}) error
}

type auditLogRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditMeta identifies who performed a write.
type AuditMeta struct {
	UserID    string
	IPAddress string
	UserAgent string
}

func publishEvent(ctx context.Context, publisher EventPublisher, logger *zap.Logger, eventType, table, id string, data interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, eventType, table, id, data); err != nil {
		logger.Warn("publish realtime event failed", zap.String("table", table), zap.String("id", id), zap.Error(err))
	}
}

func recordAudit(ctx context.Context, repo auditLogRepository, logger *zap.Logger, meta AuditMeta, action, resource, resourceID string, newValues interface{}) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if meta.UserID != "" {
		uid := meta.UserID
		entry.UserID = &uid
	}
	if resourceID != "" {
		rid := resourceID
		entry.ResourceID = &rid
	}
	if newValues != nil {
		if payload, err := json.Marshal(newValues); err == nil {
			entry.NewValues = payload
		}
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
