package service

import (
	"context"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

// AuditService records operator actions. Failures are logged, never
// returned.
type AuditService struct {
	store store.Store
}

// NewAuditService creates a new audit service
func NewAuditService(st store.Store) *AuditService {
	return &AuditService{store: st}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, actorID int64, action, category string, targetID int64, details map[string]interface{}) {
	s.LogRequest(ctx, actorID, action, category, targetID, "", details)
}

// LogRequest creates an audit log entry carrying the caller's IP.
func (s *AuditService) LogRequest(ctx context.Context, actorID int64, action, category string, targetID int64, ip string, details map[string]interface{}) {
	if s == nil {
		return
	}
	entry := &domain.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Category: category,
		TargetID: targetID,
		Details:  details,
		IP:       ip,
	}
	if err := s.store.Audit().Create(ctx, entry); err != nil {
		logger.WithContext(ctx).Error("failed to create audit log", "error", err, "action", action, "actor_id", actorID)
	}
}

// LogCatalog records a create/update/delete on an admin collection.
func (s *AuditService) LogCatalog(ctx context.Context, actorID int64, action, collection string, id int64) {
	s.Log(ctx, actorID, action, domain.AuditCategoryCatalog, id, map[string]interface{}{"collection": collection})
}

// Recent returns the latest audit entries.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.store.Audit().Recent(ctx, limit)
}
