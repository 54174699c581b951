package domain

import "time"

// AuditLog records operator actions against player accounts and catalog data.
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	ActorID   int64                  `db:"actor_id" json:"actor_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	TargetID  int64                  `db:"target_id" json:"target_id"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

const (
	AuditCategoryAuth    = "auth"
	AuditCategoryPlayer  = "player"
	AuditCategoryCatalog = "catalog"
	AuditCategorySystem  = "system"
)

const (
	AuditActionLogin      = "login"
	AuditActionBan        = "ban_user"
	AuditActionUnban      = "unban_user"
	AuditActionSetCoins   = "set_coins"
	AuditActionAddCoins   = "add_coins"
	AuditActionCreate     = "create"
	AuditActionUpdate     = "update"
	AuditActionDelete     = "delete"
	AuditActionUpload     = "upload"
	AuditActionResetDaily = "reset_daily"
)
