// Package audit writes append-only audit records for sensitive actions.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"launchkit/api/internal/store"
)

// Action names recorded in audit_logs.action.
const (
	SiteCreate        = "site.create"
	SiteUpdate        = "site.update"
	SiteDelete        = "site.delete"
	CampaignCreate    = "campaign.create"
	CampaignSave      = "campaign.save"
	CampaignPublish   = "campaign.publish"
	CampaignUnpublish = "campaign.unpublish"
	CampaignDelete    = "campaign.delete"
	CampaignRestore   = "campaign.restore_revision"
	WorkspaceCreate   = "workspace.create"
	WorkspaceUpdate   = "workspace.update"
	WorkspaceDelete   = "workspace.delete"
	MemberRoleUpdate  = "member.role_update"
	MemberRemove      = "member.remove"
	InvitationCreate  = "invitation.create"
	InvitationRevoke  = "invitation.revoke"
	InvitationAccept  = "invitation.accept"
	AssetUpload       = "asset.upload"
	AssetDelete       = "asset.delete"
	UserAppRoleUpdate = "user.app_role_update"
	UserSignUp        = "user.sign_up"
	UserPasswordReset = "user.password_reset"
)

type Entry struct {
	Action     string
	ActorID    string
	TargetID   string
	TargetType string
	Metadata   map[string]any
	IPAddress  string
}

type Writer interface {
	InsertAuditLog(ctx context.Context, entry store.AuditLogEntry) error
}

// Recorder makes one insert attempt per entry. Failures are logged and
// never returned.
type Recorder struct {
	writer  Writer
	logger  zerolog.Logger
	timeout time.Duration
}

func NewRecorder(writer Writer, logger zerolog.Logger) *Recorder {
	return &Recorder{writer: writer, logger: logger, timeout: 5 * time.Second}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.writer == nil {
		return
	}
	metadata := json.RawMessage(`{}`)
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			r.logger.Error().Err(err).Str("action", entry.Action).Msg("encode audit metadata")
		} else {
			metadata = encoded
		}
	}

	// Detached from request cancellation.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	err := r.writer.InsertAuditLog(writeCtx, store.AuditLogEntry{
		Action:           entry.Action,
		ActorID:          entry.ActorID,
		TargetEntityID:   entry.TargetID,
		TargetEntityType: entry.TargetType,
		Metadata:         metadata,
		IPAddress:        entry.IPAddress,
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("action", entry.Action).
			Str("actor_id", entry.ActorID).
			Str("target_id", entry.TargetID).
			Msg("audit log write failed")
	}
}
