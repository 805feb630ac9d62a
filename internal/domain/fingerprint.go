package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// VisibilityScope controls which workspaces may see a fingerprint in
// similarity results.
type VisibilityScope string

const (
	ScopeTenantOnly  VisibilityScope = "tenant_only"
	ScopeMultiTenant VisibilityScope = "multi_tenant"
)

// FingerprintStatus tracks whether a fingerprint can serve similarity queries.
type FingerprintStatus string

const (
	FingerprintAvailable FingerprintStatus = "available"
	FingerprintDegraded  FingerprintStatus = "degraded"
	FingerprintMissing   FingerprintStatus = "missing"
)

// IncidentFingerprint is the stored summary plus embedding representing one
// RCA session. Status "available" implies the embedding is present.
type IncidentFingerprint struct {
	ID                 uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID          uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`
	TenantID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	EmbeddingVector    datatypes.JSON    `gorm:"column:embedding_vector;type:jsonb" json:"embedding_vector,omitempty"`
	SummaryText        string            `gorm:"column:summary_text;type:varchar(4096)" json:"summary_text"`
	DetectedPlatform   Platform          `gorm:"column:detected_platform;not null;default:'unknown'" json:"detected_platform"`
	RelevanceThreshold float64           `gorm:"column:relevance_threshold;not null;default:0.7" json:"relevance_threshold"`
	VisibilityScope    VisibilityScope   `gorm:"column:visibility_scope;not null;default:'tenant_only'" json:"visibility_scope"`
	FingerprintStatus  FingerprintStatus `gorm:"column:fingerprint_status;not null;default:'available'" json:"fingerprint_status"`
	SafeguardNotes     datatypes.JSON    `gorm:"column:safeguard_notes;type:jsonb" json:"safeguard_notes"`
	OccurredAt         *time.Time        `gorm:"column:occurred_at" json:"occurred_at,omitempty"`
	CreatedAt          time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (IncidentFingerprint) TableName() string { return "incident_fingerprint" }

// RelatedIncidentMatch is one similarity hit, safe to serialize directly.
type RelatedIncidentMatch struct {
	SessionID         uuid.UUID         `json:"session_id"`
	TenantID          uuid.UUID         `json:"tenant_id"`
	Relevance         float64           `json:"relevance"`
	Summary           string            `json:"summary"`
	DetectedPlatform  Platform          `json:"detected_platform"`
	FingerprintStatus FingerprintStatus `json:"fingerprint_status"`
	Safeguards        []string          `json:"safeguards"`
	OccurredAt        *time.Time        `json:"occurred_at,omitempty"`
}

// IsCrossWorkspace reports whether the match belongs to a different workspace
// than the querying one.
func (m RelatedIncidentMatch) IsCrossWorkspace(sourceTenant uuid.UUID) bool {
	return m.TenantID != sourceTenant
}

// RelatedIncidentSearchResult is the full response of a related-incident
// query. AuditToken is set only when at least one cross-workspace match
// is present.
type RelatedIncidentSearchResult struct {
	Results           []RelatedIncidentMatch `json:"results"`
	AuditToken        *string                `json:"audit_token,omitempty"`
	SourceSessionID   *uuid.UUID             `json:"source_session_id,omitempty"`
	SourceWorkspaceID *uuid.UUID             `json:"source_workspace_id,omitempty"`
}

// CrossWorkspacePairs returns the matches whose tenant differs from the
// source workspace. Empty when no source workspace is recorded.
func (r RelatedIncidentSearchResult) CrossWorkspacePairs() []RelatedIncidentMatch {
	if r.SourceWorkspaceID == nil {
		return nil
	}
	var out []RelatedIncidentMatch
	for _, m := range r.Results {
		if m.IsCrossWorkspace(*r.SourceWorkspaceID) {
			out = append(out, m)
		}
	}
	return out
}

// CrossWorkspaceAudit is the persisted audit trail row minted when a search
// surfaces matches from foreign workspaces.
type CrossWorkspaceAudit struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AuditToken        string         `gorm:"column:audit_token;not null;uniqueIndex" json:"audit_token"`
	SourceWorkspaceID uuid.UUID      `gorm:"type:uuid;not null;index" json:"source_workspace_id"`
	SourceSessionID   *uuid.UUID     `gorm:"type:uuid" json:"source_session_id,omitempty"`
	MatchedWorkspaces datatypes.JSON `gorm:"column:matched_workspaces;type:jsonb" json:"matched_workspaces"`
	MatchedSessions   datatypes.JSON `gorm:"column:matched_sessions;type:jsonb" json:"matched_sessions"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (CrossWorkspaceAudit) TableName() string { return "cross_workspace_audit" }
