package fingerprints

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/autovant/RCA-Final-sub001/internal/data/repos/testutil"
	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
)

func TestIncidentFingerprintRepoGetBySessionID(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewIncidentFingerprintRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	fp := testutil.SeedFingerprint(t, ctx, tx, tenant, domain.ScopeTenantOnly, []byte(`[0.1, 0.2, 0.3]`))

	got, err := repo.GetBySessionID(dbc, fp.SessionID)
	if err != nil || got == nil {
		t.Fatalf("GetBySessionID: fp=%v err=%v", got, err)
	}
	if got.FingerprintStatus != domain.FingerprintAvailable {
		t.Fatalf("status = %s, want available", got.FingerprintStatus)
	}

	if miss, err := repo.GetBySessionID(dbc, uuid.New()); err != nil || miss != nil {
		t.Fatalf("unknown session must miss, got fp=%v err=%v", miss, err)
	}
}

func TestIncidentFingerprintRepoGetBySessionIDs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewIncidentFingerprintRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	a := testutil.SeedFingerprint(t, ctx, tx, tenant, domain.ScopeTenantOnly, []byte(`[0.1]`))
	b := testutil.SeedFingerprint(t, ctx, tx, tenant, domain.ScopeMultiTenant, []byte(`[0.2]`))

	rows, err := repo.GetBySessionIDs(dbc, []uuid.UUID{a.SessionID, b.SessionID, uuid.New()})
	if err != nil {
		t.Fatalf("GetBySessionIDs: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (unknown session silently skipped)", len(rows))
	}

	empty, err := repo.GetBySessionIDs(dbc, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("GetBySessionIDs(nil) = %v, %v", empty, err)
	}
}

func TestIncidentFingerprintRepoMarkUnavailable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewIncidentFingerprintRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	// nil embedding seeds a degraded fingerprint with no safeguard notes.
	fp := testutil.SeedFingerprint(t, ctx, tx, tenant, domain.ScopeTenantOnly, nil)

	if err := repo.MarkUnavailable(dbc, fp.ID, "embedding vector unreadable"); err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}

	got, err := repo.GetBySessionID(dbc, fp.SessionID)
	if err != nil || got == nil {
		t.Fatalf("refetch: fp=%v err=%v", got, err)
	}
	if got.FingerprintStatus != domain.FingerprintMissing {
		t.Fatalf("status = %s, want missing", got.FingerprintStatus)
	}
	var notes map[string]string
	if err := json.Unmarshal(got.SafeguardNotes, &notes); err != nil {
		t.Fatalf("safeguard notes: %v", err)
	}
	if notes["fingerprint"] != "embedding vector unreadable" {
		t.Fatalf("safeguard note = %q", notes["fingerprint"])
	}
	if !got.UpdatedAt.After(fp.UpdatedAt) {
		t.Fatal("updated_at not refreshed")
	}
}

func TestCrossWorkspaceAuditRepoCreate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewCrossWorkspaceAuditRepo(db, testutil.Logger(t))

	sessionID := uuid.New()
	workspaces, _ := json.Marshal([]uuid.UUID{uuid.New(), uuid.New()})
	sessions, _ := json.Marshal([]uuid.UUID{uuid.New(), uuid.New()})
	audit := &domain.CrossWorkspaceAudit{
		ID:                uuid.New(),
		AuditToken:        uuid.NewString(),
		SourceWorkspaceID: uuid.New(),
		SourceSessionID:   &sessionID,
		MatchedWorkspaces: workspaces,
		MatchedSessions:   sessions,
	}
	if err := repo.Create(dbc, audit); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var stored domain.CrossWorkspaceAudit
	if err := tx.Where("audit_token = ?", audit.AuditToken).First(&stored).Error; err != nil {
		t.Fatalf("refetch: %v", err)
	}
	var storedWorkspaces []uuid.UUID
	if err := json.Unmarshal(stored.MatchedWorkspaces, &storedWorkspaces); err != nil {
		t.Fatalf("matched workspaces: %v", err)
	}
	if len(storedWorkspaces) != 2 {
		t.Fatalf("stored audit = %+v", stored)
	}
}
