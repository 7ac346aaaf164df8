package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/user/secaudit/pkg/engine"
)

func TestUpdateFindingSeverityRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	sc := seedScan(t, svc, "")

	f, err := svc.CreateFinding(ctx, alice, sc.ID, FindingInput{Title: "Stored XSS in comments", Severity: engine.SeverityHigh})
	if err != nil {
		t.Fatalf("CreateFinding failed: %v", err)
	}
	if f.Provenance != engine.ProvenanceManual || f.Status != engine.StatusOpen {
		t.Errorf("Unexpected manual finding %+v", f)
	}

	// 1. Downgrade without justification
	low := engine.SeverityLow
	if _, err := svc.UpdateFinding(ctx, alice, f.ID, FindingUpdate{Severity: &low}); !errors.Is(err, ErrJustificationRequired) {
		t.Errorf("Expected ErrJustificationRequired, got %v", err)
	}
	if h, _ := svc.FindingHistory(ctx, f.ID); len(h) != 0 {
		t.Errorf("History written for rejected update: %+v", h)
	}

	// 2. Downgrade with justification
	if _, err := svc.UpdateFinding(ctx, alice, f.ID, FindingUpdate{Severity: &low, Justification: "Only admins can post comments"}); err != nil {
		t.Fatalf("UpdateFinding failed: %v", err)
	}

	// 3. Upgrade and status change need no justification
	critical := engine.SeverityCritical
	confirmed := engine.StatusConfirmed
	got, err := svc.UpdateFinding(ctx, alice, f.ID, FindingUpdate{Severity: &critical, Status: &confirmed})
	if err != nil {
		t.Fatalf("UpdateFinding failed: %v", err)
	}
	if got.Severity != engine.SeverityCritical || got.Status != engine.StatusConfirmed {
		t.Errorf("Update not applied: %+v", got)
	}

	h, _ := svc.FindingHistory(ctx, f.ID)
	if len(h) != 3 {
		t.Fatalf("Expected 3 history rows, got %d", len(h))
	}
	if h[0].Field != "severity" || h[0].OldValue != "HIGH" || h[0].NewValue != "LOW" || h[0].Justification == "" {
		t.Errorf("Unexpected first history row %+v", h[0])
	}
	if h[2].Field != "status" || h[2].NewValue != "CONFIRMED" || h[2].ActorID != "alice" {
		t.Errorf("Unexpected status history row %+v", h[2])
	}

	// 4. Text edits leave no history
	title := "Stored XSS in comment preview"
	if _, err := svc.UpdateFinding(ctx, alice, f.ID, FindingUpdate{Title: &title}); err != nil {
		t.Fatalf("UpdateFinding failed: %v", err)
	}
	if h, _ := svc.FindingHistory(ctx, f.ID); len(h) != 3 {
		t.Errorf("Expected history unchanged, got %d rows", len(h))
	}
}

func TestCreateFindingValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	sc := seedScan(t, svc, "")

	if _, err := svc.CreateFinding(ctx, alice, sc.ID, FindingInput{Title: "x", Severity: "SEVERE"}); err == nil {
		t.Error("Expected invalid severity error")
	}
	if _, err := svc.CreateFinding(ctx, alice, sc.ID, FindingInput{Severity: engine.SeverityLow}); err == nil {
		t.Error("Expected missing title error")
	}
	if _, err := svc.CreateFinding(ctx, alice, "missing", FindingInput{Title: "x", Severity: engine.SeverityLow}); err == nil {
		t.Error("Expected unknown scan error")
	}
}

func TestManualFindingsSurviveRescan(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	sc := seedScan(t, svc, fixtureRoot(t))

	manual, err := svc.CreateFinding(ctx, alice, sc.ID, FindingInput{Title: "IDOR on /orders", Severity: engine.SeverityHigh})
	if err != nil {
		t.Fatalf("CreateFinding failed: %v", err)
	}
	if _, err := svc.RunScan(ctx, alice, sc.ID); err != nil {
		t.Fatalf("first RunScan failed: %v", err)
	}
	forceStatus(t, st, sc.ID, "IN_PROGRESS")
	if _, err := svc.RunScan(ctx, alice, sc.ID); err != nil {
		t.Fatalf("second RunScan failed: %v", err)
	}

	findings, _ := svc.ListFindings(ctx, sc.ID)
	if len(findings) != 4 {
		t.Fatalf("Expected 3 engine + 1 manual findings, got %d", len(findings))
	}
	if _, err := svc.GetFinding(ctx, manual.ID); err != nil {
		t.Errorf("Manual finding lost: %v", err)
	}

	if err := svc.DeleteFinding(ctx, manual.ID); err != nil {
		t.Fatalf("DeleteFinding failed: %v", err)
	}
	findings, _ = svc.ListFindings(ctx, sc.ID)
	if len(findings) != 3 {
		t.Errorf("Expected 3 findings after delete, got %d", len(findings))
	}
}
