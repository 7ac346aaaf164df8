package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/lifecycle"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedScan(t *testing.T, s *Store, assignee string) *Scan {
	t.Helper()
	ctx := context.Background()
	p := &Project{Name: "shop", OwnerID: assignee, SourcePath: "/src/shop"}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	sc := &Scan{ProjectID: p.ID, Name: "Q3 audit", AssignedTo: assignee}
	if err := s.CreateScan(ctx, sc); err != nil {
		t.Fatalf("CreateScan failed: %v", err)
	}
	return sc
}

func result(sevs ...engine.Severity) *engine.ScanResult {
	var findings []engine.Finding
	for i, sev := range sevs {
		findings = append(findings, engine.Finding{
			Title:               "finding",
			Severity:            sev,
			AffectedFileOrRoute: string(rune('a'+i)) + ".js",
			Compliance:          engine.Compliance{OWASPTop10: "A03:2021-Injection"},
		})
	}
	sum := engine.Summarize(findings)
	return &engine.ScanResult{Timestamp: time.Now().UTC(), Findings: findings, Summary: sum, RiskScore: sum.RiskScore()}
}

func TestCreateScanStartsPlanned(t *testing.T) {
	s := openTestStore(t)
	sc := seedScan(t, s, "alice")
	got, err := s.GetScan(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("GetScan failed: %v", err)
	}
	if got.Status != lifecycle.Planned || got.Version != 1 {
		t.Errorf("Expected PLANNED v1, got %s v%d", got.Status, got.Version)
	}

	err = s.CreateScan(context.Background(), &Scan{ProjectID: "missing", Name: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown project, got %v", err)
	}
}

func TestApplyRunReplacesOnlyEngineFindings(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sc := seedScan(t, s, "alice")

	manual := &FindingRecord{ScanID: sc.ID, Title: "IDOR on /orders", Severity: engine.SeverityHigh, Provenance: engine.ProvenanceManual}
	if err := s.CreateFinding(ctx, manual); err != nil {
		t.Fatalf("CreateFinding failed: %v", err)
	}

	// 1. First run
	sc, err := s.SetStatus(ctx, sc.ID, sc.Version, lifecycle.InProgress)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	sc, err = s.ApplyRun(ctx, sc.ID, sc.Version, result(engine.SeverityCritical, engine.SeverityLow), lifecycle.Review)
	if err != nil {
		t.Fatalf("ApplyRun failed: %v", err)
	}
	if sc.Status != lifecycle.Review || sc.Version != 3 {
		t.Errorf("Expected REVIEW v3, got %s v%d", sc.Status, sc.Version)
	}
	findings, _ := s.ListFindings(ctx, sc.ID)
	if len(findings) != 3 {
		t.Fatalf("Expected 3 findings, got %d", len(findings))
	}
	for _, f := range findings {
		if f.Provenance == engine.ProvenanceEngine && f.Compliance.OWASPTop10 != "A03:2021-Injection" {
			t.Errorf("Compliance not persisted: %+v", f.Compliance)
		}
	}

	// 2. Re-run replaces engine output, keeps the manual finding
	sc, _ = s.SetStatus(ctx, sc.ID, sc.Version, lifecycle.InProgress)
	if _, err := s.ApplyRun(ctx, sc.ID, sc.Version, result(engine.SeverityMedium), lifecycle.Review); err != nil {
		t.Fatalf("second ApplyRun failed: %v", err)
	}
	findings, _ = s.ListFindings(ctx, sc.ID)
	if len(findings) != 2 {
		t.Fatalf("Expected 2 findings after re-run, got %d", len(findings))
	}
	var sawManual bool
	for _, f := range findings {
		if f.ID == manual.ID {
			sawManual = true
		}
	}
	if !sawManual {
		t.Error("Manual finding was removed by re-run")
	}

	sum, err := s.GetRiskSummary(ctx, sc.ID)
	if err != nil {
		t.Fatalf("GetRiskSummary failed: %v", err)
	}
	if sum.RiskScore != 2 || sum.Medium != 1 || sum.Critical != 0 {
		t.Errorf("Summary not upserted: %+v", sum)
	}
}

func TestApplyRunIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sc := seedScan(t, s, "alice")
	sc, _ = s.SetStatus(ctx, sc.ID, sc.Version, lifecycle.InProgress)
	sc, err := s.ApplyRun(ctx, sc.ID, sc.Version, result(engine.SeverityHigh), lifecycle.Review)
	if err != nil {
		t.Fatalf("ApplyRun failed: %v", err)
	}
	sc, _ = s.SetStatus(ctx, sc.ID, sc.Version, lifecycle.InProgress)

	// Fail every insert into the findings table
	err = s.db.Callback().Create().Before("gorm:create").Register("test:fail_findings", func(tx *gorm.DB) {
		if tx.Statement.Table == "findings" {
			tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("Failed to register callback: %v", err)
	}

	if _, err := s.ApplyRun(ctx, sc.ID, sc.Version, result(engine.SeverityCritical, engine.SeverityCritical), lifecycle.Review); err == nil {
		t.Fatal("Expected ApplyRun to fail")
	}

	after, _ := s.GetScan(ctx, sc.ID)
	if after.Status != lifecycle.InProgress || after.Version != sc.Version {
		t.Errorf("Scan changed despite rollback: %s v%d", after.Status, after.Version)
	}
	findings, _ := s.ListFindings(ctx, sc.ID)
	if len(findings) != 1 || findings[0].Severity != engine.SeverityHigh {
		t.Errorf("Previous findings not preserved: %+v", findings)
	}
	sum, _ := s.GetRiskSummary(ctx, sc.ID)
	if sum.RiskScore != 5 {
		t.Errorf("Summary changed despite rollback: %+v", sum)
	}
}

func TestSetStatusVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sc := seedScan(t, s, "alice")

	if _, err := s.SetStatus(ctx, sc.ID, sc.Version+7, lifecycle.Scoping); !errors.Is(err, ErrStaleVersion) {
		t.Errorf("Expected ErrStaleVersion, got %v", err)
	}
	if _, err := s.SetStatus(ctx, "nope", 1, lifecycle.Scoping); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	got, err := s.SetStatus(ctx, sc.ID, sc.Version, lifecycle.InProgress)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if got.StartedAt == nil {
		t.Error("Expected StartedAt to be set when entering IN_PROGRESS")
	}
}

func TestDeleteScanCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sc := seedScan(t, s, "alice")
	sc, _ = s.SetStatus(ctx, sc.ID, sc.Version, lifecycle.InProgress)
	if _, err := s.ApplyRun(ctx, sc.ID, sc.Version, result(engine.SeverityLow), lifecycle.Review); err != nil {
		t.Fatalf("ApplyRun failed: %v", err)
	}
	findings, _ := s.ListFindings(ctx, sc.ID)
	f := findings[0]
	f.Status = engine.StatusFixed
	if err := s.UpdateFinding(ctx, &f, []FindingHistory{{FindingID: f.ID, ScanID: sc.ID, Field: "status", OldValue: "OPEN", NewValue: "FIXED"}}); err != nil {
		t.Fatalf("UpdateFinding failed: %v", err)
	}

	if err := s.DeleteScan(ctx, sc.ID); err != nil {
		t.Fatalf("DeleteScan failed: %v", err)
	}
	if _, err := s.GetScan(ctx, sc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Scan still present: %v", err)
	}
	if rest, _ := s.ListFindings(ctx, sc.ID); len(rest) != 0 {
		t.Errorf("Findings not cascaded: %d", len(rest))
	}
	if h, _ := s.History(ctx, f.ID); len(h) != 0 {
		t.Errorf("History not cascaded: %d", len(h))
	}
	if _, err := s.GetRiskSummary(ctx, sc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Summary not cascaded: %v", err)
	}
}

func TestListFindingsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sc := seedScan(t, s, "alice")
	base := time.Now().UTC()
	for i, title := range []string{"old", "mid", "new"} {
		f := &FindingRecord{ScanID: sc.ID, Title: title, Severity: engine.SeverityLow, Provenance: engine.ProvenanceManual, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.CreateFinding(ctx, f); err != nil {
			t.Fatalf("CreateFinding failed: %v", err)
		}
	}
	findings, _ := s.ListFindings(ctx, sc.ID)
	if len(findings) != 3 || findings[0].Title != "new" || findings[2].Title != "old" {
		t.Errorf("Unexpected order: %+v", findings)
	}
}

func TestListFindingsKeepsEngineOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sc := seedScan(t, s, "alice")
	sc, _ = s.SetStatus(ctx, sc.ID, sc.Version, lifecycle.InProgress)

	run := result(engine.SeverityLow, engine.SeverityCritical, engine.SeverityMedium, engine.SeverityHigh)
	for i := range run.Findings {
		// Stamped microseconds apart, as the analyzers do
		run.Findings[i].Timestamp = run.Timestamp.Add(time.Duration(len(run.Findings)-i) * time.Microsecond)
	}
	if _, err := s.ApplyRun(ctx, sc.ID, sc.Version, run, lifecycle.Review); err != nil {
		t.Fatalf("ApplyRun failed: %v", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		findings, err := s.ListFindings(ctx, sc.ID)
		if err != nil {
			t.Fatalf("ListFindings failed: %v", err)
		}
		if len(findings) != len(run.Findings) {
			t.Fatalf("Expected %d findings, got %d", len(run.Findings), len(findings))
		}
		for i, f := range findings {
			want := run.Findings[i].AffectedFileOrRoute
			if f.AffectedFileOrRoute != want || f.Seq != i {
				t.Errorf("Position %d: got %s (seq %d), want %s", i, f.AffectedFileOrRoute, f.Seq, want)
			}
		}
	}
}

func TestStatsScopedToAssignee(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	mine := seedScan(t, s, "alice")
	seedScan(t, s, "bob")

	mine, _ = s.SetStatus(ctx, mine.ID, mine.Version, lifecycle.InProgress)
	if _, err := s.ApplyRun(ctx, mine.ID, mine.Version, result(engine.SeverityCritical, engine.SeverityCritical, engine.SeverityLow), lifecycle.Review); err != nil {
		t.Fatalf("ApplyRun failed: %v", err)
	}

	st, err := s.Stats(ctx, "alice")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalScans != 1 || st.PendingReviewScans != 1 || st.ActiveScans != 0 {
		t.Errorf("Unexpected scan counters: %+v", st)
	}
	if st.SeverityCounts[engine.SeverityCritical] != 2 || st.CriticalOpenFindings != 2 {
		t.Errorf("Unexpected finding counters: %+v", st)
	}

	all, _ := s.Stats(ctx, "")
	if all.TotalScans != 2 || all.ActiveScans != 1 {
		t.Errorf("Unexpected global counters: %+v", all)
	}
}
