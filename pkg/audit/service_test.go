package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/lifecycle"
)

func TestRunScan(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	sc := seedScan(t, svc, fixtureRoot(t))

	out, err := svc.RunScan(ctx, alice, sc.ID)
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}
	if out.Scan.Status != lifecycle.Review {
		t.Errorf("Expected REVIEW, got %s", out.Scan.Status)
	}
	if out.Result.RiskScore != 14 {
		t.Errorf("Expected risk score 14, got %d", out.Result.RiskScore)
	}

	findings, _ := st.ListFindings(ctx, sc.ID)
	var sevs []string
	for _, f := range findings {
		sevs = append(sevs, string(f.Severity))
		if f.Provenance != engine.ProvenanceEngine || f.Status != engine.StatusOpen {
			t.Errorf("Unexpected stored finding %+v", f)
		}
	}
	sort.Strings(sevs)
	if !reflect.DeepEqual(sevs, []string{"CRITICAL", "MEDIUM", "MEDIUM"}) {
		t.Errorf("Unexpected stored severities %v", sevs)
	}

	sum, err := st.GetRiskSummary(ctx, sc.ID)
	if err != nil || sum.RiskScore != 14 {
		t.Errorf("Risk summary not stored: %+v %v", sum, err)
	}
}

func TestRunScanRejectsNonRunnableStates(t *testing.T) {
	ctx := context.Background()
	paths := map[lifecycle.Status][]lifecycle.Status{
		lifecycle.Review:          {lifecycle.InProgress, lifecycle.Review},
		lifecycle.ReportGenerated: {lifecycle.InProgress, lifecycle.Review, lifecycle.ReportGenerated},
		lifecycle.Completed:       {lifecycle.InProgress, lifecycle.Review, lifecycle.ReportGenerated, lifecycle.Completed},
		lifecycle.Archived:        {lifecycle.InProgress, lifecycle.Review, lifecycle.ReportGenerated, lifecycle.Completed, lifecycle.Archived},
	}

	for want, path := range paths {
		svc, st := newTestService(t)
		sc := seedScan(t, svc, fixtureRoot(t))
		for _, s := range path {
			sc = forceStatus(t, st, sc.ID, s)
		}

		_, err := svc.RunScan(ctx, alice, sc.ID)
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("%s: expected ErrInvalidState, got %v", want, err)
		}
		var se *StateError
		if !errors.As(err, &se) || se.Status != want {
			t.Errorf("%s: expected StateError, got %v", want, err)
		}

		after, _ := st.GetScan(ctx, sc.ID)
		if after.Status != want || after.Version != sc.Version {
			t.Errorf("%s: scan changed to %s v%d", want, after.Status, after.Version)
		}
		if findings, _ := st.ListFindings(ctx, sc.ID); len(findings) != 0 {
			t.Errorf("%s: findings written: %d", want, len(findings))
		}
	}
}

func TestRunScanFromScopingAndInProgress(t *testing.T) {
	ctx := context.Background()
	for _, from := range []lifecycle.Status{lifecycle.Scoping, lifecycle.InProgress} {
		svc, st := newTestService(t)
		sc := seedScan(t, svc, fixtureRoot(t))
		forceStatus(t, st, sc.ID, from)

		out, err := svc.RunScan(ctx, alice, sc.ID)
		if err != nil {
			t.Fatalf("%s: RunScan failed: %v", from, err)
		}
		if out.Scan.Status != lifecycle.Review {
			t.Errorf("%s: expected REVIEW, got %s", from, out.Scan.Status)
		}
	}
}

func TestRunScanMissingRoot(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	sc := seedScan(t, svc, "")

	if _, err := svc.RunScan(ctx, alice, sc.ID); !errors.Is(err, engine.ErrMissingRoot) {
		t.Errorf("Expected ErrMissingRoot, got %v", err)
	}
	after, _ := st.GetScan(ctx, sc.ID)
	if after.Status != lifecycle.Planned {
		t.Errorf("Expected PLANNED, got %s", after.Status)
	}
}

func TestRunScanMissingRootKeepsStoredFindings(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	root := fixtureRoot(t)
	sc := seedScan(t, svc, root)

	first, err := svc.RunScan(ctx, alice, sc.ID)
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}
	before, _ := st.ListFindings(ctx, sc.ID)
	forceStatus(t, st, sc.ID, lifecycle.Planned)

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RunScan(ctx, alice, sc.ID); !errors.Is(err, engine.ErrMissingRoot) {
		t.Fatalf("Expected ErrMissingRoot, got %v", err)
	}

	after, _ := st.GetScan(ctx, sc.ID)
	if after.Status != lifecycle.Planned {
		t.Errorf("Expected PLANNED, got %s", after.Status)
	}
	findings, _ := st.ListFindings(ctx, sc.ID)
	if len(findings) != len(before) || len(findings) != len(first.Result.Findings) {
		t.Fatalf("Expected %d stored findings, got %d", len(before), len(findings))
	}
	for i := range findings {
		if findings[i].ID != before[i].ID {
			t.Errorf("Finding %d replaced: %s -> %s", i, before[i].ID, findings[i].ID)
		}
	}
	summary, err := st.GetRiskSummary(ctx, sc.ID)
	if err != nil || summary.RiskScore != first.Result.RiskScore {
		t.Errorf("Expected cached score %d to survive, got %+v (%v)", first.Result.RiskScore, summary, err)
	}
}

func TestRunScanRejectsFileRoot(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	file := filepath.Join(t.TempDir(), "app.js")
	if err := os.WriteFile(file, []byte("eval(input)\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sc := seedScan(t, svc, file)

	if _, err := svc.RunScan(ctx, alice, sc.ID); !errors.Is(err, engine.ErrMissingRoot) {
		t.Errorf("Expected ErrMissingRoot, got %v", err)
	}
	findings, _ := st.ListFindings(ctx, sc.ID)
	if len(findings) != 0 {
		t.Errorf("Expected no findings, got %d", len(findings))
	}
}

func TestRunScanRollsBackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	sc := seedScan(t, svc, fixtureRoot(t))
	svc.Repo = &faultyRepo{Store: st, applyErr: errors.New("disk full")}

	_, err := svc.RunScan(ctx, alice, sc.ID)
	if !errors.Is(err, ErrScanFailed) {
		t.Fatalf("Expected ErrScanFailed, got %v", err)
	}
	var rb *RollbackError
	if errors.As(err, &rb) {
		t.Error("Rollback should have succeeded")
	}
	after, _ := st.GetScan(ctx, sc.ID)
	if after.Status != lifecycle.Planned {
		t.Errorf("Expected rollback to PLANNED, got %s", after.Status)
	}
	if _, err := st.GetRiskSummary(ctx, sc.ID); err == nil {
		t.Error("Risk summary written despite failure")
	}
}

func TestRunScanReportsFailedRollback(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	sc := seedScan(t, svc, fixtureRoot(t))
	svc.Repo = &faultyRepo{Store: st, applyErr: errors.New("disk full"), rollbackErr: errors.New("database locked")}

	_, err := svc.RunScan(ctx, alice, sc.ID)
	var rb *RollbackError
	if !errors.As(err, &rb) {
		t.Fatalf("Expected RollbackError, got %v", err)
	}
	if !errors.Is(err, ErrScanFailed) || rb.Rollback == nil || rb.Cause == nil {
		t.Errorf("Incomplete RollbackError: %+v", rb)
	}
	after, _ := st.GetScan(ctx, sc.ID)
	if after.Status != lifecycle.InProgress {
		t.Errorf("Expected scan stuck IN_PROGRESS, got %s", after.Status)
	}
}

type stuckAnalyzer struct{}

func (stuckAnalyzer) Name() string { return "stuck" }

func (stuckAnalyzer) Scan(ctx context.Context, _ *engine.Target) ([]engine.Finding, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunScanRollsBackOnTimeout(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	svc.Engine = &engine.Engine{Walker: engine.NewWalker(), Timeout: 20 * time.Millisecond}
	svc.Engine.Register(stuckAnalyzer{})
	sc := seedScan(t, svc, fixtureRoot(t))

	_, err := svc.RunScan(ctx, alice, sc.ID)
	if !errors.Is(err, ErrScanFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected timeout failure, got %v", err)
	}
	after, _ := st.GetScan(ctx, sc.ID)
	if after.Status != lifecycle.Planned {
		t.Errorf("Expected PLANNED, got %s", after.Status)
	}
}

func TestRunScanConcurrentCallsSerialize(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	sc := seedScan(t, svc, fixtureRoot(t))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RunScan(ctx, alice, sc.ID)
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidState):
			rejected++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 3 {
		t.Errorf("Expected 1 success and 3 rejections, got %d and %d", ok, rejected)
	}
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	sc := seedScan(t, svc, fixtureRoot(t))

	// 1. Illegal move for a non-admin
	_, err := svc.ChangeStatus(ctx, alice, sc.ID, lifecycle.Completed)
	var te *lifecycle.TransitionError
	if !errors.As(err, &te) || te.From != lifecycle.Planned || te.To != lifecycle.Completed {
		t.Errorf("Expected TransitionError, got %v", err)
	}

	// 2. Legal move
	change, err := svc.ChangeStatus(ctx, alice, sc.ID, lifecycle.InProgress)
	if err != nil || change.Record.Forced {
		t.Fatalf("Expected plain transition, got %+v %v", change, err)
	}

	// 3. IN_PROGRESS -> REVIEW belongs to RunScan
	if _, err := svc.ChangeStatus(ctx, alice, sc.ID, lifecycle.Review); !errors.As(err, &te) {
		t.Errorf("Expected TransitionError for manual review entry, got %v", err)
	}

	// 4. Admin override is flagged
	change, err = svc.ChangeStatus(ctx, admin, sc.ID, lifecycle.Archived)
	if err != nil {
		t.Fatalf("Admin override failed: %v", err)
	}
	if !change.Record.Forced || change.Scan.Status != lifecycle.Archived {
		t.Errorf("Expected forced move to ARCHIVED, got %+v", change)
	}
	after, _ := st.GetScan(ctx, sc.ID)
	if after.Status != lifecycle.Archived {
		t.Errorf("Status not persisted: %s", after.Status)
	}
}

func TestGenerateReportAdvancesStatus(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	sc := seedScan(t, svc, fixtureRoot(t))
	if _, err := svc.RunScan(ctx, alice, sc.ID); err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}

	out, err := svc.GenerateReport(ctx, alice, sc.ID)
	if err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}
	if !out.Advanced || out.Scan.Status != lifecycle.ReportGenerated {
		t.Errorf("Expected REPORT_GENERATED, got %s", out.Scan.Status)
	}
	if !strings.Contains(out.Report.Content, "This audit identified 3 findings.") {
		t.Errorf("Unexpected report content:\n%s", out.Report.Content)
	}

	// Later statuses are left alone
	forceStatus(t, st, sc.ID, lifecycle.Completed)
	out, err = svc.GenerateReport(ctx, alice, sc.ID)
	if err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}
	if out.Advanced || out.Scan.Status != lifecycle.Completed {
		t.Errorf("Expected COMPLETED unchanged, got %s", out.Scan.Status)
	}
	reports, _ := st.ListReports(ctx, sc.ID)
	if len(reports) != 2 {
		t.Errorf("Expected 2 stored reports, got %d", len(reports))
	}
}

func TestCanOperate(t *testing.T) {
	svc, _ := newTestService(t)
	sc := seedScan(t, svc, "")
	if !CanOperate(alice, sc) || !CanOperate(admin, sc) {
		t.Error("Owner and admin should operate")
	}
	if CanOperate(Actor{ID: "mallory", Role: RoleAuditor}, sc) {
		t.Error("Stranger should not operate")
	}
}
