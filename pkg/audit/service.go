// Package audit coordinates scans, findings and reports on top of the engine and the store.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/lifecycle"
	"github.com/user/secaudit/pkg/logger"
	"github.com/user/secaudit/pkg/report"
	"github.com/user/secaudit/pkg/store"
)

// Repository is the persistence the service needs. *store.Store implements it.
type Repository interface {
	CreateProject(ctx context.Context, p *store.Project) error
	GetProject(ctx context.Context, id string) (*store.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]store.Project, error)

	CreateScan(ctx context.Context, sc *store.Scan) error
	GetScan(ctx context.Context, id string) (*store.Scan, error)
	ListScans(ctx context.Context, assignee string) ([]store.Scan, error)
	SetStatus(ctx context.Context, id string, version int, status lifecycle.Status) (*store.Scan, error)
	ApplyRun(ctx context.Context, scanID string, version int, result *engine.ScanResult, status lifecycle.Status) (*store.Scan, error)

	CreateFinding(ctx context.Context, f *store.FindingRecord) error
	GetFinding(ctx context.Context, id string) (*store.FindingRecord, error)
	ListFindings(ctx context.Context, scanID string) ([]store.FindingRecord, error)
	UpdateFinding(ctx context.Context, f *store.FindingRecord, history []store.FindingHistory) error
	DeleteFinding(ctx context.Context, id string) error
	History(ctx context.Context, findingID string) ([]store.FindingHistory, error)

	GetRiskSummary(ctx context.Context, scanID string) (*store.RiskSummary, error)
	SaveReport(ctx context.Context, r *store.Report, version int, status lifecycle.Status) (*store.Scan, error)
	Stats(ctx context.Context, assignee string) (*store.Stats, error)
}

// Service runs scans and applies workflow rules
type Service struct {
	Repo   Repository
	Engine *engine.Engine

	locks keyedMutex
}

func NewService(repo Repository, eng *engine.Engine) *Service {
	return &Service{Repo: repo, Engine: eng}
}

// Projects and scans

func (s *Service) CreateProject(ctx context.Context, actor Actor, p *store.Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	p.OwnerID = actor.ID
	return s.Repo.CreateProject(ctx, p)
}

func (s *Service) ListProjects(ctx context.Context, actor Actor) ([]store.Project, error) {
	return s.Repo.ListProjects(ctx, actor.scope())
}

// CreateScan plans a new scan of a project, assigned to the actor unless assignee is given
func (s *Service) CreateScan(ctx context.Context, actor Actor, projectID, name, scope, assignee string) (*store.Scan, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("scan name is required")
	}
	if assignee == "" {
		assignee = actor.ID
	}
	sc := &store.Scan{ProjectID: projectID, Name: name, Scope: scope, AssignedTo: assignee}
	if err := s.Repo.CreateScan(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Service) ListScans(ctx context.Context, actor Actor) ([]store.Scan, error) {
	return s.Repo.ListScans(ctx, actor.scope())
}

func (s *Service) GetScan(ctx context.Context, id string) (*store.Scan, error) {
	return s.Repo.GetScan(ctx, id)
}

// RunOutcome is the result of a successful RunScan
type RunOutcome struct {
	Scan   *store.Scan
	Result *engine.ScanResult
}

// RunScan executes the engine against the scan's project root and stores the result.
// Only PLANNED, SCOPING and IN_PROGRESS scans can be run. On success the scan is in REVIEW;
// on failure it is reset to PLANNED, or a RollbackError is returned if that reset fails.
func (s *Service) RunScan(ctx context.Context, actor Actor, scanID string) (*RunOutcome, error) {
	unlock := s.locks.Lock(scanID)
	defer unlock()

	sc, err := s.Repo.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !sc.Status.Runnable() {
		return nil, &StateError{ScanID: sc.ID, Status: sc.Status}
	}
	proj, err := s.Repo.GetProject(ctx, sc.ProjectID)
	if err != nil {
		return nil, err
	}
	// Checked before the status moves so a bad root never replaces stored findings
	root, err := engine.ResolveRoot(proj.SourcePath)
	if err != nil {
		return nil, err
	}

	if sc.Status != lifecycle.InProgress {
		if sc, err = s.Repo.SetStatus(ctx, sc.ID, sc.Version, lifecycle.InProgress); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanFailed, err)
		}
	}
	logger.Debugf("Running scan %s (%s) as %s", sc.ID, root, actor.ID)

	result, err := s.Engine.Run(ctx, root, sc.Scope)
	if err != nil {
		return nil, s.rollback(ctx, sc, err)
	}

	updated, err := s.Repo.ApplyRun(ctx, sc.ID, sc.Version, result, lifecycle.Review)
	if err != nil {
		return nil, s.rollback(ctx, sc, err)
	}
	logger.Infof("Scan %s stored %d findings, risk score %d", sc.ID, len(result.Findings), result.RiskScore)
	return &RunOutcome{Scan: updated, Result: result}, nil
}

func (s *Service) rollback(ctx context.Context, sc *store.Scan, cause error) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if _, err := s.Repo.SetStatus(rctx, sc.ID, sc.Version, lifecycle.Planned); err != nil {
		logger.Errorf("Scan %s could not be reset to %s: %v", sc.ID, lifecycle.Planned, err)
		return &RollbackError{ScanID: sc.ID, Cause: cause, Rollback: err}
	}
	logger.Warnf("Scan %s failed and was reset to %s: %v", sc.ID, lifecycle.Planned, cause)
	return fmt.Errorf("%w: %w", ErrScanFailed, cause)
}

// StatusChange is the outcome of a manual transition
type StatusChange struct {
	Scan   *store.Scan
	Record lifecycle.Record
}

// ChangeStatus moves a scan along the lifecycle. Administrators may force any move.
// IN_PROGRESS to REVIEW is reserved for RunScan unless forced.
func (s *Service) ChangeStatus(ctx context.Context, actor Actor, scanID string, to lifecycle.Status) (*StatusChange, error) {
	unlock := s.locks.Lock(scanID)
	defer unlock()

	sc, err := s.Repo.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}

	rec, err := lifecycle.Transition(sc.Status, to, actor.IsAdmin())
	if err != nil {
		return nil, err
	}
	if sc.Status == lifecycle.InProgress && to == lifecycle.Review {
		if !actor.IsAdmin() {
			return nil, &lifecycle.TransitionError{From: sc.Status, To: to}
		}
		rec.Forced = true
	}

	updated, err := s.Repo.SetStatus(ctx, sc.ID, sc.Version, to)
	if err != nil {
		return nil, err
	}
	if rec.Forced {
		logger.Warnf("Scan %s forced from %s to %s by %s", sc.ID, rec.From, rec.To, actor.ID)
	}
	return &StatusChange{Scan: updated, Record: rec}, nil
}

// Reports

// ReportOutcome is a stored report and the scan after generation
type ReportOutcome struct {
	Report *store.Report
	Scan   *store.Scan
	// Advanced is set when generation moved the scan to REPORT_GENERATED
	Advanced bool
}

// GenerateReport renders and stores a markdown report. A scan in REVIEW or IN_PROGRESS
// advances to REPORT_GENERATED; other statuses are left alone.
func (s *Service) GenerateReport(ctx context.Context, actor Actor, scanID string) (*ReportOutcome, error) {
	unlock := s.locks.Lock(scanID)
	defer unlock()

	sc, err := s.Repo.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	proj, err := s.Repo.GetProject(ctx, sc.ProjectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	findings, err := s.Repo.ListFindings(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	cached, err := s.Repo.GetRiskSummary(ctx, sc.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	content, err := report.Render(report.Input{Scan: sc, Project: proj, Findings: findings, Cached: cached})
	if err != nil {
		return nil, err
	}

	var next lifecycle.Status
	if sc.Status == lifecycle.Review || sc.Status == lifecycle.InProgress {
		next = lifecycle.ReportGenerated
	}
	r := &store.Report{ScanID: sc.ID, Title: report.Title(sc), Content: content, CreatedBy: actor.ID}
	updated, err := s.Repo.SaveReport(ctx, r, sc.Version, next)
	if err != nil {
		return nil, err
	}
	return &ReportOutcome{Report: r, Scan: updated, Advanced: next != ""}, nil
}

// Overview returns dashboard counters, scoped to the actor unless admin
func (s *Service) Overview(ctx context.Context, actor Actor) (*store.Stats, error) {
	return s.Repo.Stats(ctx, actor.scope())
}
