package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/store"
)

// FindingInput describes a manually reported finding
type FindingInput struct {
	Title               string
	Description         string
	OWASPCategory       string
	Severity            engine.Severity
	Impact              string
	Recommendation      string
	AffectedFileOrRoute string
	Compliance          engine.Compliance
}

// CreateFinding records a MANUAL finding in OPEN status. Re-running the engine never removes it.
func (s *Service) CreateFinding(ctx context.Context, actor Actor, scanID string, in FindingInput) (*store.FindingRecord, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("finding title is required")
	}
	if !in.Severity.Valid() {
		return nil, fmt.Errorf("invalid severity: %q", in.Severity)
	}
	f := &store.FindingRecord{
		ScanID:              scanID,
		Title:               in.Title,
		Description:         in.Description,
		OWASPCategory:       in.OWASPCategory,
		Severity:            in.Severity,
		Impact:              in.Impact,
		Recommendation:      in.Recommendation,
		AffectedFileOrRoute: in.AffectedFileOrRoute,
		Compliance:          in.Compliance,
		Provenance:          engine.ProvenanceManual,
		Status:              engine.StatusOpen,
		CreatedBy:           actor.ID,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.Repo.CreateFinding(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// FindingUpdate carries the fields to change; nil fields are left as they are
type FindingUpdate struct {
	Title          *string
	Description    *string
	Impact         *string
	Recommendation *string
	Severity       *engine.Severity
	Status         *engine.Status
	Justification  string
}

// UpdateFinding applies u. Lowering the severity requires a justification.
// Every severity or status change appends a history row.
func (s *Service) UpdateFinding(ctx context.Context, actor Actor, findingID string, u FindingUpdate) (*store.FindingRecord, error) {
	f, err := s.Repo.GetFinding(ctx, findingID)
	if err != nil {
		return nil, err
	}
	justification := strings.TrimSpace(u.Justification)

	var history []store.FindingHistory
	record := func(field, from, to string) {
		history = append(history, store.FindingHistory{
			FindingID:     f.ID,
			ScanID:        f.ScanID,
			ActorID:       actor.ID,
			Field:         field,
			OldValue:      from,
			NewValue:      to,
			Justification: justification,
		})
	}

	if u.Severity != nil && *u.Severity != f.Severity {
		if !u.Severity.Valid() {
			return nil, fmt.Errorf("invalid severity: %q", *u.Severity)
		}
		if u.Severity.Rank() < f.Severity.Rank() && justification == "" {
			return nil, ErrJustificationRequired
		}
		record("severity", string(f.Severity), string(*u.Severity))
		f.Severity = *u.Severity
	}
	if u.Status != nil && *u.Status != f.Status {
		if _, err := engine.ParseStatus(string(*u.Status)); err != nil {
			return nil, err
		}
		record("status", string(f.Status), string(*u.Status))
		f.Status = *u.Status
	}
	if u.Title != nil {
		f.Title = *u.Title
	}
	if u.Description != nil {
		f.Description = *u.Description
	}
	if u.Impact != nil {
		f.Impact = *u.Impact
	}
	if u.Recommendation != nil {
		f.Recommendation = *u.Recommendation
	}

	if err := s.Repo.UpdateFinding(ctx, f, history); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) GetFinding(ctx context.Context, id string) (*store.FindingRecord, error) {
	return s.Repo.GetFinding(ctx, id)
}

func (s *Service) DeleteFinding(ctx context.Context, id string) error {
	return s.Repo.DeleteFinding(ctx, id)
}

// ListFindings returns a scan's findings newest first
func (s *Service) ListFindings(ctx context.Context, scanID string) ([]store.FindingRecord, error) {
	return s.Repo.ListFindings(ctx, scanID)
}

func (s *Service) FindingHistory(ctx context.Context, findingID string) ([]store.FindingHistory, error) {
	return s.Repo.History(ctx, findingID)
}
