package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/lifecycle"
)

// Stats are the dashboard counters
type Stats struct {
	TotalScans           int64                     `json:"totalAudits"`
	ActiveScans          int64                     `json:"activeAudits"`
	CompletedScans       int64                     `json:"completedAudits"`
	PendingReviewScans   int64                     `json:"pendingReviewAudits"`
	SeverityCounts       map[engine.Severity]int64 `json:"severityCounts"`
	CriticalOpenFindings int64                     `json:"criticalOpenFindings"`
}

// Stats counts scans and findings. A non-empty assignee restricts to that actor's scans.
func (s *Store) Stats(ctx context.Context, assignee string) (*Stats, error) {
	db := s.db.WithContext(ctx)
	scans := func() *gorm.DB {
		q := db.Model(&Scan{})
		if assignee != "" {
			q = q.Where("assigned_to = ?", assignee)
		}
		return q
	}
	findings := func() *gorm.DB {
		q := db.Model(&FindingRecord{})
		if assignee != "" {
			q = q.Where("scan_id IN (?)", db.Model(&Scan{}).Select("id").Where("assigned_to = ?", assignee))
		}
		return q
	}

	st := &Stats{SeverityCounts: make(map[engine.Severity]int64)}
	if err := scans().Count(&st.TotalScans).Error; err != nil {
		return nil, err
	}
	active := []lifecycle.Status{lifecycle.Planned, lifecycle.Scoping, lifecycle.InProgress}
	if err := scans().Where("status IN ?", active).Count(&st.ActiveScans).Error; err != nil {
		return nil, err
	}
	closed := []lifecycle.Status{lifecycle.Completed, lifecycle.Archived}
	if err := scans().Where("status IN ?", closed).Count(&st.CompletedScans).Error; err != nil {
		return nil, err
	}
	if err := scans().Where("status = ?", lifecycle.Review).Count(&st.PendingReviewScans).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Severity engine.Severity
		Count    int64
	}
	if err := findings().Select("severity, count(*) as count").Group("severity").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		st.SeverityCounts[r.Severity] = r.Count
	}

	open := []engine.Status{engine.StatusOpen, engine.StatusInReview, engine.StatusConfirmed}
	if err := findings().
		Where("severity = ? AND status IN ?", engine.SeverityCritical, open).
		Count(&st.CriticalOpenFindings).Error; err != nil {
		return nil, err
	}
	return st, nil
}
