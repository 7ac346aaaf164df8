// Package store persists projects, scans, findings and risk summaries with gorm over SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/lifecycle"
	"github.com/user/secaudit/pkg/logger"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrStaleVersion is returned when a scan changed since it was read
	ErrStaleVersion = errors.New("scan was modified concurrently")
)

// Store wraps the database handle
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates the schema
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	level := gormlogger.Silent
	if logger.DebugEnabled {
		level = gormlogger.Info
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// SQLite allows one writer; a single connection keeps transactions serialized.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Project{}, &Scan{}, &FindingRecord{}, &FindingHistory{}, &RiskSummary{}, &Report{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	logger.Debugf("Opened database %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Projects

func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListProjects returns projects newest first. An empty ownerID lists all.
func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	q := s.db.WithContext(ctx).Order("created_at desc")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	var out []Project
	return out, q.Find(&out).Error
}

// Scans

// CreateScan inserts a scan in PLANNED state
func (s *Store) CreateScan(ctx context.Context, sc *Scan) error {
	if _, err := s.GetProject(ctx, sc.ProjectID); err != nil {
		return fmt.Errorf("project %s: %w", sc.ProjectID, err)
	}
	sc.Status = lifecycle.Planned
	sc.Version = 1
	return s.db.WithContext(ctx).Create(sc).Error
}

func (s *Store) GetScan(ctx context.Context, id string) (*Scan, error) {
	var sc Scan
	if err := s.db.WithContext(ctx).First(&sc, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sc, nil
}

// ListScans returns scans newest first. An empty assignee lists all.
func (s *Store) ListScans(ctx context.Context, assignee string) ([]Scan, error) {
	q := s.db.WithContext(ctx).Order("created_at desc")
	if assignee != "" {
		q = q.Where("assigned_to = ?", assignee)
	}
	var out []Scan
	return out, q.Find(&out).Error
}

// SetStatus moves a scan to status if its version still equals version
func (s *Store) SetStatus(ctx context.Context, id string, version int, status lifecycle.Status) (*Scan, error) {
	var out *Scan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sc, err := setStatus(tx, id, version, status)
		out = sc
		return err
	})
	return out, err
}

func setStatus(tx *gorm.DB, id string, version int, status lifecycle.Status) (*Scan, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     status,
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}
	switch status {
	case lifecycle.InProgress:
		updates["started_at"] = now
	case lifecycle.Completed:
		updates["completed_at"] = now
	}

	res := tx.Model(&Scan{}).Where("id = ? AND version = ?", id, version).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&Scan{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrStaleVersion
	}

	var sc Scan
	if err := tx.First(&sc, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sc, nil
}

// ApplyRun persists one engine run in a single transaction: prior ENGINE findings are replaced,
// the risk summary is upserted and the scan moves to status. Manual findings are untouched.
func (s *Store) ApplyRun(ctx context.Context, scanID string, version int, result *engine.ScanResult, status lifecycle.Status) (*Scan, error) {
	var out *Scan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sc, err := setStatus(tx, scanID, version, status)
		if err != nil {
			return err
		}

		stale := tx.Model(&FindingRecord{}).Select("id").Where("scan_id = ? AND provenance = ?", scanID, engine.ProvenanceEngine)
		if err := tx.Where("finding_id IN (?)", stale).Delete(&FindingHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("scan_id = ? AND provenance = ?", scanID, engine.ProvenanceEngine).Delete(&FindingRecord{}).Error; err != nil {
			return err
		}

		if len(result.Findings) > 0 {
			records := make([]FindingRecord, 0, len(result.Findings))
			for i, f := range result.Findings {
				rec := NewFindingRecord(scanID, f, engine.ProvenanceEngine)
				rec.Seq = i
				if !result.Timestamp.IsZero() {
					rec.CreatedAt = result.Timestamp
				}
				records = append(records, rec)
			}
			if err := tx.CreateInBatches(&records, 200).Error; err != nil {
				return err
			}
		}

		summary := RiskSummary{
			ScanID:     scanID,
			RiskScore:  result.RiskScore,
			Critical:   result.Summary.Critical,
			High:       result.Summary.High,
			Medium:     result.Summary.Medium,
			Low:        result.Summary.Low,
			ComputedAt: result.Timestamp,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scan_id"}},
			UpdateAll: true,
		}).Create(&summary).Error; err != nil {
			return err
		}

		out = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteScan removes a scan with everything it owns
func (s *Store) DeleteScan(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_id = ?", id).Delete(&FindingHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("scan_id = ?", id).Delete(&FindingRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("scan_id = ?", id).Delete(&RiskSummary{}).Error; err != nil {
			return err
		}
		if err := tx.Where("scan_id = ?", id).Delete(&Report{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Scan{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Findings

// CreateFinding inserts a finding into an existing scan
func (s *Store) CreateFinding(ctx context.Context, f *FindingRecord) error {
	if _, err := s.GetScan(ctx, f.ScanID); err != nil {
		return fmt.Errorf("scan %s: %w", f.ScanID, err)
	}
	return s.db.WithContext(ctx).Create(f).Error
}

func (s *Store) GetFinding(ctx context.Context, id string) (*FindingRecord, error) {
	var f FindingRecord
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// ListFindings returns the findings of a scan newest first.
// Findings of one engine run share its timestamp and keep the engine's order.
func (s *Store) ListFindings(ctx context.Context, scanID string) ([]FindingRecord, error) {
	var out []FindingRecord
	err := s.db.WithContext(ctx).
		Where("scan_id = ?", scanID).
		Order("created_at desc").
		Order("seq").
		Order("id").
		Find(&out).Error
	return out, err
}

// UpdateFinding saves f and appends its history rows in one transaction
func (s *Store) UpdateFinding(ctx context.Context, f *FindingRecord, history []FindingHistory) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(f).Error; err != nil {
			return err
		}
		if len(history) > 0 {
			return tx.Create(&history).Error
		}
		return nil
	})
}

// DeleteFinding removes a finding and its history
func (s *Store) DeleteFinding(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("finding_id = ?", id).Delete(&FindingHistory{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&FindingRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// History returns the change log of a finding, oldest first
func (s *Store) History(ctx context.Context, findingID string) ([]FindingHistory, error) {
	var out []FindingHistory
	err := s.db.WithContext(ctx).Where("finding_id = ?", findingID).Order("id").Find(&out).Error
	return out, err
}

// Summaries

func (s *Store) GetRiskSummary(ctx context.Context, scanID string) (*RiskSummary, error) {
	var r RiskSummary
	if err := s.db.WithContext(ctx).First(&r, "scan_id = ?", scanID).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// Reports

// SaveReport stores r and, when status is set, moves the scan there within the same transaction
func (s *Store) SaveReport(ctx context.Context, r *Report, version int, status lifecycle.Status) (*Scan, error) {
	var out *Scan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		if status == "" {
			var sc Scan
			if err := tx.First(&sc, "id = ?", r.ScanID).Error; err != nil {
				return notFound(err)
			}
			out = &sc
			return nil
		}
		sc, err := setStatus(tx, r.ScanID, version, status)
		out = sc
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListReports returns the reports of a scan newest first
func (s *Store) ListReports(ctx context.Context, scanID string) ([]Report, error) {
	var out []Report
	err := s.db.WithContext(ctx).Where("scan_id = ?", scanID).Order("created_at desc").Find(&out).Error
	return out, err
}
