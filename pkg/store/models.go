package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/lifecycle"
)

// Project is an audited codebase
type Project struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Client      string    `gorm:"size:255" json:"client,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	SourcePath  string    `gorm:"size:1024" json:"sourcePath,omitempty"`
	OwnerID     string    `gorm:"size:128;index" json:"ownerId"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Scan is one audit engagement against a project
type Scan struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string           `gorm:"size:36;index;not null" json:"projectId"`
	Name        string           `gorm:"size:255;not null" json:"name"`
	Scope       string           `gorm:"type:text" json:"scope,omitempty"`
	Status      lifecycle.Status `gorm:"size:32;not null;index" json:"status"`
	AssignedTo  string           `gorm:"size:128;index" json:"assignedTo"`
	Version     int              `gorm:"not null;default:1" json:"version"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *Scan) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = lifecycle.Planned
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}

// FindingRecord is a persisted finding owned by a scan
type FindingRecord struct {
	ID                  string            `gorm:"primaryKey;size:36" json:"id"`
	ScanID              string            `gorm:"size:36;index;not null" json:"scanId"`
	RuleID              string            `gorm:"size:128" json:"ruleId,omitempty"`
	Title               string            `gorm:"size:512;not null" json:"title"`
	Description         string            `gorm:"type:text" json:"description"`
	OWASPCategory       string            `gorm:"size:128" json:"owaspCategory"`
	Severity            engine.Severity   `gorm:"size:16;not null;index" json:"severity"`
	Impact              string            `gorm:"type:text" json:"impact"`
	Recommendation      string            `gorm:"type:text" json:"recommendation"`
	AffectedFileOrRoute string            `gorm:"size:1024" json:"affectedFileOrRoute"`
	Compliance          engine.Compliance `gorm:"serializer:json" json:"compliance"`
	Provenance          engine.Provenance `gorm:"size:16;not null;index" json:"provenance"`
	Status              engine.Status     `gorm:"size:32;not null" json:"status"`
	Seq                 int               `gorm:"not null;default:0" json:"seq"` // position within its engine run
	CreatedBy           string            `gorm:"size:128" json:"createdBy,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (FindingRecord) TableName() string { return "findings" }

func (f *FindingRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = engine.StatusOpen
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Finding converts the record back to the engine representation
func (f FindingRecord) Finding() engine.Finding {
	return engine.Finding{
		ID:                  f.ID,
		RuleID:              f.RuleID,
		Title:               f.Title,
		Description:         f.Description,
		OWASPCategory:       f.OWASPCategory,
		Severity:            f.Severity,
		Impact:              f.Impact,
		Recommendation:      f.Recommendation,
		AffectedFileOrRoute: f.AffectedFileOrRoute,
		Compliance:          f.Compliance,
		Timestamp:           f.CreatedAt,
	}
}

// NewFindingRecord wraps an engine finding for persistence under scanID
func NewFindingRecord(scanID string, f engine.Finding, prov engine.Provenance) FindingRecord {
	return FindingRecord{
		ID:                  f.ID,
		ScanID:              scanID,
		RuleID:              f.RuleID,
		Title:               f.Title,
		Description:         f.Description,
		OWASPCategory:       f.OWASPCategory,
		Severity:            f.Severity,
		Impact:              f.Impact,
		Recommendation:      f.Recommendation,
		AffectedFileOrRoute: f.AffectedFileOrRoute,
		Compliance:          f.Compliance,
		Provenance:          prov,
		Status:              engine.StatusOpen,
		CreatedAt:           f.Timestamp,
	}
}

// FindingHistory is an immutable record of one severity or status change
type FindingHistory struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FindingID     string    `gorm:"size:36;index;not null" json:"findingId"`
	ScanID        string    `gorm:"size:36;index;not null" json:"scanId"`
	ActorID       string    `gorm:"size:128" json:"actorId"`
	Field         string    `gorm:"size:32;not null" json:"field"`
	OldValue      string    `gorm:"size:64" json:"oldValue"`
	NewValue      string    `gorm:"size:64" json:"newValue"`
	Justification string    `gorm:"type:text" json:"justification,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (FindingHistory) TableName() string { return "finding_history" }

// RiskSummary caches the outcome of the last successful run of a scan
type RiskSummary struct {
	ScanID     string    `gorm:"primaryKey;size:36" json:"scanId"`
	RiskScore  int       `json:"riskScore"`
	Critical   int       `json:"critical"`
	High       int       `json:"high"`
	Medium     int       `json:"medium"`
	Low        int       `json:"low"`
	ComputedAt time.Time `json:"computedAt"`
}

// Counts returns the cached counts as an engine summary
func (r RiskSummary) Counts() engine.Summary {
	return engine.Summary{Critical: r.Critical, High: r.High, Medium: r.Medium, Low: r.Low}
}

// Report is a generated report document of a scan
type Report struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ScanID    string    `gorm:"size:36;index;not null" json:"scanId"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedBy string    `gorm:"size:128" json:"createdBy,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
