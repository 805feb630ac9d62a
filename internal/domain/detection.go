package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Platform identifies an originating automation platform.
type Platform string

const (
	PlatformBluePrism          Platform = "blue_prism"
	PlatformUiPath             Platform = "uipath"
	PlatformAppian             Platform = "appian"
	PlatformAutomationAnywhere Platform = "automation_anywhere"
	PlatformPega               Platform = "pega"
	PlatformUnknown            Platform = "unknown"
)

// SupportedPlatforms lists every platform the detector scores, in the
// lexicographic order used for tie-breaking.
func SupportedPlatforms() []Platform {
	return []Platform{
		PlatformAppian,
		PlatformAutomationAnywhere,
		PlatformBluePrism,
		PlatformPega,
		PlatformUiPath,
	}
}

// DetectionInput is one uploaded artifact handed to the detector. Immutable
// per detection call.
type DetectionInput struct {
	Name        string
	Content     string
	ContentType string
	Metadata    map[string]any
}

// LowerName returns the filename lowercased for signal matching.
func (d DetectionInput) LowerName() string {
	return strings.ToLower(strings.TrimSpace(d.Name))
}

// Extension returns the lowercased file extension including the dot, or "".
func (d DetectionInput) Extension() string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(d.Name)))
}

// Entity is one extracted item from a platform parser, deduplicated by the
// (type, value, source file) triple within a parse call.
type Entity struct {
	EntityType string `json:"entity_type"`
	Value      string `json:"value"`
	SourceFile string `json:"source_file"`
}

// PlatformDetectionOutcome records one detection invocation. Constructed once
// and never mutated afterwards.
type PlatformDetectionOutcome struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID               uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	DetectedPlatform    Platform       `gorm:"column:detected_platform;not null" json:"detected_platform"`
	ConfidenceScore     float64        `gorm:"column:confidence_score;not null" json:"confidence_score"`
	DetectionMethod     string         `gorm:"column:detection_method;not null" json:"detection_method"`
	ParserExecuted      bool           `gorm:"column:parser_executed;not null" json:"parser_executed"`
	ParserVersion       *string        `gorm:"column:parser_version" json:"parser_version,omitempty"`
	ExtractedEntities   datatypes.JSON `gorm:"column:extracted_entities;type:jsonb" json:"extracted_entities"`
	FeatureFlagSnapshot datatypes.JSON `gorm:"column:feature_flag_snapshot;type:jsonb" json:"feature_flag_snapshot"`
	DurationMS          int64          `gorm:"column:duration_ms;not null;check:chk_detection_duration,duration_ms > 0" json:"duration_ms"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (PlatformDetectionOutcome) TableName() string { return "platform_detection_outcome" }
