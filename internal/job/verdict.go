package job

import "time"

// ViolationSeverity grades how serious a compliance violation is.
type ViolationSeverity string

const (
	SeverityLow      ViolationSeverity = "LOW"
	SeverityMedium   ViolationSeverity = "MEDIUM"
	SeverityHigh     ViolationSeverity = "HIGH"
	SeverityCritical ViolationSeverity = "CRITICAL"
)

// ViolationCode classifies a compliance violation.
type ViolationCode string

const (
	ViolationInappropriateContent ViolationCode = "INAPPROPRIATE_CONTENT"
	ViolationViolence             ViolationCode = "VIOLENCE"
	ViolationNudity               ViolationCode = "NUDITY"
	ViolationOffensiveLanguage    ViolationCode = "OFFENSIVE_LANGUAGE"
	ViolationDrugsAlcohol         ViolationCode = "DRUGS_ALCOHOL"
	ViolationWeapons              ViolationCode = "WEAPONS"
	ViolationOther                ViolationCode = "OTHER"
)

// Violation is a single compliance finding with its confidence score.
type Violation struct {
	Code             ViolationCode     `json:"code"`
	Severity         ViolationSeverity `json:"severity"`
	Message          string            `json:"message"`
	Confidence       float64           `json:"confidence"`
	DetectedElements []string          `json:"detectedElements,omitempty"`
}

// Verdict is the moderation result persisted onto a completed job.
type Verdict struct {
	IsCompliant  bool           `json:"isCompliant"`
	Violations   []Violation    `json:"violations"`
	ModelOutput  map[string]any `json:"modelOutput,omitempty"`
	ProcessedAt  time.Time      `json:"processedAt"`
	ModelVersion string         `json:"modelVersion,omitempty"`
}
