package models

import "time"

// Complaint severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityCritical = "critical"
)

// Complaint is a report filed by one member of a pair against the other.
type Complaint struct {
	ID         uint   `gorm:"primaryKey"`
	ReporterID string `gorm:"index"`
	TargetID   string `gorm:"index"`
	RoomID     string
	Reason     string
	Severity   string

	// Weight is the penalty derived from Severity when the complaint is filed.
	Weight int
	// LoggedMessages is the JSON transcript of the pair at report time.
	LoggedMessages string `gorm:"type:text"`
	// Status is "new" or "banned".
	Status    string
	CreatedAt time.Time `gorm:"index"`
}
