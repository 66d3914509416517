// Package complaint provides the core logic for handling user complaints:
// weighting reports and banning users who collect too many of them.
package complaint

import (
	"context"
	"dilse/backend/internal/analysis"
	"dilse/backend/internal/config"
	"dilse/backend/internal/logging"
	"dilse/backend/internal/models"
	"dilse/backend/internal/storage"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Service handles the business logic for complaints.
type Service struct {
	Storage storage.Storage
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a new complaint service.
func NewService(s storage.Storage, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{Storage: s, log: log, now: time.Now}
}

// HandleComplaint weighs and stores a complaint, then bans its target when
// the complaints collected within the ban window reach the weight threshold
// and come from enough distinct reporters. A reporter counts once per room:
// repeated reports against the same partner are ignored. It reports whether
// the target is banned.
func (s *Service) HandleComplaint(ctx context.Context, complaint *models.Complaint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	complaint.Severity = analysis.NormalizeSeverity(complaint.Severity)
	complaint.Weight = analysis.GetWeight(complaint.Severity)

	dup, err := s.Storage.HasComplaint(complaint.ReporterID, complaint.TargetID, complaint.RoomID)
	if err != nil {
		return false, fmt.Errorf("check duplicate complaint: %w", err)
	}
	if dup {
		s.log.WithFields(logrus.Fields{
			"reporter": complaint.ReporterID,
			"target":   complaint.TargetID,
			"room":     complaint.RoomID,
		}).Info("duplicate complaint ignored")
		return false, nil
	}

	since := s.now().Add(-config.BanWindow)
	tally, err := s.Storage.TallyComplaints(complaint.TargetID, complaint.ReporterID, since)
	if err != nil {
		return false, fmt.Errorf("tally complaints: %w", err)
	}

	total := tally.Weight + int64(complaint.Weight)
	reporters := tally.Reporters
	if !tally.ByReporter {
		reporters++
	}
	ban := total >= config.BanThresholdWeight && reporters >= config.BanMinReporters
	complaint.Status = "new"
	if ban {
		complaint.Status = "banned"
	}
	if err := s.Storage.SaveComplaint(complaint); err != nil {
		return false, fmt.Errorf("save complaint: %w", err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"target":    complaint.TargetID,
		"severity":  complaint.Severity,
		"weight":    total,
		"reporters": reporters,
	})
	if !ban {
		entry.Info("complaint recorded")
		return false, nil
	}

	duration, err := s.Storage.BanUser(complaint.TargetID, complaint.Reason)
	if err != nil {
		return false, fmt.Errorf("ban user: %w", err)
	}
	entry.WithField("duration", duration).Warn("user banned")
	return true, nil
}

// IsBanned reports whether a user currently has an active ban.
func (s *Service) IsBanned(anonID string) (bool, error) {
	return s.Storage.IsUserBanned(anonID)
}
