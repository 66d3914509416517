package chathub

import (
	"context"
	"dilse/backend/internal/models"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const reportTimeout = 5 * time.Second

// ErrBanned is sent to a connection that is removed after reports.
var ErrBanned = errors.New("banned after reports")

// ComplaintHandler stores a complaint and decides whether its target must be
// banned.
type ComplaintHandler interface {
	HandleComplaint(ctx context.Context, complaint *models.Complaint) (banned bool, err error)
}

var relayEvents = map[string]RelayKind{
	models.EventOffer:      KindOffer,
	models.EventAnswer:     KindAnswer,
	models.EventICE:        KindICECandidate,
	models.EventMessage:    KindChat,
	models.EventTyping:     KindTyping,
	models.EventStopTyping: KindStopTyping,
}

// HandleEnvelope dispatches one inbound event of a client. Failures are sent
// back to the client as an "error" event and also returned.
func (m *ManagerService) HandleEnvelope(c Client, env models.Envelope) error {
	if !m.isCurrent(c) {
		return ErrUnknownConnection
	}

	err := m.dispatch(c, env)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"conn":  c.GetUserID(),
			"event": env.Event,
		}).WithError(err).Debug("event rejected")
		m.sendError(c, err)
	}
	return err
}

func (m *ManagerService) dispatch(c Client, env models.Envelope) error {
	id := c.GetUserID()

	if kind, ok := relayEvents[env.Event]; ok {
		return m.Relay(id, kind, env.Data)
	}

	switch env.Event {
	case models.EventRegister:
		var profile models.Profile
		if err := json.Unmarshal(env.Data, &profile); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		return m.Register(id, profile)

	case models.EventLeave:
		return m.Leave(id)

	case models.EventHistory:
		history, err := m.Replay(id)
		if err != nil {
			return err
		}
		m.send(c, models.EventChatHistory, history)
		return nil

	case models.EventReport:
		var in models.ReportInput
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &in); err != nil {
				return ErrBadPayload
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		return m.Report(ctx, id, in)
	}

	return ErrUnsupportedEvent
}

type transcriptLine struct {
	SenderID  string    `json:"sender_id"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`
}

// Report files a complaint against the reporter's current partner, with the
// pair's transcript attached. A partner the complaint handler bans is kicked.
func (m *ManagerService) Report(ctx context.Context, reporterID string, in models.ReportInput) error {
	m.mu.RLock()
	conn, ok := m.conns[reporterID]
	var pair *Pair
	if ok && conn.State == StatePaired {
		pair = m.pairs[conn.PairID]
	}
	m.mu.RUnlock()

	if !ok {
		return ErrUnknownConnection
	}
	if pair == nil {
		return ErrNoPartner
	}

	history := m.History.Replay(pair.ID)
	lines := make([]transcriptLine, 0, len(history))
	for _, msg := range history {
		lines = append(lines, transcriptLine{msg.SenderID, msg.From, msg.Text, msg.Timestamp})
	}
	logged, err := json.Marshal(lines)
	if err != nil {
		return err
	}

	severity := strings.ToLower(strings.TrimSpace(in.Severity))
	if severity == "" {
		severity = models.SeverityLow
	}
	complaint := &models.Complaint{
		ReporterID:     reporterID,
		TargetID:       pair.partnerOf(reporterID),
		RoomID:         pair.ID,
		Reason:         strings.TrimSpace(in.Reason),
		Severity:       severity,
		LoggedMessages: string(logged),
	}

	if m.complaints == nil {
		m.log.WithField("pair", pair.ID).Warn("report received but moderation is not configured")
		return nil
	}

	banned, err := m.complaints.HandleComplaint(ctx, complaint)
	if err != nil {
		return fmt.Errorf("handle complaint: %w", err)
	}
	if banned {
		m.log.WithField("conn", complaint.TargetID).Warn("partner banned after report")
		m.Kick(complaint.TargetID, ErrBanned)
	}
	return nil
}
