// Package telegram handles the integration with the Telegram Bot API.
// It is responsible for receiving updates from Telegram, processing them,
// and communicating with the central chat hub.
package telegram

import (
	"context"
	"dilse/backend/internal/chathub"
	"dilse/backend/internal/localization"
	"dilse/backend/internal/logging"
	"dilse/backend/internal/models"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const reportTimeout = 5 * time.Second

// BanChecker tells whether a connection id is banned.
type BanChecker interface {
	IsUserBanned(anonID string) (bool, error)
}

// BotService is responsible for receiving Telegram updates and routing them to the hub.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Sender    Sender
	Hub       *chathub.ManagerService
	Localizer *localization.Localizer
	Bans      BanChecker

	log     logrus.FieldLogger
	mu      sync.Mutex
	clients map[int64]*Client
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, hub *chathub.ManagerService, bans BanChecker, log logrus.FieldLogger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	localizer, err := localization.NewLocalizer()
	if err != nil {
		return nil, err
	}

	s := newBotService(bot, hub, localizer, bans, log)
	s.BotAPI = bot
	s.log.WithField("account", bot.Self.UserName).Info("telegram bot authorized")
	return s, nil
}

func newBotService(sender Sender, hub *chathub.ManagerService, l *localization.Localizer, bans BanChecker, log logrus.FieldLogger) *BotService {
	if log == nil {
		log = logging.Discard()
	}
	return &BotService{
		Sender:    sender,
		Hub:       hub,
		Localizer: l,
		Bans:      bans,
		log:       log.WithField("transport", "telegram"),
		clients:   make(map[int64]*Client),
	}
}

// Run is the main loop for receiving Telegram updates. It returns when ctx
// is done.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(update)
		}
	}
}

// HandleUpdate routes one update.
func (s *BotService) HandleUpdate(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	s.handleMessage(update.Message)
}

func languageCode(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return msg.From.LanguageCode
	}
	return ""
}

// getOrCreateClient returns the chat's live client, attaching a new one when
// the hub no longer knows the previous one.
func (s *BotService) getOrCreateClient(chatID int64, langCode string) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.clients[chatID]; ok && !existing.isClosed() {
		if conn, ok := s.Hub.Lookup(existing.AnonID); ok && conn.Client == chathub.Client(existing) {
			return existing
		}
	}

	c := newClient(chatID, s.Localizer.Language(langCode), s.Hub, s.Sender, s.Localizer, s.log)
	s.clients[chatID] = c
	s.Hub.Attach(c)
	c.Run()
	return c
}

func (s *BotService) send(chatID int64, text string) {
	if _, err := s.Sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.log.WithError(err).WithField("chat", chatID).Warn("failed to send telegram message")
	}
}

func (s *BotService) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	lang := s.Localizer.Language(languageCode(msg))

	if s.Bans != nil {
		banned, err := s.Bans.IsUserBanned(ClientID(chatID))
		if err != nil {
			s.log.WithError(err).WithField("chat", chatID).Error("ban check failed")
			return
		}
		if banned {
			s.send(chatID, s.Localizer.GetString(lang, "banned"))
			return
		}
	}

	c := s.getOrCreateClient(chatID, languageCode(msg))

	if msg.IsCommand() {
		s.handleCommand(c, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	if msg.Text == "" {
		c.reply(c.text("unsupported_message_type"))
		return
	}

	payload, err := json.Marshal(msg.Text)
	if err != nil {
		return
	}
	// Failures come back to the chat as "error" events.
	_ = s.Hub.HandleEnvelope(c, models.Envelope{Event: models.EventMessage, Data: payload})
}

func (s *BotService) handleCommand(c *Client, command, args string) {
	var err error
	switch command {
	case "start", "help":
		c.reply(c.text("help"))
		return

	case "find":
		profile, ok := parseProfile(args)
		if !ok {
			c.reply(c.text("find_usage"))
			return
		}
		err = s.Hub.Register(c.AnonID, profile)

	case "stop":
		if err = s.Hub.Leave(c.AnonID); err == nil {
			c.reply(c.text("left_chat"))
		}

	case "next":
		err = s.Hub.Next(c.AnonID)

	case "history":
		var history []models.ChatMessage
		if history, err = s.Hub.Replay(c.AnonID); err == nil {
			if len(history) == 0 {
				c.reply(c.text("history_empty"))
			} else {
				data, _ := json.Marshal(history)
				c.reply(c.render(models.Envelope{Event: models.EventChatHistory, Data: data}))
			}
		}

	case "report":
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		err = s.Hub.Report(ctx, c.AnonID, models.ReportInput{Reason: args, Severity: models.SeverityMedium})
		cancel()
		if err == nil {
			c.reply(c.text("report_submitted"))
		}

	case "language":
		lang := strings.ToLower(args)
		if !s.Localizer.Supports(lang) {
			c.reply(c.text("language_usage"))
			return
		}
		c.SetLanguage(lang)
		c.reply(c.text("language_changed"))
		return

	default:
		c.reply(c.text("unknown_command"))
		return
	}

	if err != nil {
		s.replyError(c, err)
	}
}

func (s *BotService) replyError(c *Client, err error) {
	code := chathub.ErrorCode(err)
	msg := err.Error()
	if code == "internal" {
		s.log.WithError(err).WithField("conn", c.AnonID).Error("telegram command failed")
		msg = "internal error"
	}
	data, _ := json.Marshal(models.ErrorPayload{Code: code, Message: msg})
	c.reply(c.render(models.Envelope{Event: models.EventError, Data: data}))
}

// parseProfile reads "name gender lookingFor age city...". The city may
// contain spaces.
func parseProfile(args string) (models.Profile, bool) {
	fields := strings.Fields(args)
	if len(fields) < 5 {
		return models.Profile{}, false
	}
	age, err := strconv.Atoi(fields[3])
	if err != nil {
		return models.Profile{}, false
	}
	return models.Profile{
		Name:       fields[0],
		Gender:     fields[1],
		LookingFor: fields[2],
		Age:        age,
		City:       strings.Join(fields[4:], " "),
	}, true
}
