package telegram

import (
	"dilse/backend/internal/chathub"
	"dilse/backend/internal/localization"
	"dilse/backend/internal/models"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const (
	clientIDPrefix = "tg:"
	sendBuffer     = 32
)

// Sender is the part of the Bot API the transport writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ClientID returns the hub connection id of a Telegram chat.
func ClientID(chatID int64) string {
	return clientIDPrefix + strconv.FormatInt(chatID, 10)
}

// Client реалізує інтерфейс chathub.Client для одного Telegram-чату
type Client struct {
	ChatID    int64
	AnonID    string
	Hub       *chathub.ManagerService
	Send      chan models.Envelope
	Bot       Sender
	Localizer *localization.Localizer

	log logrus.FieldLogger

	mu     sync.Mutex
	lang   string
	closed bool
}

func newClient(chatID int64, lang string, hub *chathub.ManagerService, bot Sender, l *localization.Localizer, log logrus.FieldLogger) *Client {
	id := ClientID(chatID)
	return &Client{
		ChatID:    chatID,
		AnonID:    id,
		Hub:       hub,
		Send:      make(chan models.Envelope, sendBuffer),
		Bot:       bot,
		Localizer: l,
		lang:      lang,
		log:       log.WithField("conn", id),
	}
}

func (c *Client) GetUserID() string { return c.AnonID }

func (c *Client) Deliver(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}

// Run запускає 'write pump'. 'Read pump' обробляється централізовано в BotService.
func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Language returns the chat's interface language.
func (c *Client) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

// SetLanguage changes the chat's interface language.
func (c *Client) SetLanguage(lang string) {
	c.mu.Lock()
	c.lang = lang
	c.mu.Unlock()
}

func (c *Client) text(key string) string {
	return c.Localizer.GetString(c.Language(), key)
}

// reply sends a plain text message to the chat.
func (c *Client) reply(text string) {
	if text == "" {
		return
	}
	if _, err := c.Bot.Send(tgbotapi.NewMessage(c.ChatID, text)); err != nil {
		c.log.WithError(err).Warn("failed to send telegram message")
	}
}

// writePump слухає канал Send і надсилає повідомлення в Telegram
func (c *Client) writePump() {
	for env := range c.Send {
		c.reply(c.render(env))
	}
	c.log.Debug("telegram write pump stopped")
}

// render turns a hub event into chat text. Events with no Telegram
// counterpart render as "".
func (c *Client) render(env models.Envelope) string {
	switch env.Event {
	case models.EventWaiting:
		return c.text("searching")

	case models.EventPaired:
		var p models.PairedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return ""
		}
		return fmt.Sprintf(c.text("match_found"), p.Name)

	case models.EventMessage:
		var m models.ChatMessage
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return ""
		}
		return m.From + ": " + m.Text

	case models.EventChatHistory:
		var history []models.ChatMessage
		if err := json.Unmarshal(env.Data, &history); err != nil || len(history) == 0 {
			// Fresh pairs always replay an empty log; stay quiet.
			return ""
		}
		lines := make([]string, 0, len(history)+1)
		lines = append(lines, c.text("history_header"))
		for _, m := range history {
			lines = append(lines, m.From+": "+m.Text)
		}
		return strings.Join(lines, "\n")

	case models.EventPartnerLeft:
		return c.text("partner_left")

	case models.EventOffer:
		return c.text("calls_not_supported")

	case models.EventError:
		var e models.ErrorPayload
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return ""
		}
		key := "error_" + e.Code
		if msg := c.text(key); msg != key {
			return msg
		}
		return fmt.Sprintf(c.text("error_generic"), e.Message)
	}

	// answer, ice, typing indicators
	return ""
}
