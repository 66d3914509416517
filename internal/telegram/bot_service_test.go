package telegram

import (
	"dilse/backend/internal/chathub"
	"dilse/backend/internal/localization"
	"dilse/backend/internal/models"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeSender collects the texts sent to every chat.
type fakeSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[int64][]string)}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[msg.ChatID] = append(f.sent[msg.ChatID], msg.Text)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[chatID]...)
}

// waitFor waits until the chat received a text containing want.
func (f *fakeSender) waitFor(t *testing.T, chatID int64, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, text := range f.texts(chatID) {
			if strings.Contains(text, want) {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "chat %d never received %q; got %v", chatID, want, f.texts(chatID))
}

type mockBans struct {
	mock.Mock
}

func (m *mockBans) IsUserBanned(anonID string) (bool, error) {
	args := m.Called(anonID)
	return args.Bool(0), args.Error(1)
}

func setup(t *testing.T, opts chathub.Options) (*BotService, *fakeSender) {
	t.Helper()
	l, err := localization.NewLocalizer()
	require.NoError(t, err)
	sender := newFakeSender()
	hub := chathub.NewManagerService(nil, opts, nil)
	return newBotService(sender, hub, l, nil, nil), sender
}

func command(chatID int64, text string) tgbotapi.Update {
	name := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
		From:     &tgbotapi.User{ID: chatID, LanguageCode: "en"},
		Chat:     tgbotapi.Chat{ID: chatID},
	}}
}

func text(chatID int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: body,
		From: &tgbotapi.User{ID: chatID, LanguageCode: "en"},
		Chat: tgbotapi.Chat{ID: chatID},
	}}
}

func TestBot_FindPairAndChat(t *testing.T) {
	s, sender := setup(t, chathub.Options{RequeueDelay: time.Hour})

	s.HandleUpdate(command(1, "/find Olena girl boy 22 Kyiv"))
	sender.waitFor(t, 1, "Searching")
	s.HandleUpdate(command(2, "/find Taras boy girl 23 Kyiv"))

	sender.waitFor(t, 1, "talking to Taras")
	sender.waitFor(t, 2, "talking to Olena")

	s.HandleUpdate(text(1, "hi"))
	sender.waitFor(t, 2, "Olena: hi")

	history, err := s.Hub.Replay(ClientID(2))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ClientID(1), history[0].SenderID)

	s.HandleUpdate(command(2, "/history"))
	sender.waitFor(t, 2, "Chat so far:\nOlena: hi")

	s.HandleUpdate(command(2, "/stop"))
	sender.waitFor(t, 2, "You left the chat")
	sender.waitFor(t, 1, "Your partner left")
}

func TestBot_ReusesClientPerChat(t *testing.T) {
	s, _ := setup(t, chathub.Options{})

	s.HandleUpdate(command(1, "/start"))
	s.HandleUpdate(command(1, "/help"))
	assert.Equal(t, 1, s.Hub.Stats().Online)

	first := s.clients[1]
	s.Hub.Unregister(first)
	s.HandleUpdate(command(1, "/start"))
	assert.NotSame(t, first, s.clients[1], "a dropped client is replaced")
	assert.Equal(t, 1, s.Hub.Stats().Online)
}

func TestBot_Errors(t *testing.T) {
	s, sender := setup(t, chathub.Options{})

	s.HandleUpdate(command(1, "/find Olena"))
	sender.waitFor(t, 1, "Usage: /find")

	s.HandleUpdate(command(1, "/find Olena girl boy old Kyiv"))
	s.HandleUpdate(command(1, "/find Olena girl boy 500 Kyiv"))
	sender.waitFor(t, 1, "That profile does not look right")

	s.HandleUpdate(text(1, "hello?"))
	sender.waitFor(t, 1, "You are not in a chat")

	s.HandleUpdate(command(1, "/dance"))
	sender.waitFor(t, 1, "Unknown command")

	s.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: tgbotapi.Chat{ID: 1}}})
	sender.waitFor(t, 1, "Only text messages")
}

func TestBot_OfferFromBrowserPartner(t *testing.T) {
	s, sender := setup(t, chathub.Options{})

	browser := &recordingClient{id: "web-1"}
	s.Hub.Attach(browser)
	require.NoError(t, s.Hub.Register("web-1", models.Profile{Name: "Web", Gender: "girl", LookingFor: "boy", Age: 20, City: "kyiv"}))
	s.HandleUpdate(command(7, "/find Taras boy girl 23 Kyiv"))
	sender.waitFor(t, 7, "talking to Web")

	require.NoError(t, s.Hub.Relay("web-1", chathub.KindOffer, []byte(`{"type":"offer","sdp":"v=0"}`)))
	sender.waitFor(t, 7, "calls are not available")
}

func TestBot_Language(t *testing.T) {
	s, sender := setup(t, chathub.Options{})

	s.HandleUpdate(command(1, "/language uk"))
	sender.waitFor(t, 1, "Мову змінено")
	s.HandleUpdate(command(1, "/find Олена girl boy 22 Київ"))
	sender.waitFor(t, 1, "Шукаємо")

	s.HandleUpdate(command(1, "/language xx"))
	sender.waitFor(t, 1, "/language <en|uk>")
}

func TestBot_BannedChat(t *testing.T) {
	s, sender := setup(t, chathub.Options{})
	bans := new(mockBans)
	s.Bans = bans
	bans.On("IsUserBanned", ClientID(9)).Return(true, nil)

	s.HandleUpdate(command(9, "/start"))
	sender.waitFor(t, 9, "temporarily banned")
	assert.Zero(t, s.Hub.Stats().Online)
}

func TestParseProfile(t *testing.T) {
	p, ok := parseProfile("Taras boy girl 23 New York")
	require.True(t, ok)
	assert.Equal(t, models.Profile{Name: "Taras", Gender: "boy", LookingFor: "girl", Age: 23, City: "New York"}, p)

	_, ok = parseProfile("Taras boy girl")
	assert.False(t, ok)
	_, ok = parseProfile("Taras boy girl x Kyiv")
	assert.False(t, ok)
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "tg:42", ClientID(42))
	assert.Equal(t, "tg:-100", ClientID(-100))
}

// recordingClient stands in for a browser connection.
type recordingClient struct {
	id string
}

func (r *recordingClient) GetUserID() string            { return r.id }
func (r *recordingClient) Deliver(models.Envelope) bool { return true }
func (r *recordingClient) Run()                         {}
func (r *recordingClient) Close()                       {}
