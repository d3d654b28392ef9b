package handler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-purge/internal/cache"
	"chat-purge/internal/config"
	"chat-purge/internal/platform"
	"chat-purge/internal/purge"
	"chat-purge/internal/service"
)

type sent struct {
	chatID int64
	text   string
	markup telego.ReplyMarkup
}

type fakeBot struct {
	mu      sync.Mutex
	nextID  int
	sent    []sent
	edits   []string
	answers []telego.AnswerCallbackQueryParams
	admins  map[int64]bool
}

func (f *fakeBot) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sent{chatID: params.ChatID.ID, text: params.Text, markup: params.ReplyMarkup})
	return &telego.Message{MessageID: f.nextID, Chat: telego.Chat{ID: params.ChatID.ID}}, nil
}

func (f *fakeBot) EditMessageText(_ context.Context, params *telego.EditMessageTextParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, params.Text)
	return &telego.Message{MessageID: params.MessageID}, nil
}

func (f *fakeBot) AnswerCallbackQuery(_ context.Context, params *telego.AnswerCallbackQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, *params)
	return nil
}

func (f *fakeBot) GetChatMember(_ context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	if f.admins[params.UserID] {
		return &telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator, User: telego.User{ID: params.UserID}}, nil
	}
	return &telego.ChatMemberMember{Status: telego.MemberStatusMember, User: telego.User{ID: params.UserID}}, nil
}

func (f *fakeBot) lastSent() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeBot) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1]
}

type fakePlatform struct {
	mu      sync.Mutex
	history map[string][]platform.HistoryMessage
	deleted []string
}

func (f *fakePlatform) Name() string { return "fake" }

func (f *fakePlatform) Channels(context.Context) ([]platform.Channel, error) {
	return []platform.Channel{{ID: "-100"}, {ID: "-200"}}, nil
}

func (f *fakePlatform) History(_ context.Context, ch platform.Channel, fn func(platform.HistoryMessage) error) error {
	for _, m := range f.history[ch.ID] {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePlatform) DeleteBatch(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakePlatform) DeleteOne(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type recorder struct {
	recorded []int
}

func (r *recorder) Record(_ context.Context, msg *telego.Message) error {
	r.recorded = append(r.recorded, msg.MessageID)
	return nil
}

const (
	groupID = int64(-100)
	adminID = int64(42)
	otherID = int64(7)
)

func newTestHandler(t *testing.T) (*Handler, *fakeBot, *fakePlatform, *recorder) {
	t.Helper()
	now := time.Now()
	p := &fakePlatform{history: map[string][]platform.HistoryMessage{
		"-100": {
			{ID: "1", AuthorID: "1", Content: "hello world", Timestamp: now},
			{ID: "2", AuthorID: "2", Content: "goodbye world", Timestamp: now},
		},
		"-200": {
			{ID: "3", AuthorID: "1", Content: "hello there", Timestamp: now},
		},
	}}

	sched := purge.NewScheduler(p, purge.DefaultOptions())
	sched.Sleep = func(context.Context, time.Duration) error { return nil }
	purger := service.NewPurger(service.Options{
		Platform:  p,
		Cache:     cache.NewStore("", 24*time.Hour),
		Scheduler: sched,
	})

	bot := &fakeBot{admins: map[int64]bool{adminID: true, otherID: true}}
	rec := &recorder{}
	cfg := &config.Config{Bot: config.BotConfig{AdminOnly: true}}
	return New(context.Background(), bot, purger, rec, cfg), bot, p, rec
}

func groupMessage(id int, from int64, text string) telego.Message {
	return telego.Message{
		MessageID: id,
		Chat:      telego.Chat{ID: groupID, Type: telego.ChatTypeSupergroup},
		From:      &telego.User{ID: from, LanguageCode: "en"},
		Text:      text,
	}
}

func callback(from int64, data string) telego.CallbackQuery {
	return telego.CallbackQuery{
		ID:      "cb",
		From:    telego.User{ID: from, LanguageCode: "en"},
		Message: &telego.Message{MessageID: 99, Chat: telego.Chat{ID: groupID}},
		Data:    data,
	}
}

// buttons returns the confirm and cancel callback data of a /purge reply
func buttons(t *testing.T, msg sent) (confirm, cancel string) {
	t.Helper()
	kb, ok := msg.markup.(*telego.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard[0], 2)
	return kb.InlineKeyboard[0][0].CallbackData, kb.InlineKeyboard[0][1].CallbackData
}

func (f *fakeBot) lastAnswer() telego.AnswerCallbackQueryParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers[len(f.answers)-1]
}

func TestScanPurgeConfirmFlow(t *testing.T) {
	h, bot, p, _ := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleMessage(ctx, groupMessage(10, adminID, "/scan")))
	h.WaitForHandlers()
	assert.Contains(t, bot.lastEdit(), "Scan complete: 3 messages in 2 channels")

	require.NoError(t, h.HandleMessage(ctx, groupMessage(11, adminID, "/purge@PurgeBot hello")))
	last := bot.lastSent()
	assert.Contains(t, last.text, "Found <b>2</b> messages")
	confirm, cancel := buttons(t, last)
	assert.True(t, strings.HasPrefix(confirm, "purge:confirm:42:"))
	assert.True(t, strings.HasPrefix(cancel, "purge:cancel:42:"))
	// Telegram user ids fit in 52 bits and callback data in 64 bytes
	assert.LessOrEqual(t, len(callbackData("confirm", "4503599627370495", strings.TrimPrefix(confirm, "purge:confirm:42:"))), 64)

	// another admin cannot confirm someone else's purge
	require.NoError(t, h.HandleCallbackQuery(ctx, callback(otherID, confirm)))
	h.WaitForHandlers()
	require.Len(t, bot.answers, 1)
	assert.True(t, bot.answers[0].ShowAlert)
	assert.Empty(t, p.deleted)

	require.NoError(t, h.HandleCallbackQuery(ctx, callback(adminID, confirm)))
	h.WaitForHandlers()
	assert.Contains(t, bot.lastEdit(), "Purge finished: 2 deleted, 0 failed")
	assert.ElementsMatch(t, []string{"1", "3"}, p.deleted)
}

func TestOldConfirmButtonIsRejected(t *testing.T) {
	h, bot, p, _ := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.HandleMessage(ctx, groupMessage(1, adminID, "/scan")))
	h.WaitForHandlers()

	require.NoError(t, h.HandleMessage(ctx, groupMessage(2, adminID, "/purge goodbye")))
	oldConfirm, oldCancel := buttons(t, bot.lastSent())
	require.NoError(t, h.HandleMessage(ctx, groupMessage(3, adminID, "/purge hello")))
	newConfirm, _ := buttons(t, bot.lastSent())
	assert.NotEqual(t, oldConfirm, newConfirm)

	edits := len(bot.edits)
	require.NoError(t, h.HandleCallbackQuery(ctx, callback(adminID, oldConfirm)))
	h.WaitForHandlers()
	answer := bot.lastAnswer()
	assert.True(t, answer.ShowAlert)
	assert.Contains(t, answer.Text, "older /purge request")
	assert.Empty(t, p.deleted)
	assert.Len(t, bot.edits, edits)

	// the old cancel button must not drop the newer request either
	require.NoError(t, h.HandleCallbackQuery(ctx, callback(adminID, oldCancel)))
	assert.Contains(t, bot.lastAnswer().Text, "older /purge request")

	require.NoError(t, h.HandleCallbackQuery(ctx, callback(adminID, newConfirm)))
	h.WaitForHandlers()
	assert.Contains(t, bot.lastEdit(), "Purge finished: 2 deleted, 0 failed")
	assert.ElementsMatch(t, []string{"1", "3"}, p.deleted)
}

func TestDoubleConfirmStartsOneDeletion(t *testing.T) {
	h, bot, p, _ := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.HandleMessage(ctx, groupMessage(1, adminID, "/scan")))
	h.WaitForHandlers()

	require.NoError(t, h.HandleMessage(ctx, groupMessage(2, adminID, "/purge hello")))
	confirm, _ := buttons(t, bot.lastSent())
	sentBefore := len(bot.sent)

	// second tap arrives before the first deletion has finished
	require.NoError(t, h.HandleCallbackQuery(ctx, callback(adminID, confirm)))
	require.NoError(t, h.HandleCallbackQuery(ctx, callback(adminID, confirm)))
	require.NoError(t, h.HandleMessage(ctx, groupMessage(3, adminID, "/purge_confirm")))
	h.WaitForHandlers()

	require.Len(t, bot.answers, 2)
	assert.False(t, bot.answers[0].ShowAlert)
	assert.True(t, bot.answers[1].ShowAlert)
	assert.Contains(t, bot.answers[1].Text, "nothing waiting for confirmation")

	require.Len(t, bot.sent, sentBefore+1)
	assert.Contains(t, bot.lastSent().text, "nothing waiting for confirmation")

	started := 0
	for _, e := range bot.edits {
		if strings.Contains(e, "Deleting 2 messages") {
			started++
		}
	}
	assert.Equal(t, 1, started)
	assert.Contains(t, bot.lastEdit(), "Purge finished: 2 deleted, 0 failed")
	assert.ElementsMatch(t, []string{"1", "3"}, p.deleted)
}

func TestPurgeHereAndCancel(t *testing.T) {
	h, bot, _, _ := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.HandleMessage(ctx, groupMessage(1, adminID, "/scan")))
	h.WaitForHandlers()

	require.NoError(t, h.HandleMessage(ctx, groupMessage(2, adminID, "/purge hello -here")))
	assert.Contains(t, bot.lastSent().text, "Found <b>1</b> messages")

	require.NoError(t, h.HandleMessage(ctx, groupMessage(3, adminID, "/purge_cancel")))
	assert.Equal(t, "Purge cancelled.", bot.lastSent().text)

	require.NoError(t, h.HandleMessage(ctx, groupMessage(4, adminID, "/purge_confirm")))
	assert.Contains(t, bot.lastSent().text, "nothing waiting for confirmation")
}

func TestPurgeErrors(t *testing.T) {
	h, bot, _, _ := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleMessage(ctx, groupMessage(1, adminID, "/purge hello")))
	assert.Contains(t, bot.lastSent().text, "Run /scan first")

	require.NoError(t, h.HandleMessage(ctx, groupMessage(2, adminID, "/scan")))
	h.WaitForHandlers()

	require.NoError(t, h.HandleMessage(ctx, groupMessage(3, adminID, "/purge zebra")))
	assert.Contains(t, bot.lastSent().text, `No messages matched "zebra"`)

	require.NoError(t, h.HandleMessage(ctx, groupMessage(4, adminID, "/purge hello -percent 500")))
	assert.Contains(t, bot.lastSent().text, "between 1 and 100")

	require.NoError(t, h.HandleMessage(ctx, groupMessage(5, adminID, "/purge hello -user")))
	assert.Contains(t, bot.lastSent().text, "Usage:")

	require.NoError(t, h.HandleMessage(ctx, groupMessage(6, adminID, "/purge")))
	assert.Contains(t, bot.lastSent().text, "Give some text")
}

func TestNonAdminIsRejected(t *testing.T) {
	h, bot, _, _ := newTestHandler(t)
	require.NoError(t, h.HandleMessage(context.Background(), groupMessage(1, 1234, "/scan")))
	h.WaitForHandlers()
	assert.Equal(t, "Only group administrators can use this command.", bot.lastSent().text)
	assert.Empty(t, bot.edits)
}

func TestGroupMessagesAreJournaled(t *testing.T) {
	h, _, _, rec := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleMessage(ctx, groupMessage(1, 5, "just chatting")))
	require.NoError(t, h.HandleMessage(ctx, groupMessage(2, adminID, "/cache_status")))

	private := groupMessage(3, 5, "dm")
	private.Chat.Type = telego.ChatTypePrivate
	require.NoError(t, h.HandleMessage(ctx, private))

	fromBot := groupMessage(4, 5, "beep")
	fromBot.From.IsBot = true
	require.NoError(t, h.HandleMessage(ctx, fromBot))

	assert.Equal(t, []int{1}, rec.recorded)
}

func TestCacheStatus(t *testing.T) {
	h, bot, _, _ := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleMessage(ctx, groupMessage(1, adminID, "/cache_status")))
	assert.Equal(t, "No snapshot has been built yet.", bot.lastSent().text)

	require.NoError(t, h.HandleMessage(ctx, groupMessage(2, adminID, "/scan")))
	h.WaitForHandlers()
	require.NoError(t, h.HandleMessage(ctx, groupMessage(3, adminID, "/cache_status")))
	text := bot.lastSent().text
	assert.Contains(t, text, "Fresh: yes")
	assert.Contains(t, text, "Messages: 3, channels: 2, words: 4")
}

func TestParsePurgeArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    purgeArgs
		wantErr error
	}{
		{in: "buy now", want: purgeArgs{Text: "buy now"}},
		{in: "buy -here now", want: purgeArgs{Text: "buy now", Here: true}},
		{in: "spam -user 123 -percent 25", want: purgeArgs{Text: "spam", UserID: "123", Percentage: 25}},
		{in: "-percent 50% spam", want: purgeArgs{Text: "spam", Percentage: 50}},
		{in: "x -- -here -user", want: purgeArgs{Text: "x -here -user"}},
		{in: "-user", wantErr: errUsage},
		{in: "spam -percent", wantErr: errUsage},
		{in: "spam -percent 0", wantErr: errPercent},
		{in: "spam -percent abc", wantErr: errPercent},
		{in: "", want: purgeArgs{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePurgeArgs(strings.Fields(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand("/Purge@PurgeBot hello world")
	assert.Equal(t, "purge", cmd)
	assert.Equal(t, []string{"hello", "world"}, args)

	cmd, _ = splitCommand("hello /purge")
	assert.Empty(t, cmd)
}

func TestCallbackData(t *testing.T) {
	action, requester, opID, err := parseCallbackData(callbackData("confirm", "42", "op-1"))
	require.NoError(t, err)
	assert.Equal(t, "confirm", action)
	assert.Equal(t, "42", requester)
	assert.Equal(t, "op-1", opID)

	_, _, _, err = parseCallbackData("unban:1:2")
	assert.Error(t, err)
	_, _, _, err = parseCallbackData("purge:confirm:42")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "5m", formatDuration(5*time.Minute))
	assert.Equal(t, "24h00m", formatDuration(24*time.Hour))
	assert.Equal(t, "14d0h", formatDuration(14*24*time.Hour))
}

func TestProgressThrottle(t *testing.T) {
	h, bot, _, _ := newTestHandler(t)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := h.newProgressMessage(groupID, 5)
	p.now = func() time.Time { return clock }

	p.update("a")
	p.update("b")
	clock = clock.Add(4 * time.Second)
	p.update("c")
	p.finish("done")

	assert.Equal(t, []string{"a", "c", "done"}, bot.edits)
}
