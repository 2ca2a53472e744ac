package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"salonbook/internal/auth"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/catalog"
	"salonbook/internal/config"
	"salonbook/internal/db"
	"salonbook/internal/salonapi"
	"salonbook/shared/access"
	"salonbook/shared/reminders"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID int64 = 42
	chatID int64 = 4200
)

var (
	monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	braids = salonapi.Style{ID: "1", Name: "Box Braids", Category: "braids", PriceMin: 120, DurationMinutes: 60}
	fade   = salonapi.Style{ID: "2", Name: "Taper Fade", Category: "cut", PriceMin: 35, DurationMinutes: 30}
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	sendErr  error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, f.sendErr
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "salon_test_bot"}
}

func (f *fakeTelegram) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeTelegram) lastText() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

// lastPicker returns the most recent time picker edit.
func (f *fakeTelegram) lastPicker() (tgbotapi.EditMessageTextConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if e, ok := f.sent[i].(tgbotapi.EditMessageTextConfig); ok && e.ReplyMarkup != nil {
			return e, true
		}
	}
	return tgbotapi.EditMessageTextConfig{}, false
}

func (f *fakeTelegram) sentOfType(match func(tgbotapi.Chattable) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if match(c) {
			n++
		}
	}
	return n
}

type fakeBackend struct {
	mu        sync.Mutex
	taken     []availability.TakenSlot
	created   []salonapi.CreateAppointmentRequest
	cancelled []string
	createErr error
	takenErr  error
	pair      *salonapi.TokenPair
	profile   salonapi.Profile
	patches   []salonapi.ProfilePatch
	appts     []salonapi.Appointment
}

func (f *fakeBackend) setTaken(t []availability.TakenSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taken = t
}

func (f *fakeBackend) setTakenErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.takenErr = err
}

func (f *fakeBackend) TakenSlots(context.Context, time.Time) ([]availability.TakenSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takenErr != nil {
		return nil, f.takenErr
	}
	return append([]availability.TakenSlot(nil), f.taken...), nil
}

func (f *fakeBackend) UpcomingBookings(context.Context) ([]availability.OwnBooking, error) {
	return nil, nil
}

func (f *fakeBackend) UpcomingAppointments(context.Context) ([]salonapi.Appointment, error) {
	return f.appts, nil
}

func (f *fakeBackend) CreateAppointment(_ context.Context, req salonapi.CreateAppointmentRequest) (*salonapi.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &salonapi.Appointment{ID: "a1", StyleID: req.StyleID, Start: req.Start}, nil
}

func (f *fakeBackend) StartCheckout(_ context.Context, id string) (string, error) {
	return "https://pay.example.com/" + id, nil
}

func (f *fakeBackend) CancelAppointment(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (*salonapi.TokenPair, error) {
	if f.pair == nil || password != "Secret123" {
		return nil, salonapi.ErrUnauthorized
	}
	return f.pair, nil
}

func (f *fakeBackend) Register(context.Context, salonapi.RegisterRequest) error { return nil }

func (f *fakeBackend) ResetPassword(context.Context, string) error { return nil }

func (f *fakeBackend) GetProfile(context.Context) (*salonapi.Profile, error) {
	p := f.profile
	return &p, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, patch salonapi.ProfilePatch) (*salonapi.Profile, error) {
	f.patches = append(f.patches, patch)
	p := f.profile
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	return &p, nil
}

type fakeStyles struct{}

func (fakeStyles) Styles(context.Context) ([]salonapi.Style, error) {
	return []salonapi.Style{braids, fade}, nil
}

func (fakeStyles) Search(_ context.Context, f catalog.Filter) ([]salonapi.Style, error) {
	return catalog.Apply([]salonapi.Style{braids, fade}, f), nil
}

func (fakeStyles) Style(_ context.Context, id string) (salonapi.Style, error) {
	for _, s := range []salonapi.Style{braids, fade} {
		if s.ID == id {
			return s, nil
		}
	}
	return salonapi.Style{}, catalog.ErrUnknownStyle
}

type fakeAccess struct {
	blocked  map[int64]string
	managers map[int64]bool
}

func (f *fakeAccess) Middleware(_ context.Context, id int64) error {
	if reason, ok := f.blocked[id]; ok {
		return &access.AccessDeniedError{Reason: reason}
	}
	return nil
}

func (f *fakeAccess) ManagerMiddleware(_ context.Context, id int64) error {
	if !f.managers[id] {
		return &access.AccessDeniedError{Reason: "This command is for managers only."}
	}
	return nil
}

func (f *fakeAccess) IsManager(_ context.Context, id int64) (bool, error) {
	return f.managers[id], nil
}

func (f *fakeAccess) BlockUser(_ context.Context, id int64, reason string, _ int64) error {
	f.blocked[id] = reason
	return nil
}

func (f *fakeAccess) UnblockUser(_ context.Context, id, _ int64) error {
	delete(f.blocked, id)
	return nil
}

func (f *fakeAccess) GetManagerChatIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id := range f.managers {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeReporter struct {
	months []time.Time
}

func (f *fakeReporter) SendReport(_ context.Context, month time.Time) error {
	f.months = append(f.months, month)
	return nil
}

type testBot struct {
	*Bot
	tg      *fakeTelegram
	backend *fakeBackend
	access  *fakeAccess
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	tg := &fakeTelegram{}
	backend := &fakeBackend{}
	acl := &fakeAccess{blocked: map[int64]string{}, managers: map[int64]bool{}}
	flow := booking.NewFlow(booking.FlowConfig{
		Schedule:   availability.DefaultBusinessHours(),
		Location:   time.UTC,
		MaxAdvance: 30 * 24 * time.Hour,
		Now:        func() time.Time { return monday.Add(9*time.Hour + 10*time.Minute) },
	})
	b, err := NewWithTelegramClient(tg, Deps{
		Backend: func(context.Context, *auth.Session) Backend { return backend },
		Styles:  fakeStyles{},
		Access:  acl,
		Auth:    auth.NewRegistry(nil),
		Flow:    flow,
		Salon:   config.SalonInfo{Name: "Crown & Co", Address: "12 Main St", Phone: "704-555-0100"},
	})
	require.NoError(t, err)
	return &testBot{Bot: b, tg: tg, backend: backend, access: acl}
}

func (tb *testBot) message(text string) {
	msg := &tgbotapi.Message{
		MessageID: 1000,
		From:      &tgbotapi.User{ID: userID, FirstName: "Jane"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	tb.handleUpdate(context.Background(), &tgbotapi.Update{Message: msg})
	tb.wg.Wait()
}

func (tb *testBot) callback(msgID int, data string) {
	cq := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: msgID, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}
	tb.handleUpdate(context.Background(), &tgbotapi.Update{CallbackQuery: cq})
	tb.wg.Wait()
}

// toTimePicker walks a guest booking up to the loaded time picker.
func (tb *testBot) toTimePicker(t *testing.T) int {
	t.Helper()
	tb.message("/book")
	tb.callback(1, "sty:1")
	tb.message("Jane Doe\njane@example.com")
	tb.callback(2, "date:2026-10-19")
	picker := tb.state.get(userID).Picker
	require.NotZero(t, picker)
	require.NotNil(t, tb.state.get(userID).Result)
	return picker
}

func buttonTexts(m tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range m.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Text)
		}
	}
	return out
}

func TestGenerateCalendarKeyboard(t *testing.T) {
	month := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	first := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 0, 30)
	allowed := func(d time.Time) bool {
		return !d.Before(first) && d.Weekday() != time.Sunday
	}

	kb := GenerateCalendarKeyboard(month, first, last, allowed)
	rows := kb.InlineKeyboard

	assert.Equal(t, " ", rows[0][0].Text, "no way back before the first bookable month")
	assert.Equal(t, "▶️", rows[0][2].Text)
	assert.Equal(t, "cal:2026-11", *rows[0][2].CallbackData)
	assert.Equal(t, "October 2026", rows[0][1].Text)
	assert.Equal(t, "Mo", rows[1][0].Text)

	// October 1st 2026 is a Thursday.
	assert.Equal(t, " ", rows[2][0].Text)
	assert.Equal(t, "·", rows[2][3].Text)

	var dates []string
	for _, row := range rows[2 : len(rows)-1] {
		for _, b := range row {
			if strings.HasPrefix(*b.CallbackData, "date:") {
				dates = append(dates, *b.CallbackData)
			}
		}
	}
	assert.Contains(t, dates, "date:2026-10-19")
	assert.NotContains(t, dates, "date:2026-10-18", "past")
	assert.NotContains(t, dates, "date:2026-10-25", "sunday")

	lastRow := rows[len(rows)-1]
	assert.Equal(t, cbBack, *lastRow[0].CallbackData)
	assert.Equal(t, cbCancel, *lastRow[1].CallbackData)
}

func TestGenerateTimeSlotsKeyboard(t *testing.T) {
	slots := []TimeSlot{
		{Label: "09:00", CallbackData: "slot:540"},
		{Label: "09:30", CallbackData: "slot:570", Available: true},
		{Label: "10:00", CallbackData: "slot:600", Available: true},
		{Label: "10:30", CallbackData: "slot:630", Available: true},
		{Label: "11:00", CallbackData: "slot:660", Available: true},
	}
	kb := GenerateTimeSlotsKeyboard(slots)

	require.Len(t, kb.InlineKeyboard, 3)
	assert.Len(t, kb.InlineKeyboard[0], 4)
	assert.Equal(t, "⛔ 09:00", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "slot:540", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "11:00", kb.InlineKeyboard[1][0].Text)
	assert.Equal(t, cbRefresh, *kb.InlineKeyboard[2][0].CallbackData)
}

func TestParseContact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want booking.ContactInfo
	}{
		{"lines", "Jane Doe\njane@example.com\n704-555-0123", booking.ContactInfo{Name: "Jane Doe", Email: "jane@example.com", Phone: "704-555-0123"}},
		{"commas", "Jane Doe, jane@example.com", booking.ContactInfo{Name: "Jane Doe", Email: "jane@example.com"}},
		{"name only", "Jane", booking.ContactInfo{Name: "Jane"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseContact(tt.in))
		})
	}
}

func TestGuestBookingFlow(t *testing.T) {
	tb := newTestBot(t)
	tb.backend.setTaken([]availability.TakenSlot{
		{Start: 12 * 60, DurationMinutes: 60, Contact: availability.Contact{Email: "other@example.com"}},
		{Start: 14 * 60, DurationMinutes: 60, Contact: availability.Contact{Email: "JANE@example.com"}},
	})

	tb.message("/book")
	tb.callback(1, "sty:1")
	assert.Equal(t, booking.StateAskContact, tb.sessions.Get(userID).GetState(), "guests give their contact before the date")
	assert.True(t, containsText(tb.tg.texts(), "contact details"))

	picker := tb.toTimePicker(t)
	edit, ok := tb.tg.lastPicker()
	require.True(t, ok)
	assert.Equal(t, picker, edit.MessageID)
	labels := buttonTexts(*edit.ReplyMarkup)
	assert.Contains(t, labels, "⛔ 09:00", "past")
	assert.Contains(t, labels, "10:00")
	assert.Contains(t, labels, "⛔ 18:30", "runs past closing")
	assert.Contains(t, labels, "12:00", "someone else's booking does not block a guest")
	assert.Contains(t, labels, "⛔ 14:00", "the guest's own booking blocks")
	assert.Contains(t, labels, "⛔ 13:30", "a 60 minute style at 13:30 runs into the guest's 14:00")

	tb.callback(picker, "slot:540")
	assert.Equal(t, booking.StateChooseTime, tb.sessions.Get(userID).GetState())
	assert.Contains(t, tb.tg.requests, tgbotapi.Chattable(tgbotapi.NewCallback("cb", reasonText(availability.ReasonPast))))

	tb.callback(picker, "slot:600")
	assert.Equal(t, booking.StateAskNotes, tb.sessions.Get(userID).GetState())

	tb.callback(0, "notes:skip")
	assert.Contains(t, tb.tg.lastText(), "Please confirm your booking")

	tb.callback(0, "confirm")
	require.Len(t, tb.backend.created, 1)
	req := tb.backend.created[0]
	assert.Equal(t, "1", req.StyleID)
	assert.Equal(t, monday.Add(10*time.Hour), req.Start)
	assert.Equal(t, "Jane Doe", req.CustomerName)
	assert.Equal(t, "jane@example.com", req.CustomerEmail)
	assert.Contains(t, tb.tg.lastText(), "Booked")
	assert.Nil(t, tb.sessions.Get(userID))
}

func TestConfirmRechecksAvailability(t *testing.T) {
	tb := newTestBot(t)
	picker := tb.toTimePicker(t)
	tb.callback(picker, "slot:600")
	tb.callback(0, "notes:skip")

	// The same guest booked 10:00 from another device meanwhile.
	tb.backend.setTaken([]availability.TakenSlot{
		{Start: 10 * 60, DurationMinutes: 60, Contact: availability.Contact{Email: "jane@example.com"}},
	})
	tb.callback(0, "confirm")

	assert.Empty(t, tb.backend.created)
	s := tb.sessions.Get(userID)
	require.NotNil(t, s)
	assert.Equal(t, booking.StateChooseTime, s.GetState())
	assert.False(t, s.Snapshot().Selection.HasSlot())

	texts := tb.tg.texts()
	assert.True(t, containsText(texts, "can't be booked"))
	edit, ok := tb.tg.lastPicker()
	require.True(t, ok)
	assert.Contains(t, buttonTexts(*edit.ReplyMarkup), "⛔ 10:00")
}

func TestCreateAppointmentRejected(t *testing.T) {
	tb := newTestBot(t)
	picker := tb.toTimePicker(t)
	tb.callback(picker, "slot:600")
	tb.callback(0, "notes:skip")

	tb.backend.createErr = &salonapi.APIError{Status: 400, Detail: "Style is not offered on Mondays."}
	tb.callback(0, "confirm")

	assert.Equal(t, "The salon could not accept the booking: Style is not offered on Mondays.", tb.tg.lastText())
	assert.Equal(t, booking.StateConfirm, tb.sessions.Get(userID).GetState())
}

func TestConfirmWithFeedDown(t *testing.T) {
	tb := newTestBot(t)
	picker := tb.toTimePicker(t)
	tb.callback(picker, "slot:600")
	tb.callback(0, "notes:skip")

	tb.backend.setTakenErr(errors.New("connection refused"))
	tb.callback(0, "confirm")

	require.Len(t, tb.backend.created, 1, "the backend validates when the feed is down")
	assert.Equal(t, monday.Add(10*time.Hour), tb.backend.created[0].Start)
	assert.True(t, containsText(tb.tg.texts(), "Booked"))
	assert.Nil(t, tb.sessions.Get(userID))
}

func TestFetchFailureKeepsLastTimes(t *testing.T) {
	tb := newTestBot(t)
	tb.backend.setTaken([]availability.TakenSlot{
		{Start: 12 * 60, DurationMinutes: 60, Contact: availability.Contact{Email: "jane@example.com"}},
	})
	picker := tb.toTimePicker(t)
	edit, ok := tb.tg.lastPicker()
	require.True(t, ok)
	require.Contains(t, buttonTexts(*edit.ReplyMarkup), "⛔ 12:00")

	tb.backend.setTakenErr(errors.New("timeout"))
	tb.callback(picker, "date:2026-10-19")

	edit, ok = tb.tg.lastPicker()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(edit.Text, msgFetchFailed), edit.Text)
	labels := buttonTexts(*edit.ReplyMarkup)
	assert.Contains(t, labels, "⛔ 12:00", "the last loaded bookings still apply")
	assert.Contains(t, labels, "10:00")
	assert.NotNil(t, tb.state.get(userID).Result, "times stay pickable")
}

func TestClosedDayIsRejected(t *testing.T) {
	tb := newTestBot(t)
	tb.message("/book")
	tb.callback(1, "sty:1")
	tb.message("Jane Doe\njane@example.com")
	tb.callback(2, "date:2026-10-25")

	assert.Equal(t, booking.StateChooseDate, tb.sessions.Get(userID).GetState())
	assert.Contains(t, tb.tg.requests, tgbotapi.Chattable(tgbotapi.NewCallback("cb", "The salon is closed that day.")))
}

func TestCancelDialog(t *testing.T) {
	tb := newTestBot(t)
	tb.message("/book")
	tb.callback(1, cbCancel)

	assert.Nil(t, tb.sessions.Get(userID))
	assert.Equal(t, "Booking cancelled.", tb.tg.lastText())
}

func TestBlockedUser(t *testing.T) {
	tb := newTestBot(t)
	tb.access.blocked[userID] = "Your access to the bot is blocked: spam"

	tb.message("/book")

	assert.Equal(t, []string{"Your access to the bot is blocked: spam"}, tb.tg.texts())
	assert.Nil(t, tb.sessions.Get(userID))
}

func signedToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "7",
		"email":   "jane@example.com",
		"name":    "Jane Doe",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte("test"))
	require.NoError(t, err)
	return s
}

func TestLogin(t *testing.T) {
	tb := newTestBot(t)
	tb.backend.pair = &salonapi.TokenPair{Access: signedToken(t), Refresh: "r"}

	tb.message("/login")
	tb.message("jane@example.com")
	assert.Equal(t, inputLoginPassword, tb.state.get(userID).Input)

	tb.message("Secret123")
	assert.True(t, tb.auth.Get(userID).IsAuthenticated())
	assert.Equal(t, inputNone, tb.state.get(userID).Input)
	assert.Equal(t, "Welcome, Jane! You are signed in.", tb.tg.lastText())
	assert.Contains(t, tb.tg.requests, tgbotapi.Chattable(tgbotapi.NewDeleteMessage(chatID, 1000)))
}

func TestLoginWrongPassword(t *testing.T) {
	tb := newTestBot(t)
	tb.backend.pair = &salonapi.TokenPair{Access: signedToken(t)}

	tb.message("/login")
	tb.message("jane@example.com")
	tb.message("nope")

	assert.False(t, tb.auth.Get(userID).IsAuthenticated())
	assert.Contains(t, tb.tg.lastText(), "Wrong email or password")
}

func TestProfilePhoneUpdate(t *testing.T) {
	tb := newTestBot(t)
	tb.backend.pair = &salonapi.TokenPair{Access: signedToken(t)}
	tb.backend.profile = salonapi.Profile{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"}
	require.NoError(t, tb.auth.Get(userID).SignIn(tb.backend.pair))

	tb.callback(1, "prof:phone")
	tb.message("12")
	assert.Empty(t, tb.backend.patches, "invalid phone is not sent")
	assert.Equal(t, inputProfilePhone, tb.state.get(userID).Input)

	tb.message("704-555-0123")
	require.Len(t, tb.backend.patches, 1)
	assert.Equal(t, "704-555-0123", *tb.backend.patches[0].Phone)
	assert.Contains(t, tb.tg.lastText(), "Profile updated.")
}

func TestCancelAppointmentRequiresLogin(t *testing.T) {
	tb := newTestBot(t)
	tb.message("/cancel_booking 17")
	assert.Equal(t, msgLoginFirst, tb.tg.lastText())

	require.NoError(t, tb.auth.Get(userID).SignIn(&salonapi.TokenPair{Access: signedToken(t)}))
	tb.message("/cancel_booking #17")
	assert.Equal(t, []string{"17"}, tb.backend.cancelled)
	assert.Equal(t, "Appointment #17 is cancelled.", tb.tg.lastText())
}

func TestExport(t *testing.T) {
	tests := []struct {
		name    string
		manager bool
		args    string
		want    []time.Time
		reply   string
	}{
		{name: "not a manager", args: "", reply: "This command is for managers only."},
		{name: "previous month", manager: true, want: []time.Time{time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)}},
		{name: "explicit month", manager: true, args: "2026-03", want: []time.Time{time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}},
		{name: "bad month", manager: true, args: "march", reply: "Usage: /export [YYYY-MM]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t)
			tb.access.managers[userID] = tt.manager
			rep := &fakeReporter{}
			tb.UseReporter(rep)

			tb.message(strings.TrimSpace("/export " + tt.args))
			assert.Equal(t, tt.want, rep.months)
			if tt.reply != "" {
				assert.Equal(t, tt.reply, tb.tg.lastText())
			}
		})
	}
}

func TestSendReminderMapsTelegramErrors(t *testing.T) {
	tb := newTestBot(t)
	tb.tg.sendErr = &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 3",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3},
	}

	err := tb.SendReminder(context.Background(), userID, &db.JournalEntry{
		StyleName: "Box Braids",
		StartTime: monday.Add(34 * time.Hour),
	})
	tgErr, ok := reminders.IsTelegramError(err)
	require.True(t, ok)
	assert.Equal(t, 429, tgErr.Code)
	assert.Equal(t, 3, tgErr.RetryAfter)

	tb.tg.sendErr = nil
	require.NoError(t, tb.SendReminder(context.Background(), userID, &db.JournalEntry{
		StyleName: "Box Braids",
		StartTime: monday.Add(24*time.Hour + 10*time.Hour),
	}))
	assert.Equal(t, "⏰ Reminder: Box Braids on Tue, Oct 20 at 10:00.\n📍 12 Main St\nNeed to reschedule? Call 704-555-0100.", tb.tg.lastText())
}

func TestSendDocumentToManagers(t *testing.T) {
	tb := newTestBot(t)
	tb.access.managers[10] = true
	tb.access.managers[20] = true

	err := tb.SendDocument(context.Background(), "bookings_2026_09.xlsx", bytes.NewReader([]byte("xlsx")), "September")
	require.NoError(t, err)
	docs := tb.tg.sentOfType(func(c tgbotapi.Chattable) bool {
		_, ok := c.(tgbotapi.DocumentConfig)
		return ok
	})
	assert.Equal(t, 2, docs)

	tb.access.managers = map[int64]bool{}
	err = tb.SendDocument(context.Background(), "x.xlsx", bytes.NewReader(nil), "")
	assert.Error(t, err)
}

func TestTelegramErrorPassthrough(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Equal(t, plain, telegramError(plain))
}

func containsText(texts []string, sub string) bool {
	for _, t := range texts {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}
