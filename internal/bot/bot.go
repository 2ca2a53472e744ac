// Package bot is the Telegram front end: the booking dialog, account
// commands and manager tools.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"salonbook/internal/auth"
	"salonbook/internal/booking"
	"salonbook/internal/config"
	"salonbook/internal/events"
	"salonbook/internal/loader"
	"salonbook/shared/access"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

const msgGeneric = "Something went wrong. Please try again in a moment."

// Deps are the services the bot talks to.
type Deps struct {
	Backend  BackendFor
	Styles   Styles
	Store    Store
	Access   AccessControl
	Events   Publisher
	Auth     *auth.Registry
	Flow     *booking.Flow
	Sessions *booking.SessionStore
	Salon    config.SalonInfo
	Logger   *zerolog.Logger
}

// Bot handles Telegram updates one at a time. Availability loads run in
// the background and only the latest one per user is rendered.
type Bot struct {
	tg       telegramClient
	backend  BackendFor
	styles   Styles
	store    Store
	access   AccessControl
	events   Publisher
	reporter Reporter
	auth     *auth.Registry
	flow     *booking.Flow
	sessions *booking.SessionStore
	salon    config.SalonInfo
	state    *stateStore
	logger   *zerolog.Logger

	mu         sync.Mutex
	loaders    map[int64]*loader.Loader
	subscribed map[int64]bool

	// background availability loads
	wg sync.WaitGroup
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: api}, deps)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, deps Deps) (*Bot, error) {
	return newBot(tg, deps)
}

func newBot(tg telegramClient, deps Deps) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if deps.Backend == nil || deps.Styles == nil || deps.Flow == nil {
		return nil, fmt.Errorf("backend, styles and flow are required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth registry is nil")
	}
	if deps.Sessions == nil {
		deps.Sessions = booking.NewSessionStore(0)
	}
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}
	return &Bot{
		tg:         tg,
		backend:    deps.Backend,
		styles:     deps.Styles,
		store:      deps.Store,
		access:     deps.Access,
		events:     deps.Events,
		auth:       deps.Auth,
		flow:       deps.Flow,
		sessions:   deps.Sessions,
		salon:      deps.Salon,
		state:      newStateStore(),
		logger:     deps.Logger,
		loaders:    make(map[int64]*loader.Loader),
		subscribed: make(map[int64]bool),
	}, nil
}

// UseReporter enables /export. The reporter usually sends through this bot,
// so it is set after construction.
func (b *Bot) UseReporter(r Reporter) {
	b.reporter = r
}

var (
	mainMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBook),
			tgbotapi.NewKeyboardButton(btnMyBookings),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStyles),
			tgbotapi.NewKeyboardButton(btnHelp),
		),
	)

	managerMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBook),
			tgbotapi.NewKeyboardButton(btnMyBookings),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStyles),
			tgbotapi.NewKeyboardButton(btnExport),
		),
	)
)

const (
	btnBook       = "🗓 Book"
	btnMyBookings = "📌 My bookings"
	btnStyles     = "💇 Styles"
	btnHelp       = "ℹ️ Help"
	btnExport     = "📊 Export"
)

func (b *Bot) sendMainMenu(ctx context.Context, chatID, userID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if b.isManager(ctx, userID) {
		msg.ReplyMarkup = managerMenu
	} else {
		msg.ReplyMarkup = mainMenu
	}
	b.send(msg)
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Salon bot authorized")

	cleanup := time.NewTicker(5 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			b.wg.Wait()
			return
		case <-cleanup.C:
			if n := b.sessions.Cleanup(); n > 0 {
				b.logger.Debug().Int("removed", n).Msg("expired booking sessions removed")
			}
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)

	var (
		userID int64
		chatID int64
	)
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		userID = update.CallbackQuery.From.ID
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
	case update.Message != nil && update.Message.From != nil:
		userID = update.Message.From.ID
		chatID = update.Message.Chat.ID
	default:
		return
	}

	if b.access != nil {
		if err := b.access.Middleware(ctx, userID); err != nil {
			if update.CallbackQuery != nil {
				_ = b.answerCallback(update.CallbackQuery.ID, "")
			}
			if access.IsAccessDenied(err) {
				l.Info().Int64("user_id", userID).Msg("blocked user ignored")
				b.reply(chatID, err.Error())
				return
			}
			l.Error().Err(err).Int64("user_id", userID).Msg("access check failed")
			b.reply(chatID, msgGeneric)
			return
		}
	}

	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", userID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	text := update.Message.Text
	if st := b.state.get(userID); st.Input == inputLoginPassword || st.Input == inputRegPassword {
		text = "[redacted]"
	}
	l.Debug().
		Int64("user_id", userID).
		Str("text", text).
		Msg("Handling message")
	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	if msg.IsCommand() {
		b.state.clearInput(userID)
		args := strings.TrimSpace(msg.CommandArguments())
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "book":
			b.startBookingFlow(ctx, chatID, userID)
		case "styles":
			b.handleStyles(ctx, chatID, userID, args)
		case "my_bookings":
			b.handleMyBookings(ctx, chatID, userID)
		case "cancel_booking":
			b.handleCancelBooking(ctx, chatID, userID, args)
		case "login":
			b.startLogin(ctx, chatID, userID)
		case "logout":
			b.handleLogout(ctx, chatID, userID)
		case "register":
			b.startRegister(ctx, chatID, userID)
		case "reset_password":
			b.startResetPassword(chatID, userID)
		case "profile":
			b.handleProfile(ctx, chatID, userID)
		case "salon":
			b.handleSalon(chatID)
		case "help":
			b.handleHelp(ctx, chatID, userID)
		case "cancel":
			b.cancelBooking(ctx, chatID, userID)
		case "export":
			b.handleExport(ctx, chatID, userID, args)
		case "block":
			b.handleBlock(ctx, chatID, userID, args)
		case "unblock":
			b.handleUnblock(ctx, chatID, userID, args)
		default:
			b.reply(chatID, "Unknown command. See /help.")
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch text {
	case btnBook:
		b.startBookingFlow(ctx, chatID, userID)
		return
	case btnMyBookings:
		b.handleMyBookings(ctx, chatID, userID)
		return
	case btnStyles:
		b.handleStyles(ctx, chatID, userID, "")
		return
	case btnHelp:
		b.handleHelp(ctx, chatID, userID)
		return
	case btnExport:
		b.handleExport(ctx, chatID, userID, "")
		return
	}

	if st := b.state.get(userID); st.Input != inputNone {
		b.handleInput(ctx, msg, st)
		return
	}

	if s := b.sessions.Get(userID); s != nil {
		switch s.GetState() {
		case booking.StateAskContact:
			b.handleContactInput(ctx, chatID, userID, msg.Text)
			return
		case booking.StateAskNotes:
			b.handleNotesInput(ctx, chatID, userID, msg.Text)
			return
		}
	}

	b.sendMainMenu(ctx, chatID, userID, "Please choose an action from the menu.")
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	data := cq.Data
	if cq.Message == nil {
		_ = b.answerCallback(cq.ID, "")
		return
	}
	chatID, msgID, userID := cq.Message.Chat.ID, cq.Message.MessageID, cq.From.ID

	switch {
	case data == cbNoop:
		_ = b.answerCallback(cq.ID, "")
	case data == cbCancel:
		_ = b.answerCallback(cq.ID, "")
		b.cancelBooking(ctx, chatID, userID)
	case data == cbBack:
		_ = b.answerCallback(cq.ID, "")
		b.handleBack(ctx, chatID, userID)
	case data == cbRefresh:
		_ = b.answerCallback(cq.ID, "Refreshing…")
		b.loadTimes(ctx, chatID, userID, msgID)
	case data == "confirm":
		_ = b.answerCallback(cq.ID, "")
		b.finalizeBooking(ctx, chatID, userID)
	case data == "notes:skip":
		_ = b.answerCallback(cq.ID, "")
		b.handleNotesInput(ctx, chatID, userID, "")
	case data == "contact:saved":
		_ = b.answerCallback(cq.ID, "")
		b.useSavedContact(ctx, chatID, userID)
	case strings.HasPrefix(data, "stp:"):
		_ = b.answerCallback(cq.ID, "")
		b.handleStylePage(ctx, chatID, msgID, userID, strings.TrimPrefix(data, "stp:"))
	case strings.HasPrefix(data, "sty:"):
		_ = b.answerCallback(cq.ID, "")
		b.handleStylePick(ctx, chatID, userID, strings.TrimPrefix(data, "sty:"))
	case strings.HasPrefix(data, "cal:"):
		_ = b.answerCallback(cq.ID, "")
		b.handleMonth(chatID, msgID, strings.TrimPrefix(data, "cal:"))
	case strings.HasPrefix(data, "date:"):
		b.handleDatePick(ctx, cq, strings.TrimPrefix(data, "date:"))
	case strings.HasPrefix(data, "slot:"):
		b.handleSlotPick(ctx, cq, strings.TrimPrefix(data, "slot:"))
	case strings.HasPrefix(data, "stb:"):
		_ = b.answerCallback(cq.ID, "")
		b.handleBrowsePage(ctx, chatID, msgID, userID, strings.TrimPrefix(data, "stb:"))
	case strings.HasPrefix(data, "book:"):
		_ = b.answerCallback(cq.ID, "")
		b.bookStyle(ctx, chatID, userID, strings.TrimPrefix(data, "book:"))
	case strings.HasPrefix(data, "bk:cancel:"):
		_ = b.answerCallback(cq.ID, "")
		b.handleCancelBooking(ctx, chatID, userID, strings.TrimPrefix(data, "bk:cancel:"))
	case strings.HasPrefix(data, "pay:"):
		_ = b.answerCallback(cq.ID, "")
		b.handlePay(ctx, chatID, userID, strings.TrimPrefix(data, "pay:"))
	case strings.HasPrefix(data, "prof:"):
		_ = b.answerCallback(cq.ID, "")
		b.handleProfileEdit(chatID, userID, strings.TrimPrefix(data, "prof:"))
	default:
		_ = b.answerCallback(cq.ID, "")
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("unknown callback")
	}
}

func (b *Bot) isManager(ctx context.Context, userID int64) bool {
	if b.access == nil {
		return false
	}
	ok, err := b.access.IsManager(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("manager lookup failed")
		return false
	}
	return ok
}

func (b *Bot) answerCallback(id, text string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, text))
	return err
}

func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, bool) {
	m, err := b.tg.Send(c)
	if err != nil {
		b.logger.Warn().Err(err).Msg("telegram send failed")
		return m, false
	}
	return m, true
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) publish(ctx context.Context, e events.Event) {
	if b.events == nil {
		return
	}
	if err := b.events.Publish(e); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("event", e.Type).Msg("event handler failed")
	}
}

// session returns the user's auth session and makes sure sign-in changes
// reset the cached availability.
func (b *Bot) session(userID int64) *auth.Session {
	s := b.auth.Get(userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.subscribed[userID] {
		b.subscribed[userID] = true
		s.Subscribe(func(auth.State) {
			b.loaderFor(userID).Invalidate()
		})
	}
	return s
}

func (b *Bot) backendFor(ctx context.Context, userID int64) Backend {
	return b.backend(ctx, b.session(userID))
}
