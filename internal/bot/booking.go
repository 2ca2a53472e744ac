package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/catalog"
	"salonbook/internal/db"
	"salonbook/internal/events"
	"salonbook/internal/loader"
	"salonbook/internal/metrics"
	"salonbook/internal/salonapi"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	msgNoSession   = "This booking has expired. Use /book to start again."
	msgNoTimesLeft = "No times left for this date."
	msgFetchFailed = "⚠️ Could not refresh booked times. Showing the last known data."
)

// userFeeds resolves the backend on every call so a sign-in between two
// loads is picked up.
type userFeeds struct {
	b      *Bot
	userID int64
}

func (u userFeeds) TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error) {
	return u.b.backendFor(ctx, u.userID).TakenSlots(ctx, date)
}

func (u userFeeds) UpcomingBookings(ctx context.Context) ([]availability.OwnBooking, error) {
	return u.b.backendFor(ctx, u.userID).UpcomingBookings(ctx)
}

func (b *Bot) loaderFor(userID int64) *loader.Loader {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.loaders[userID]
	if !ok {
		l = loader.New(userFeeds{b: b, userID: userID}, b.logger)
		b.loaders[userID] = l
	}
	return l
}

func (b *Bot) savedContact(ctx context.Context, userID int64) *db.GuestContact {
	if b.store == nil {
		return nil
	}
	c, err := b.store.GetGuestContact(ctx, userID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to read saved contact")
		}
		return nil
	}
	return c
}

func (b *Bot) startBookingFlow(ctx context.Context, chatID, userID int64) {
	b.startBooking(ctx, userID)
	b.sendStyles(ctx, chatID, 0, 0)
}

// startBooking opens a fresh booking session for the user.
func (b *Bot) startBooking(ctx context.Context, userID int64) {
	session := b.session(userID)
	guest := !session.IsAuthenticated()

	var contact booking.ContactInfo
	if guest {
		if saved := b.savedContact(ctx, userID); saved != nil {
			session.RememberContact(availability.Contact{Email: saved.Email, Phone: saved.Phone})
		}
	} else if u, ok := session.CurrentUser(); ok {
		contact = booking.ContactInfo{Name: u.Name, Email: u.Email}
	}

	s := b.sessions.Reset(userID)
	b.flow.Begin(s, guest, contact)
	b.state.update(userID, func(st *userState) {
		st.Picker = 0
		st.Result = nil
	})
}

func (b *Bot) sendStyles(ctx context.Context, chatID int64, msgID, page int) {
	styles, err := b.styles.Styles(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load styles")
		b.reply(chatID, "Could not load the style list. Please try again later.")
		return
	}
	if len(styles) == 0 {
		b.reply(chatID, "No styles are available right now.")
		return
	}
	b.renderPaginatedStyles(styles, PaginationParams{
		ChatID:     chatID,
		MessageID:  msgID,
		Page:       page,
		Title:      "Choose a style:",
		ItemPrefix: "sty:",
		PagePrefix: "stp:",
		Cancel:     true,
	})
}

func (b *Bot) handleStylePage(ctx context.Context, chatID int64, msgID int, userID int64, pageStr string) {
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return
	}
	if s := b.sessions.Get(userID); s == nil || s.GetState() != booking.StateChooseStyle {
		b.reply(chatID, msgNoSession)
		return
	}
	b.sendStyles(ctx, chatID, msgID, page)
}

func (b *Bot) handleStylePick(ctx context.Context, chatID, userID int64, styleID string) {
	s := b.sessions.Get(userID)
	if s == nil {
		b.reply(chatID, msgNoSession)
		return
	}
	style, err := b.styles.Style(ctx, styleID)
	if err != nil {
		if !errors.Is(err, catalog.ErrUnknownStyle) {
			zerolog.Ctx(ctx).Error().Err(err).Str("style_id", styleID).Msg("failed to load style")
		}
		b.reply(chatID, "That style is no longer offered. Please pick another one.")
		return
	}
	if err := b.flow.ChooseStyle(s, style); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("style picked out of order")
		b.reply(chatID, msgNoSession)
		return
	}
	b.reply(chatID, fmt.Sprintf("💇 %s · %s · %s", style.Name, catalog.FormatPrice(style), catalog.FormatDuration(style.DurationMinutes)))
	b.askNext(ctx, chatID, userID, s)
}

func (b *Bot) sendCalendar(chatID int64, msgID int, month time.Time) {
	markup := GenerateCalendarKeyboard(month, b.flow.Today(), b.flow.LastBookableDay(), func(d time.Time) bool {
		return b.flow.DateAllowed(d) == nil
	})
	text := "Choose a date:"
	if msgID != 0 {
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, markup))
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	b.send(msg)
}

func (b *Bot) handleMonth(chatID int64, msgID int, ym string) {
	month, err := time.ParseInLocation("2006-01", ym, b.flow.Location())
	if err != nil {
		return
	}
	b.sendCalendar(chatID, msgID, month)
}

func (b *Bot) handleDatePick(ctx context.Context, cq *tgbotapi.CallbackQuery, dateStr string) {
	chatID, userID := cq.Message.Chat.ID, cq.From.ID
	date, err := time.ParseInLocation("2006-01-02", dateStr, b.flow.Location())
	if err != nil {
		_ = b.answerCallback(cq.ID, "")
		return
	}
	s := b.sessions.Get(userID)
	if s == nil {
		_ = b.answerCallback(cq.ID, "")
		b.reply(chatID, msgNoSession)
		return
	}
	if err := b.flow.ChooseDate(s, date); err != nil {
		switch {
		case errors.Is(err, booking.ErrDateInPast):
			_ = b.answerCallback(cq.ID, "That day has already passed.")
		case errors.Is(err, booking.ErrDateTooFar):
			_ = b.answerCallback(cq.ID, "That day is too far ahead.")
		case errors.Is(err, booking.ErrDayClosed):
			_ = b.answerCallback(cq.ID, "The salon is closed that day.")
		default:
			_ = b.answerCallback(cq.ID, "")
			b.reply(chatID, msgNoSession)
		}
		return
	}
	_ = b.answerCallback(cq.ID, "")
	b.loadTimes(ctx, chatID, userID, 0)
}

// loadTimes fetches availability in the background and renders it into the
// picker message, sending a new one when msgID is 0. A load overtaken by a
// newer one for the same user is dropped.
func (b *Bot) loadTimes(ctx context.Context, chatID, userID int64, msgID int) {
	s := b.sessions.Get(userID)
	if s == nil {
		b.reply(chatID, msgNoSession)
		return
	}
	d := s.Snapshot()
	if d.State != booking.StateChooseTime {
		return
	}

	if msgID == 0 {
		m, ok := b.send(tgbotapi.NewMessage(chatID, "⏳ Loading free times…"))
		if !ok {
			return
		}
		msgID = m.MessageID
	}
	b.state.update(userID, func(st *userState) {
		st.Picker = msgID
		st.Result = nil
	})

	session := b.session(userID)
	authenticated := session.IsAuthenticated()
	l := zerolog.Ctx(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		snap, err := b.loaderFor(userID).Load(ctx, d.Selection.Key(), authenticated)
		if errors.Is(err, loader.ErrStale) {
			return
		}
		note := ""
		if err != nil {
			note = msgFetchFailed + "\n\n"
		}

		current := s.Snapshot()
		if current.State != booking.StateChooseTime || current.Selection.Key().String() != d.Selection.Key().String() {
			return
		}
		res, err := b.flow.Availability(current, snap, booking.Viewer(authenticated, current, session.Contact()))
		if err != nil {
			l.Error().Err(err).Msg("availability computation failed")
			b.send(tgbotapi.NewEditMessageText(chatID, msgID, msgGeneric))
			return
		}
		b.state.update(userID, func(st *userState) {
			if st.Picker == msgID {
				st.Result = res
			}
		})
		b.renderTimes(chatID, msgID, current, res, note)
	}()
}

func (b *Bot) renderTimes(chatID int64, msgID int, d booking.Draft, res *availability.Result, note string) {
	var text strings.Builder
	text.WriteString(note)
	fmt.Fprintf(&text, "%s on %s\n", d.Selection.StyleName, d.Selection.Date.Format("Mon, Jan 2"))

	slots := TimeSlots(res)
	if len(res.Available()) == 0 {
		metrics.IncAvailabilityQuery("empty")
		text.WriteString(msgNoTimesLeft)
		slots = nil
	} else {
		metrics.IncAvailabilityQuery("ok")
		text.WriteString("Pick a time (⛔ = unavailable):")
	}
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text.String(), GenerateTimeSlotsKeyboard(slots)))
}

func reasonText(r availability.Reason) string {
	switch r {
	case availability.ReasonPast:
		return "This time has already passed."
	case availability.ReasonClosing:
		return "The service would run past closing time."
	case availability.ReasonConflict:
		return "This time overlaps an existing booking."
	}
	return "The salon is closed at this time."
}

func (b *Bot) handleSlotPick(ctx context.Context, cq *tgbotapi.CallbackQuery, slotStr string) {
	chatID, userID := cq.Message.Chat.ID, cq.From.ID
	slot, err := strconv.Atoi(slotStr)
	if err != nil {
		_ = b.answerCallback(cq.ID, "")
		return
	}
	s := b.sessions.Get(userID)
	if s == nil || s.GetState() != booking.StateChooseTime {
		_ = b.answerCallback(cq.ID, "")
		b.reply(chatID, msgNoSession)
		return
	}
	st := b.state.get(userID)
	if st.Result == nil || st.Picker != cq.Message.MessageID {
		_ = b.answerCallback(cq.ID, "Times are still loading…")
		return
	}

	if err := b.flow.ChooseTime(s, slot, st.Result); err != nil {
		var se *availability.SlotError
		if errors.As(err, &se) {
			_ = b.answerCallback(cq.ID, reasonText(se.Reason))
			return
		}
		zerolog.Ctx(ctx).Debug().Err(err).Msg("slot picked for another date")
		_ = b.answerCallback(cq.ID, "Please pick the date again.")
		return
	}
	_ = b.answerCallback(cq.ID, "")
	b.askNext(ctx, chatID, userID, s)
}

// askNext prompts for whatever the dialog is waiting for.
func (b *Bot) askNext(ctx context.Context, chatID, userID int64, s *booking.Session) {
	d := s.Snapshot()
	switch d.State {
	case booking.StateChooseStyle:
		b.sendStyles(ctx, chatID, 0, 0)
	case booking.StateChooseDate:
		month := b.flow.Today()
		if d.Selection.HasDate() {
			month = d.Selection.Date
		}
		b.sendCalendar(chatID, 0, month)
	case booking.StateChooseTime:
		b.loadTimes(ctx, chatID, userID, 0)
	case booking.StateAskContact:
		b.askContact(ctx, chatID, userID)
	case booking.StateAskNotes:
		msg := tgbotapi.NewMessage(chatID, "Any notes for your stylist? Send them as a message or tap Skip.")
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Skip", "notes:skip")),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
				tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
			),
		)
		b.send(msg)
	case booking.StateConfirm:
		b.sendConfirm(chatID, d)
	}
}

func (b *Bot) askContact(ctx context.Context, chatID, userID int64) {
	msg := tgbotapi.NewMessage(chatID,
		"Please send your contact details on separate lines:\nName\nEmail\nPhone (optional)")
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if saved := b.savedContact(ctx, userID); saved != nil && saved.Email != "" {
		label := fmt.Sprintf("Use %s · %s", saved.FirstName, saved.Email)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, "contact:saved")))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
	))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

// parseContact reads "name\nemail\nphone". Commas work as separators too.
func parseContact(text string) booking.ContactInfo {
	sep := "\n"
	if !strings.Contains(text, "\n") {
		sep = ","
	}
	parts := strings.Split(text, sep)
	var c booking.ContactInfo
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch i {
		case 0:
			c.Name = p
		case 1:
			c.Email = p
		case 2:
			c.Phone = p
		}
	}
	return c
}

func (b *Bot) handleContactInput(ctx context.Context, chatID, userID int64, text string) {
	s := b.sessions.Get(userID)
	if s == nil {
		b.reply(chatID, msgNoSession)
		return
	}
	if err := b.flow.SetContact(s, parseContact(text)); err != nil {
		b.reply(chatID, "Please check your details: "+err.Error())
		return
	}
	b.askNext(ctx, chatID, userID, s)
}

func (b *Bot) useSavedContact(ctx context.Context, chatID, userID int64) {
	s := b.sessions.Get(userID)
	saved := b.savedContact(ctx, userID)
	if s == nil || saved == nil {
		b.reply(chatID, msgNoSession)
		return
	}
	err := b.flow.SetContact(s, booking.ContactInfo{Name: saved.FirstName, Email: saved.Email, Phone: saved.Phone})
	if err != nil {
		b.reply(chatID, "Your saved details are incomplete, please type them: "+err.Error())
		return
	}
	b.askNext(ctx, chatID, userID, s)
}

func (b *Bot) handleNotesInput(ctx context.Context, chatID, userID int64, text string) {
	s := b.sessions.Get(userID)
	if s == nil || s.GetState() != booking.StateAskNotes {
		b.reply(chatID, msgNoSession)
		return
	}
	if err := b.flow.SetNotes(s, text); err != nil {
		b.reply(chatID, "Notes "+err.Error())
		return
	}
	b.askNext(ctx, chatID, userID, s)
}

func (b *Bot) sendConfirm(chatID int64, d booking.Draft) {
	var text strings.Builder
	text.WriteString("Please confirm your booking:\n\n")
	fmt.Fprintf(&text, "💇 %s (%s)\n", d.Selection.StyleName, catalog.FormatDuration(d.Selection.DurationMinutes))
	fmt.Fprintf(&text, "📅 %s at %s\n", d.Selection.Date.Format("Mon, Jan 2 2006"), d.Selection.TimeLabel())
	if d.Guest {
		fmt.Fprintf(&text, "👤 %s, %s", d.Contact.Name, d.Contact.Email)
		if d.Contact.Phone != "" {
			fmt.Fprintf(&text, ", %s", d.Contact.Phone)
		}
		text.WriteString("\n")
	}
	if d.Notes != "" {
		fmt.Fprintf(&text, "💬 %s\n", d.Notes)
	}

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
		),
	)
	b.send(msg)
}

// finalizeBooking checks the slot against fresh data before submitting.
func (b *Bot) finalizeBooking(ctx context.Context, chatID, userID int64) {
	l := zerolog.Ctx(ctx)
	s := b.sessions.Get(userID)
	if s == nil || s.GetState() != booking.StateConfirm {
		b.reply(chatID, msgNoSession)
		return
	}
	d := s.Snapshot()
	session := b.session(userID)
	authenticated := session.IsAuthenticated()

	// A failed fetch still yields the last known data. The backend has the
	// final say on conflicts.
	snap, err := b.loaderFor(userID).Load(ctx, d.Selection.Key(), authenticated)
	var fetchErr *loader.FetchError
	switch {
	case err == nil:
	case errors.As(err, &fetchErr):
		l.Warn().Err(err).Msg("booking against last known availability")
	default:
		l.Warn().Err(err).Msg("availability check before booking failed")
		b.reply(chatID, "Could not check availability right now. Please try again.")
		return
	}
	res, err := b.flow.Availability(d, snap, booking.Viewer(authenticated, d, session.Contact()))
	if err != nil {
		l.Error().Err(err).Msg("availability computation failed")
		b.reply(chatID, msgGeneric)
		return
	}
	if err := res.Check(d.Selection.Slot); err != nil {
		metrics.IncBookingCreated("conflict")
		var se *availability.SlotError
		reason := "It is no longer available."
		if errors.As(err, &se) {
			reason = reasonText(se.Reason)
		}
		b.reply(chatID, fmt.Sprintf("Sorry, %s can't be booked. %s Please pick another time.", d.Selection.TimeLabel(), reason))
		if err := b.flow.ReopenTimes(s); err == nil {
			b.loadTimes(ctx, chatID, userID, 0)
		}
		return
	}
	if err := b.flow.Validate(d); err != nil {
		b.reply(chatID, "Please check your booking: "+err.Error())
		return
	}

	backend := b.backendFor(ctx, userID)
	appt, err := backend.CreateAppointment(ctx, b.flow.Request(d))
	if err != nil {
		metrics.IncBookingCreated("error")
		l.Error().Err(err).Str("style_id", d.Selection.StyleID).Msg("create appointment failed")
		var apiErr *salonapi.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Detail != "" {
			b.reply(chatID, "The salon could not accept the booking: "+apiErr.Detail)
			return
		}
		b.reply(chatID, "The salon could not accept the booking right now. Please try again.")
		return
	}
	metrics.IncBookingCreated("ok")
	_ = b.flow.Complete(s, appt.ID)
	b.loaderFor(userID).Invalidate()

	contact := availability.Contact{Email: d.Contact.Email, Phone: d.Contact.Phone}
	if d.Guest {
		session.RememberContact(contact)
		if b.store != nil {
			err := b.store.SaveGuestContact(ctx, db.GuestContact{
				TelegramID: userID, FirstName: d.Contact.Name, Email: d.Contact.Email, Phone: d.Contact.Phone,
			})
			if err != nil {
				l.Warn().Err(err).Msg("failed to save guest contact")
			}
		}
	}
	b.publish(ctx, events.Event{
		Type:       events.BookingCreated,
		TelegramID: userID,
		Booking: &events.Booking{
			AppointmentID:   appt.ID,
			StyleName:       d.Selection.StyleName,
			Start:           d.Selection.Start(),
			DurationMinutes: d.Selection.DurationMinutes,
			ContactEmail:    d.Contact.Email,
			ContactPhone:    d.Contact.Phone,
			Guest:           d.Guest,
		},
	})
	l.Info().Str("appointment_id", appt.ID).Int64("user_id", userID).Msg("appointment booked")

	text := fmt.Sprintf("✅ Booked! %s on %s at %s.\nAppointment #%s",
		d.Selection.StyleName, d.Selection.Date.Format("Mon, Jan 2"), d.Selection.TimeLabel(), appt.ID)
	msg := tgbotapi.NewMessage(chatID, text)
	if url, err := backend.StartCheckout(ctx, appt.ID); err == nil {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💳 Pay now", url)),
		)
	} else {
		l.Warn().Err(err).Str("appointment_id", appt.ID).Msg("checkout unavailable")
	}
	b.send(msg)

	b.sessions.Delete(userID)
	b.state.update(userID, func(st *userState) {
		st.Picker = 0
		st.Result = nil
	})
}

func (b *Bot) handleBack(ctx context.Context, chatID, userID int64) {
	s := b.sessions.Get(userID)
	if s == nil {
		b.reply(chatID, msgNoSession)
		return
	}
	b.flow.Back(s)
	b.askNext(ctx, chatID, userID, s)
}

func (b *Bot) cancelBooking(ctx context.Context, chatID, userID int64) {
	b.state.clearInput(userID)
	s := b.sessions.Get(userID)
	if s == nil {
		b.sendMainMenu(ctx, chatID, userID, "Nothing to cancel.")
		return
	}
	b.flow.Cancel(s)
	b.sessions.Delete(userID)
	b.state.update(userID, func(st *userState) {
		st.Picker = 0
		st.Result = nil
	})
	b.sendMainMenu(ctx, chatID, userID, "Booking cancelled.")
}
