package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/catalog"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/salonapi"
	"salonbook/shared/access"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `Commands:
/book - book an appointment
/styles [text or category] - browse styles
/my_bookings - your upcoming appointments
/cancel_booking <id> - cancel an appointment
/login, /logout, /register - your salon account
/reset_password - get a password reset link
/profile - view or edit your profile
/salon - address and contacts
/cancel - stop the current dialog`

const managerHelpText = `

Manager commands:
/export [YYYY-MM] - bookings report, previous month by default
/block <user id> [reason] - block a user
/unblock <user id> - unblock a user`

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	b.sessions.Delete(userID)
	b.state.reset(userID)

	name := msg.From.FirstName
	if u, ok := b.session(userID).CurrentUser(); ok && u.FirstName != "" {
		name = u.FirstName
	}
	salon := b.salon.Name
	if salon == "" {
		salon = "the salon"
	}
	text := fmt.Sprintf("Hi, %s! I can book you an appointment at %s.\nTap %s to start or see /help.", name, salon, btnBook)
	b.sendMainMenu(ctx, chatID, userID, text)
}

func (b *Bot) handleHelp(ctx context.Context, chatID, userID int64) {
	text := helpText
	if b.isManager(ctx, userID) {
		text += managerHelpText
	}
	b.reply(chatID, text)
}

func (b *Bot) handleSalon(chatID int64) {
	var sb strings.Builder
	if b.salon.Name != "" {
		sb.WriteString("💈 " + b.salon.Name + "\n")
	}
	if b.salon.Address != "" {
		sb.WriteString("📍 " + b.salon.Address + "\n")
	}
	if b.salon.Phone != "" {
		sb.WriteString("📞 " + b.salon.Phone + "\n")
	}
	if b.salon.Email != "" {
		sb.WriteString("✉️ " + b.salon.Email + "\n")
	}
	if sb.Len() == 0 {
		b.reply(chatID, "Salon details are not configured.")
		return
	}
	b.reply(chatID, strings.TrimSpace(sb.String()))
}

// handleStyles lists styles outside of a booking. A category name as the
// argument filters by category, anything else is a text search.
func (b *Bot) handleStyles(ctx context.Context, chatID, userID int64, args string) {
	f := catalog.Filter{Sort: catalog.SortPopular}
	if args != "" {
		if c, err := catalog.ParseCategory(args); err == nil {
			f.Category = c
		} else {
			f.Query = args
		}
	}
	b.state.update(userID, func(st *userState) { st.Browse = f })
	b.browseStyles(ctx, chatID, 0, f, 0)
}

func (b *Bot) handleBrowsePage(ctx context.Context, chatID int64, msgID int, userID int64, pageStr string) {
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return
	}
	b.browseStyles(ctx, chatID, msgID, b.state.get(userID).Browse, page)
}

func (b *Bot) browseStyles(ctx context.Context, chatID int64, msgID int, f catalog.Filter, page int) {
	styles, err := b.styles.Search(ctx, f)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to search styles")
		b.reply(chatID, "Could not load the style list. Please try again later.")
		return
	}
	if len(styles) == 0 {
		b.reply(chatID, "No styles match. Try /styles without arguments.")
		return
	}
	title := "💇 Our styles. Tap one to book it:"
	if f.Query != "" {
		title = fmt.Sprintf("💇 Styles matching %q:", f.Query)
	}
	b.renderPaginatedStyles(styles, PaginationParams{
		ChatID:     chatID,
		MessageID:  msgID,
		Page:       page,
		Title:      title,
		ItemPrefix: "book:",
		PagePrefix: "stb:",
	})
}

// bookStyle starts a booking with the style already chosen.
func (b *Bot) bookStyle(ctx context.Context, chatID, userID int64, styleID string) {
	b.startBooking(ctx, userID)
	b.handleStylePick(ctx, chatID, userID, styleID)
}

func (b *Bot) handleMyBookings(ctx context.Context, chatID, userID int64) {
	if !b.session(userID).IsAuthenticated() {
		b.guestBookings(ctx, chatID, userID)
		return
	}
	appts, err := b.backendFor(ctx, userID).UpcomingAppointments(ctx)
	if err != nil {
		b.accountError(ctx, chatID, userID, err)
		return
	}
	if len(appts) == 0 {
		b.reply(chatID, "You have no upcoming appointments.")
		return
	}

	loc := b.flow.Location()
	var sb strings.Builder
	sb.WriteString("📌 Your upcoming appointments:\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, a := range appts {
		start := a.Start.In(loc)
		fmt.Fprintf(&sb, "#%s %s %s, %s", a.ID, start.Format("Mon, Jan 2"), start.Format("15:04"), a.StyleName)
		if a.Paid {
			sb.WriteString(" · paid")
		}
		sb.WriteString("\n")

		row := tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel #"+a.ID, "bk:cancel:"+a.ID),
		)
		if !a.Paid {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("💳 Pay #"+a.ID, "pay:"+a.ID))
		}
		rows = append(rows, row)
	}
	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

// guestBookings lists what this chat booked as a guest. The salon API
// only lets account holders cancel, so there are no buttons.
func (b *Bot) guestBookings(ctx context.Context, chatID, userID int64) {
	if b.store == nil {
		b.reply(chatID, msgLoginFirst)
		return
	}
	entries, err := b.store.UserJournal(ctx, userID, b.flow.Now())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to read journal")
		b.reply(chatID, msgGeneric)
		return
	}
	if len(entries) == 0 {
		b.reply(chatID, "You have no upcoming appointments booked from this chat.")
		return
	}
	loc := b.flow.Location()
	var sb strings.Builder
	sb.WriteString("📌 Appointments booked from this chat:\n\n")
	for _, e := range entries {
		start := e.StartTime.In(loc)
		fmt.Fprintf(&sb, "#%s %s %s, %s (%s)\n", e.AppointmentID, start.Format("Mon, Jan 2"), start.Format("15:04"), e.StyleName, e.Status)
	}
	sb.WriteString("\nTo cancel, /login with the account for the email you booked with or call the salon.")
	b.reply(chatID, sb.String())
}

func (b *Bot) handleCancelBooking(ctx context.Context, chatID, userID int64, id string) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "#")
	if id == "" {
		b.reply(chatID, "Usage: /cancel_booking <id>")
		return
	}
	if !b.session(userID).IsAuthenticated() {
		b.reply(chatID, msgLoginFirst)
		return
	}

	err := b.backendFor(ctx, userID).CancelAppointment(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, salonapi.ErrNotFound):
		b.reply(chatID, "Appointment not found.")
		return
	default:
		b.accountError(ctx, chatID, userID, err)
		return
	}

	metrics.IncBookingCancelled()
	b.loaderFor(userID).Invalidate()
	b.publish(ctx, events.Event{
		Type:       events.BookingCancelled,
		TelegramID: userID,
		Booking:    &events.Booking{AppointmentID: id},
	})
	zerolog.Ctx(ctx).Info().Str("appointment_id", id).Int64("user_id", userID).Msg("appointment cancelled")
	b.reply(chatID, fmt.Sprintf("Appointment #%s is cancelled.", id))
}

func (b *Bot) handlePay(ctx context.Context, chatID, userID int64, id string) {
	if !b.session(userID).IsAuthenticated() {
		b.reply(chatID, msgLoginFirst)
		return
	}
	url, err := b.backendFor(ctx, userID).StartCheckout(ctx, id)
	if err != nil {
		b.accountError(ctx, chatID, userID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Payment for appointment #%s:", id))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💳 Pay now", url)),
	)
	b.send(msg)
}

// requireManager replies and returns false unless userID is a manager.
func (b *Bot) requireManager(ctx context.Context, chatID, userID int64) bool {
	if b.access == nil {
		b.reply(chatID, "This command is for managers only.")
		return false
	}
	if err := b.access.ManagerMiddleware(ctx, userID); err != nil {
		if access.IsAccessDenied(err) {
			b.reply(chatID, err.Error())
			return false
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("manager check failed")
		b.reply(chatID, msgGeneric)
		return false
	}
	return true
}

func (b *Bot) handleExport(ctx context.Context, chatID, userID int64, args string) {
	if !b.requireManager(ctx, chatID, userID) {
		return
	}
	if b.reporter == nil {
		b.reply(chatID, "Reports are not enabled.")
		return
	}

	now := b.flow.Now()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	if args != "" {
		m, err := time.ParseInLocation("2006-01", args, now.Location())
		if err != nil {
			b.reply(chatID, "Usage: /export [YYYY-MM]")
			return
		}
		month = m
	}

	b.reply(chatID, fmt.Sprintf("Preparing the report for %s…", month.Format("January 2006")))
	if err := b.reporter.SendReport(ctx, month); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("month", month.Format("2006-01")).Msg("export failed")
		b.reply(chatID, "Could not build the report.")
	}
}

func (b *Bot) handleBlock(ctx context.Context, chatID, userID int64, args string) {
	if !b.requireManager(ctx, chatID, userID) {
		return
	}
	idStr, reason, _ := strings.Cut(args, " ")
	target, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || target <= 0 {
		b.reply(chatID, "Usage: /block <user id> [reason]")
		return
	}
	if target == userID {
		b.reply(chatID, "You can't block yourself.")
		return
	}
	if err := b.access.BlockUser(ctx, target, strings.TrimSpace(reason), userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("target", target).Msg("block failed")
		b.reply(chatID, "Could not block the user.")
		return
	}
	b.reply(chatID, fmt.Sprintf("User %d is blocked.", target))
}

func (b *Bot) handleUnblock(ctx context.Context, chatID, userID int64, args string) {
	if !b.requireManager(ctx, chatID, userID) {
		return
	}
	target, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || target <= 0 {
		b.reply(chatID, "Usage: /unblock <user id>")
		return
	}
	if err := b.access.UnblockUser(ctx, target, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("target", target).Msg("unblock failed")
		b.reply(chatID, "Could not unblock the user.")
		return
	}
	b.reply(chatID, fmt.Sprintf("User %d is unblocked.", target))
}
