package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salonbook/internal/events"
	"salonbook/internal/salonapi"
	"salonbook/internal/validate"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const msgLoginFirst = "Please /login first."

func (b *Bot) startLogin(ctx context.Context, chatID, userID int64) {
	if u, ok := b.session(userID).CurrentUser(); ok {
		b.reply(chatID, fmt.Sprintf("You are already signed in as %s. Use /logout to switch accounts.", u.Email))
		return
	}
	b.state.update(userID, func(st *userState) { st.Input = inputLoginEmail })
	b.reply(chatID, "Send the email of your salon account.")
}

func (b *Bot) handleLogout(ctx context.Context, chatID, userID int64) {
	session := b.session(userID)
	if !session.IsAuthenticated() {
		b.reply(chatID, "You are not signed in.")
		return
	}
	session.SignOut()
	b.publish(ctx, events.Event{Type: events.SignedOut, TelegramID: userID})
	b.sendMainMenu(ctx, chatID, userID, "You are signed out. You can still book as a guest.")
}

func (b *Bot) startRegister(ctx context.Context, chatID, userID int64) {
	if b.session(userID).IsAuthenticated() {
		b.reply(chatID, "You already have an account. Use /logout first to create another one.")
		return
	}
	b.state.update(userID, func(st *userState) { st.Input = inputRegFirstName })
	b.reply(chatID, "Let's create your account. What is your first name?")
}

func (b *Bot) startResetPassword(chatID, userID int64) {
	b.state.update(userID, func(st *userState) { st.Input = inputResetEmail })
	b.reply(chatID, "Send the email of your account and we will send you a reset link.")
}

func (b *Bot) handleProfile(ctx context.Context, chatID, userID int64) {
	if !b.session(userID).IsAuthenticated() {
		b.reply(chatID, msgLoginFirst)
		return
	}
	p, err := b.backendFor(ctx, userID).GetProfile(ctx)
	if err != nil {
		b.accountError(ctx, chatID, userID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, formatProfile(p))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📞 Change phone", "prof:phone"),
		tgbotapi.NewInlineKeyboardButtonData("✉️ Change email", "prof:email"),
	))
	b.send(msg)
}

func formatProfile(p *salonapi.Profile) string {
	orDash := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "—"
		}
		return s
	}
	return fmt.Sprintf("👤 %s %s\n✉️ %s\n📞 %s\n🎂 %s\n💇 Preferred stylist: %s",
		p.FirstName, p.LastName, orDash(p.Email), orDash(p.Phone), orDash(p.DOB), orDash(p.PreferredStylist))
}

func (b *Bot) handleProfileEdit(chatID, userID int64, field string) {
	switch field {
	case "phone":
		b.state.update(userID, func(st *userState) { st.Input = inputProfilePhone })
		b.reply(chatID, "Send your new phone number, e.g. 704-555-0123, or \"-\" to remove it.")
	case "email":
		b.state.update(userID, func(st *userState) { st.Input = inputProfileEmail })
		b.reply(chatID, "Send your new email.")
	}
}

// accountError turns an account call failure into a reply. An expired
// session is signed out.
func (b *Bot) accountError(ctx context.Context, chatID, userID int64, err error) {
	if errors.Is(err, salonapi.ErrUnauthorized) {
		session := b.session(userID)
		if session.IsAuthenticated() {
			session.SignOut()
			b.publish(ctx, events.Event{Type: events.SignedOut, TelegramID: userID})
		}
		b.reply(chatID, "Your session has expired. "+msgLoginFirst)
		return
	}
	var apiErr *salonapi.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Detail != "" {
		b.reply(chatID, apiErr.Detail)
		return
	}
	zerolog.Ctx(ctx).Error().Err(err).Msg("account request failed")
	b.reply(chatID, msgGeneric)
}

// handleInput consumes a free-text answer for the pending inputStep.
func (b *Bot) handleInput(ctx context.Context, msg *tgbotapi.Message, st userState) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	next := func(step inputStep, fn func(st *userState)) {
		b.state.update(userID, func(st *userState) {
			st.Input = step
			if fn != nil {
				fn(st)
			}
		})
	}

	switch st.Input {
	case inputLoginEmail:
		if !validate.Email(text) {
			b.reply(chatID, "That doesn't look like an email. Try again or /cancel.")
			return
		}
		next(inputLoginPassword, func(st *userState) { st.Email = text })
		b.reply(chatID, "Now send your password. The message will be deleted right away.")

	case inputLoginPassword:
		b.forget(chatID, msg.MessageID)
		b.state.clearInput(userID)
		if err := (validate.LoginForm{Email: st.Email, Password: msg.Text}).Validate(); err != nil {
			b.reply(chatID, "Please check your details: "+err.Error())
			return
		}
		b.login(ctx, chatID, userID, st.Email, msg.Text)

	case inputRegFirstName:
		if text == "" || len(text) > 50 {
			b.reply(chatID, "Please send a first name of up to 50 characters.")
			return
		}
		next(inputRegLastName, func(st *userState) { st.Register.FirstName = text })
		b.reply(chatID, "And your last name?")

	case inputRegLastName:
		if text == "" || len(text) > 50 {
			b.reply(chatID, "Please send a last name of up to 50 characters.")
			return
		}
		next(inputRegEmail, func(st *userState) { st.Register.LastName = text })
		b.reply(chatID, "Your email?")

	case inputRegEmail:
		if !validate.Email(text) {
			b.reply(chatID, "That doesn't look like an email. Try again or /cancel.")
			return
		}
		next(inputRegPassword, func(st *userState) { st.Register.Email = text })
		b.reply(chatID, "Choose a password: at least 8 characters with an upper-case letter, a lower-case letter and a digit.")

	case inputRegPassword:
		b.forget(chatID, msg.MessageID)
		if !validate.SignupPassword(msg.Text) {
			label := validate.StrengthLabel(validate.PasswordStrength(msg.Text))
			b.reply(chatID, fmt.Sprintf("That password is %s. It needs at least 8 characters with an upper-case letter, a lower-case letter and a digit.", label))
			return
		}
		pw := msg.Text
		next(inputRegDOB, func(st *userState) { st.Register.Password = pw })
		b.reply(chatID, "Last step: your date of birth as YYYY-MM-DD.")

	case inputRegDOB:
		form := validate.SignupForm{
			FirstName: st.Register.FirstName,
			LastName:  st.Register.LastName,
			Email:     st.Register.Email,
			Password:  st.Register.Password,
			DOB:       text,
		}
		if err := form.Validate(); err != nil {
			b.reply(chatID, "Please check your details: "+err.Error())
			return
		}
		b.state.clearInput(userID)
		err := b.backendFor(ctx, userID).Register(ctx, salonapi.RegisterRequest{
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Email:     form.Email,
			Password:  form.Password,
			DOB:       form.DOB,
		})
		if err != nil {
			b.accountError(ctx, chatID, userID, err)
			return
		}
		b.login(ctx, chatID, userID, form.Email, form.Password)

	case inputResetEmail:
		if !validate.Email(text) {
			b.reply(chatID, "That doesn't look like an email. Try again or /cancel.")
			return
		}
		b.state.clearInput(userID)
		if err := b.backendFor(ctx, userID).ResetPassword(ctx, text); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("password reset failed")
		}
		b.reply(chatID, "If an account exists for that email, a reset link is on its way.")

	case inputProfilePhone, inputProfileEmail:
		b.updateProfile(ctx, chatID, userID, st.Input, text)
	}
}

func (b *Bot) login(ctx context.Context, chatID, userID int64, email, password string) {
	pair, err := b.backendFor(ctx, userID).Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, salonapi.ErrUnauthorized) {
			b.reply(chatID, "Wrong email or password. Use /login to try again or /reset_password.")
			return
		}
		b.accountError(ctx, chatID, userID, err)
		return
	}
	session := b.session(userID)
	if err := session.SignIn(pair); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("sign in failed")
		b.reply(chatID, msgGeneric)
		return
	}
	b.publish(ctx, events.Event{Type: events.SignedIn, TelegramID: userID})

	name := "there"
	if u, ok := session.CurrentUser(); ok && u.FirstName != "" {
		name = u.FirstName
	}
	b.sendMainMenu(ctx, chatID, userID, fmt.Sprintf("Welcome, %s! You are signed in.", name))
}

func (b *Bot) updateProfile(ctx context.Context, chatID, userID int64, step inputStep, text string) {
	if !b.session(userID).IsAuthenticated() {
		b.state.clearInput(userID)
		b.reply(chatID, msgLoginFirst)
		return
	}
	backend := b.backendFor(ctx, userID)
	current, err := backend.GetProfile(ctx)
	if err != nil {
		b.state.clearInput(userID)
		b.accountError(ctx, chatID, userID, err)
		return
	}

	form := validate.ProfileForm{Email: current.Email, Phone: current.Phone}
	var patch salonapi.ProfilePatch
	if step == inputProfilePhone {
		if text == "-" {
			text = ""
		}
		form.Phone = text
		patch.Phone = &text
	} else {
		form.Email = text
		patch.Email = &text
	}
	if err := form.Validate(); err != nil {
		b.reply(chatID, "Please check: "+err.Error()+". Try again or /cancel.")
		return
	}

	b.state.clearInput(userID)
	p, err := backend.UpdateProfile(ctx, patch)
	if err != nil {
		b.accountError(ctx, chatID, userID, err)
		return
	}
	b.reply(chatID, "Profile updated.\n\n"+formatProfile(p))
}

// forget deletes a message that carried a secret.
func (b *Bot) forget(chatID int64, msgID int) {
	if _, err := b.tg.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		b.logger.Debug().Err(err).Msg("could not delete message")
	}
}
