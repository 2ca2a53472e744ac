package bot

import (
	"context"
	"errors"
	"fmt"
	"io"

	"salonbook/shared/reminders"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SendReminder implements reminders.Notifier.
func (b *Bot) SendReminder(ctx context.Context, userID int64, booking reminders.Booking) error {
	msg := tgbotapi.NewMessage(userID, b.formatReminderMessage(booking))
	if _, err := b.tg.Send(msg); err != nil {
		return telegramError(err)
	}
	return nil
}

func (b *Bot) formatReminderMessage(bk reminders.Booking) string {
	start := bk.GetStartTime().In(b.flow.Location())
	text := fmt.Sprintf("⏰ Reminder: %s on %s at %s.", bk.GetStyleName(), start.Format("Mon, Jan 2"), start.Format("15:04"))
	if b.salon.Address != "" {
		text += "\n📍 " + b.salon.Address
	}
	if b.salon.Phone != "" {
		text += "\nNeed to reschedule? Call " + b.salon.Phone + "."
	}
	return text
}

// SendDocument implements audit.Notifier by sending the file to every
// manager chat. It fails only when no manager received it.
func (b *Bot) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	if b.access == nil {
		return errors.New("no manager list configured")
	}
	chatIDs, err := b.access.GetManagerChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing manager chats: %w", err)
	}
	if len(chatIDs) == 0 {
		return errors.New("no manager chats")
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}

	var lastErr error
	delivered := 0
	for _, chatID := range chatIDs {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: content})
		doc.Caption = caption
		if _, err := b.tg.Send(doc); err != nil {
			lastErr = telegramError(err)
			b.logger.Warn().Err(err).Int64("chat_id", chatID).Str("file", filename).Msg("report delivery failed")
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return lastErr
	}
	return nil
}

// telegramError converts Bot API failures so the reminder sender can tell
// rate limits and blocked chats from transport errors.
func telegramError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &reminders.TelegramError{
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: apiErr.ResponseParameters.RetryAfter,
		}
	}
	return err
}
