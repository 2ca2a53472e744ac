package bot

import (
	"fmt"
	"strings"

	"salonbook/internal/catalog"
	"salonbook/internal/salonapi"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const stylesPerPage = 6

type PaginationParams struct {
	ChatID    int64
	MessageID int // 0 sends a new message
	Page      int
	Title     string
	// ItemPrefix is followed by the style id in button data.
	ItemPrefix string
	PagePrefix string
	Cancel     bool
}

// renderPaginatedStyles shows one page of styles with a button per style.
func (b *Bot) renderPaginatedStyles(styles []salonapi.Style, params PaginationParams) {
	pages := (len(styles) + stylesPerPage - 1) / stylesPerPage
	if pages == 0 {
		pages = 1
	}
	if params.Page < 0 {
		params.Page = 0
	}
	if params.Page >= pages {
		params.Page = pages - 1
	}
	startIdx := params.Page * stylesPerPage
	endIdx := min(startIdx+stylesPerPage, len(styles))

	var message strings.Builder
	message.WriteString(params.Title + "\n")
	if pages > 1 {
		fmt.Fprintf(&message, "Page %d of %d\n", params.Page+1, pages)
	}
	message.WriteString("\n")

	current := styles[startIdx:endIdx]
	for i, s := range current {
		fmt.Fprintf(&message, "%d. %s\n", startIdx+i+1, s.Name)
		fmt.Fprintf(&message, "   💵 %s · ⏱ %s\n", catalog.FormatPrice(s), catalog.FormatDuration(s.DurationMinutes))
		if s.Description != "" {
			fmt.Fprintf(&message, "   %s\n", s.Description)
		}
	}

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i, s := range current {
		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d. %s", startIdx+i+1, s.Name), params.ItemPrefix+s.ID),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if params.Page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Previous", fmt.Sprintf("%s%d", params.PagePrefix, params.Page-1)))
	}
	if endIdx < len(styles) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("%s%d", params.PagePrefix, params.Page+1)))
	}
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}
	if params.Cancel {
		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
		))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	if params.MessageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(params.ChatID, params.MessageID, message.String(), markup)
		b.send(edit)
		return
	}
	msg := tgbotapi.NewMessage(params.ChatID, message.String())
	if len(keyboard) > 0 {
		msg.ReplyMarkup = markup
	}
	b.send(msg)
}
