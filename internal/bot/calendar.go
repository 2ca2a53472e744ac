package bot

import (
	"fmt"
	"time"

	"salonbook/internal/availability"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbNoop    = "noop"
	cbBack    = "back"
	cbCancel  = "cancel"
	cbRefresh = "times:refresh"
)

// TimeSlot describes a button of the time picker.
type TimeSlot struct {
	Label        string
	CallbackData string
	Available    bool
}

// GenerateCalendarKeyboard builds a Monday-first month grid. Days for
// which allowed returns false are rendered as "·" and do nothing. Month
// navigation is offered only towards months that contain allowed days
// between first and last.
func GenerateCalendarKeyboard(month time.Time, first, last time.Time, allowed func(time.Time) bool) tgbotapi.InlineKeyboardMarkup {
	loc := month.Location()
	firstDay := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, loc)
	weekdayOffset := int(firstDay.Weekday())
	if weekdayOffset == 0 {
		weekdayOffset = 7
	}
	days := daysIn(firstDay.Month(), firstDay.Year())

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 9)

	prev, next := cbNoop, cbNoop
	prevLabel, nextLabel := " ", " "
	if firstDay.After(first) {
		prev = "cal:" + firstDay.AddDate(0, -1, 0).Format("2006-01")
		prevLabel = "◀️"
	}
	if lastOfMonth := firstDay.AddDate(0, 1, -1); lastOfMonth.Before(last) {
		next = "cal:" + firstDay.AddDate(0, 1, 0).Format("2006-01")
		nextLabel = "▶️"
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(prevLabel, prev),
		tgbotapi.NewInlineKeyboardButtonData(firstDay.Format("January 2006"), cbNoop),
		tgbotapi.NewInlineKeyboardButtonData(nextLabel, next),
	})

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, d := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(d, cbNoop))
	}
	rows = append(rows, header)

	day := 1
	for day <= days {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for col := 1; col <= 7; col++ {
			if (len(rows) == 2 && col < weekdayOffset) || day > days {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop))
				continue
			}
			date := time.Date(firstDay.Year(), firstDay.Month(), day, 0, 0, 0, 0, loc)
			if allowed(date) {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d", day), "date:"+date.Format("2006-01-02")))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData("·", cbNoop))
			}
			day++
		}
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// TimeSlots turns a computed day into picker buttons.
func TimeSlots(res *availability.Result) []TimeSlot {
	out := make([]TimeSlot, 0, len(res.Slots))
	for _, slot := range res.Slots {
		out = append(out, TimeSlot{
			Label:        availability.FormatClock(slot),
			CallbackData: fmt.Sprintf("slot:%d", slot),
			Available:    !res.IsDisabled(slot),
		})
	}
	return out
}

// GenerateTimeSlotsKeyboard lays slots out four per row. Disabled slots
// stay tappable so the bot can say why they are disabled.
func GenerateTimeSlotsKeyboard(slots []TimeSlot) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(slots)/4+2)
	var currentRow []tgbotapi.InlineKeyboardButton
	for _, slot := range slots {
		text := slot.Label
		if !slot.Available {
			text = "⛔ " + slot.Label
		}
		data := slot.CallbackData
		if data == "" {
			data = "slot:" + slot.Label
		}
		currentRow = append(currentRow, tgbotapi.NewInlineKeyboardButtonData(text, data))
		if len(currentRow) == 4 {
			rows = append(rows, currentRow)
			currentRow = nil
		}
	}
	if len(currentRow) > 0 {
		rows = append(rows, currentRow)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", cbRefresh),
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Other date", cbBack),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
