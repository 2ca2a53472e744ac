package httpapi

import (
	"context"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/salonapi"

	"golang.org/x/oauth2"
)

// ClientFeeds serves Feeds from the salon backend.
type ClientFeeds struct {
	Client *salonapi.Client
}

func (f ClientFeeds) TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error) {
	return f.Client.TakenSlots(ctx, date)
}

// OwnBookings forwards the caller's token instead of the bot's.
func (f ClientFeeds) OwnBookings(ctx context.Context, accessToken string) ([]availability.OwnBooking, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return f.Client.WithTokenSource(ts).UpcomingBookings(ctx)
}
