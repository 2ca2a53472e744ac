package bot

import (
	"context"
	"time"

	"salonbook/internal/auth"
	"salonbook/internal/availability"
	"salonbook/internal/catalog"
	"salonbook/internal/db"
	"salonbook/internal/events"
	"salonbook/internal/salonapi"
)

// Backend is the salon API acting for one user. Account calls fail with
// salonapi.ErrUnauthorized for guests.
type Backend interface {
	TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error)
	UpcomingBookings(ctx context.Context) ([]availability.OwnBooking, error)
	UpcomingAppointments(ctx context.Context) ([]salonapi.Appointment, error)
	CreateAppointment(ctx context.Context, req salonapi.CreateAppointmentRequest) (*salonapi.Appointment, error)
	StartCheckout(ctx context.Context, appointmentID string) (string, error)
	CancelAppointment(ctx context.Context, appointmentID string) error

	Login(ctx context.Context, email, password string) (*salonapi.TokenPair, error)
	Register(ctx context.Context, req salonapi.RegisterRequest) error
	ResetPassword(ctx context.Context, email string) error
	GetProfile(ctx context.Context) (*salonapi.Profile, error)
	UpdateProfile(ctx context.Context, patch salonapi.ProfilePatch) (*salonapi.Profile, error)
}

// BackendFor returns the Backend acting for a session.
type BackendFor func(ctx context.Context, s *auth.Session) Backend

// ClientBackend authenticates c with the session's tokens when signed in.
func ClientBackend(c *salonapi.Client) BackendFor {
	return func(ctx context.Context, s *auth.Session) Backend {
		if s == nil || !s.IsAuthenticated() {
			return c
		}
		return c.WithTokenSource(s.TokenSource(ctx))
	}
}

type Styles interface {
	Styles(ctx context.Context) ([]salonapi.Style, error)
	Search(ctx context.Context, f catalog.Filter) ([]salonapi.Style, error)
	Style(ctx context.Context, id string) (salonapi.Style, error)
}

// Store is the local sqlite state the bot reads and writes directly.
type Store interface {
	GetGuestContact(ctx context.Context, telegramID int64) (*db.GuestContact, error)
	SaveGuestContact(ctx context.Context, c db.GuestContact) error
	UserJournal(ctx context.Context, telegramID int64, from time.Time) ([]db.JournalEntry, error)
}

type AccessControl interface {
	Middleware(ctx context.Context, userID int64) error
	ManagerMiddleware(ctx context.Context, userID int64) error
	IsManager(ctx context.Context, userID int64) (bool, error)
	BlockUser(ctx context.Context, userID int64, reason string, blockedBy int64) error
	UnblockUser(ctx context.Context, userID, unblockedBy int64) error
	GetManagerChatIDs(ctx context.Context) ([]int64, error)
}

type Publisher interface {
	Publish(event events.Event) error
}

// Reporter builds and sends the monthly bookings export.
type Reporter interface {
	SendReport(ctx context.Context, month time.Time) error
}
