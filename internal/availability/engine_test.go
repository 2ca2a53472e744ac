package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compute(t *testing.T, q Query) *Result {
	t.Helper()
	res, err := Compute(q, DefaultBusinessHours())
	require.NoError(t, err)
	return res
}

func TestComputeClosedDay(t *testing.T) {
	res := compute(t, Query{Date: sunday, DurationMinutes: 60})

	assert.False(t, res.Open)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Disabled())
	assert.Equal(t, ReasonOutsideHours, reasonOf(res.Check(600)))
}

func TestComputeClosingGuard(t *testing.T) {
	res := compute(t, Query{Date: saturday, DurationMinutes: 30})
	assert.NoError(t, res.Check(1050), "ending exactly at closing is allowed")

	res = compute(t, Query{Date: saturday, DurationMinutes: 45})
	assert.Equal(t, ReasonClosing, reasonOf(res.Check(1050)))
	assert.Contains(t, res.Closing, 1050)
}

func TestComputeDurationLongerThanDay(t *testing.T) {
	res := compute(t, Query{Date: monday, DurationMinutes: 12 * 60})

	assert.Len(t, res.Closing, len(res.Slots))
	assert.Empty(t, res.Available())
}

func TestComputePastGuard(t *testing.T) {
	now := time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)

	res := compute(t, Query{Date: monday, Now: now, DurationMinutes: 30})
	assert.True(t, res.IsDisabled(840))
	assert.False(t, res.IsDisabled(870))
	assert.Equal(t, []string{"09:00", "09:30"}, res.DisabledLabels()[:2])

	future := compute(t, Query{Date: monday.AddDate(0, 0, 1), Now: now, DurationMinutes: 30})
	assert.Empty(t, future.Past)
}

func TestComputeGuestContactScoping(t *testing.T) {
	taken := []TakenSlot{
		{Start: 600, Contact: Contact{Email: "a@x.com"}},
		{Start: 720, Contact: Contact{Phone: "(704) 555-0123"}},
	}

	tests := []struct {
		name         string
		contact      Contact
		wantDisabled []int
	}{
		{"stranger sees nothing", Contact{Email: "b@y.com"}, nil},
		{"same email", Contact{Email: " A@X.com "}, []int{600}},
		{"same phone other format", Contact{Phone: "+1 704.555.0123"}, []int{720}},
		{"no contact", Contact{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compute(t, Query{
				Date:            monday,
				DurationMinutes: 30,
				Viewer:          Viewer{Contact: tt.contact},
				Taken:           taken,
			})
			assert.ElementsMatch(t, tt.wantDisabled, res.Conflicting)
		})
	}
}

func TestComputeGuestLongServiceHitsEarlierBooking(t *testing.T) {
	res := compute(t, Query{
		Date:            monday,
		DurationMinutes: 60,
		Viewer:          Viewer{Contact: Contact{Email: "a@x.com"}},
		Taken:           []TakenSlot{{Start: 600, Contact: Contact{Email: "a@x.com"}}},
	})

	assert.Equal(t, []int{570, 600}, res.Conflicting)
	assert.NoError(t, res.Check(630))
}

func TestComputeAuthenticatedSelfOverlap(t *testing.T) {
	own := []OwnBooking{
		{Start: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), DurationMinutes: 90},
		{Start: time.Date(2026, 10, 20, 11, 30, 0, 0, time.UTC), DurationMinutes: 30},
	}
	taken := []TakenSlot{{Start: 900, Contact: Contact{Email: "other@x.com"}}}

	res := compute(t, Query{
		Date:            monday,
		DurationMinutes: 30,
		Viewer:          Viewer{Authenticated: true},
		Own:             own,
		Taken:           taken,
	})

	assert.Equal(t, ReasonConflict, reasonOf(res.Check(660)))
	assert.NoError(t, res.Check(690))
	assert.NoError(t, res.Check(900), "strangers do not block under the self policy")
	assert.Equal(t, []int{600, 630, 660}, res.Conflicting)
}

func TestComputeOwnBookingsInOtherZone(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, est)
	own := []OwnBooking{{Start: time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC), DurationMinutes: 30}}

	res, err := Compute(Query{Date: date, DurationMinutes: 30, Viewer: Viewer{Authenticated: true}, Own: own}, DefaultBusinessHours())
	require.NoError(t, err)
	assert.Equal(t, []int{600}, res.Conflicting)
}

func TestComputeAnyBookingPolicy(t *testing.T) {
	taken := []TakenSlot{{Start: 900}}

	member := compute(t, Query{
		Date:            monday,
		DurationMinutes: 30,
		Viewer:          Viewer{Authenticated: true},
		Taken:           taken,
		Policy:          PolicyAnyBooking,
	})
	assert.True(t, member.IsDisabled(900))

	guest := compute(t, Query{
		Date:            monday,
		DurationMinutes: 30,
		Viewer:          Viewer{Contact: Contact{Email: "b@y.com"}},
		Taken:           taken,
		Policy:          PolicyAnyBooking,
	})
	assert.True(t, guest.IsDisabled(900))
}

func TestComputeReasonPrecedence(t *testing.T) {
	now := time.Date(2026, 10, 17, 17, 45, 0, 0, time.UTC)
	res := compute(t, Query{
		Date:            saturday,
		Now:             now,
		DurationMinutes: 60,
		Viewer:          Viewer{Contact: Contact{Email: "a@x.com"}},
		Taken:           []TakenSlot{{Start: 1050, Contact: Contact{Email: "a@x.com"}}},
	})

	reason, ok := res.Reason(1050)
	require.True(t, ok)
	assert.Equal(t, ReasonPast, reason)
	assert.NotContains(t, res.Conflicting, 1050)
}

func TestComputeInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		q     Query
		field string
	}{
		{"missing date", Query{DurationMinutes: 30}, "date"},
		{"negative duration", Query{Date: monday, DurationMinutes: -30}, "duration_minutes"},
		{"bad policy", Query{Date: monday, DurationMinutes: 30, Policy: "all"}, "policy"},
		{"taken out of range", Query{Date: monday, DurationMinutes: 30, Taken: []TakenSlot{{Start: 0}, {Start: 1500}}}, "taken[1].time"},
		{"own negative duration", Query{Date: monday, DurationMinutes: 30, Own: []OwnBooking{{Start: monday, DurationMinutes: -1}}}, "own[0].duration_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.q, DefaultBusinessHours())
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.field, inputErr.Field)
		})
	}
}

func TestCheckLabel(t *testing.T) {
	res := compute(t, Query{Date: monday, DurationMinutes: 30})

	assert.NoError(t, res.CheckLabel("10:00 AM"))
	assert.ErrorIs(t, res.CheckLabel("10:15"), ErrSlotUnavailable)
	assert.True(t, res.IsCandidateInvalid(1140))

	var inputErr *InputError
	assert.ErrorAs(t, res.CheckLabel("noon"), &inputErr)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySelfOverlap, p)

	p, err = ParsePolicy("ANY")
	require.NoError(t, err)
	assert.Equal(t, PolicyAnyBooking, p)

	_, err = ParsePolicy("everyone")
	assert.Error(t, err)
}

func reasonOf(err error) Reason {
	var slotErr *SlotError
	if errors.As(err, &slotErr) {
		return slotErr.Reason
	}
	return ""
}
