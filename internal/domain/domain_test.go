package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindows(t *testing.T) {
	got, err := ParseWindows("09:00-12:00, 13:30-16:00,")
	require.NoError(t, err)
	assert.Equal(t, []Window{
		{Start: Clock(9, 0), End: Clock(12, 0)},
		{Start: Clock(13, 30), End: Clock(16, 0)},
	}, got)
	assert.Equal(t, "13:30-16:00", got[1].String())

	for _, bad := range []string{"09:00", "9am-10am", "12:00-09:00", "10:00-10:00"} {
		_, err := ParseWindows(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:05")
	require.NoError(t, err)
	assert.Equal(t, 8, tod.Hour())
	assert.Equal(t, 5, tod.Minute())
	assert.Equal(t, "08:35", tod.Add(30*time.Minute).String())

	monday := time.Date(2025, 3, 3, 17, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 3, 8, 5, 0, 0, time.UTC), tod.On(monday))
}

func TestNextOccurrence(t *testing.T) {
	wednesday := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), NextOccurrence(time.Wednesday, wednesday))
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), NextOccurrence(time.Monday, wednesday))
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), NextOccurrence(time.Sunday, wednesday))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = ParseDate("03/03/2025")
	assert.Equal(t, "validation_error", Kind(err))
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrPatientNotFound, "not_found"},
		{fmt.Errorf("book: %w", ErrSlotUnavailable), "slot_unavailable"},
		{Invalid("fee", "must not be negative"), "validation_error"},
		{Forbid(Actor{UserID: 4, Role: RolePatient}, "confirm"), "forbidden"},
		{errors.New("connection reset"), "internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Kind(tc.err), tc.err.Error())
	}
}

func TestForbidMessage(t *testing.T) {
	err := RequireStaff(Actor{UserID: 4, Role: RolePatient}, "confirm appointments")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "patient:4 may not confirm appointments: forbidden", err.Error())
	assert.NoError(t, RequireStaff(Actor{UserID: 1, Role: RoleReceptionist}, "confirm appointments"))
}

func TestProductValidate(t *testing.T) {
	ok := Product{Manufacturer: "Oticon", Model: "Intent 1", Price: decimal.NewFromInt(2100)}
	assert.NoError(t, ok.Validate())

	neg := ok
	neg.Price = decimal.NewFromInt(-1)
	var verr *ValidationError
	require.ErrorAs(t, neg.Validate(), &verr)
	assert.Equal(t, "price", verr.Field)

	missing := ok
	missing.Model = "  "
	require.ErrorAs(t, missing.Validate(), &verr)
	assert.Equal(t, "model", verr.Field)
}

func TestAudiogramDataBounds(t *testing.T) {
	d := AudiogramData{Ear: EarLeft, Frequency: 1000, Threshold: 40}
	assert.NoError(t, d.Validate())

	d.Frequency = 9000
	assert.ErrorIs(t, d.Validate(), ErrValidation)

	d = AudiogramData{Ear: "both", Frequency: 1000, Threshold: 40}
	assert.ErrorIs(t, d.Validate(), ErrValidation)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPending.Active())
	assert.True(t, StatusConfirmed.Active())
	assert.False(t, StatusCancelled.Active())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, AppointmentStatus("no_show").Valid())
}
