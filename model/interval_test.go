package model_test

import (
	"testing"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"

	"github.com/stretchr/testify/require"
)

func d(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := model.ParseDate(s)
	require.NoError(t, err)
	return v
}

func iv(t *testing.T, a, b string) model.Interval {
	t.Helper()
	return model.NewInterval(d(t, a), d(t, b))
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b model.Interval
		want bool
	}{
		{"disjoint before", iv(t, "2024-01-01", "2024-01-04"), iv(t, "2024-01-06", "2024-01-10"), false},
		{"disjoint after", iv(t, "2024-01-11", "2024-01-12"), iv(t, "2024-01-06", "2024-01-10"), false},
		{"adjacent days", iv(t, "2024-01-01", "2024-01-05"), iv(t, "2024-01-06", "2024-01-10"), false},
		{"touching end to start", iv(t, "2024-01-01", "2024-01-05"), iv(t, "2024-01-05", "2024-01-10"), true},
		{"touching start to end", iv(t, "2024-01-10", "2024-01-12"), iv(t, "2024-01-05", "2024-01-10"), true},
		{"candidate engulfs", iv(t, "2024-01-01", "2024-01-31"), iv(t, "2024-01-05", "2024-01-10"), true},
		{"candidate inside", iv(t, "2024-01-06", "2024-01-07"), iv(t, "2024-01-05", "2024-01-10"), true},
		{"starts inside", iv(t, "2024-01-08", "2024-01-15"), iv(t, "2024-01-05", "2024-01-10"), true},
		{"ends inside", iv(t, "2024-01-01", "2024-01-06"), iv(t, "2024-01-05", "2024-01-10"), true},
		{"identical", iv(t, "2024-01-05", "2024-01-10"), iv(t, "2024-01-05", "2024-01-10"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, model.Overlaps(tc.a, tc.b))
			require.Equal(t, tc.want, model.Overlaps(tc.b, tc.a), "overlap must be symmetric")
		})
	}
}

func TestInterval_Valid(t *testing.T) {
	require.True(t, iv(t, "2024-06-01", "2024-06-02").Valid())
	require.False(t, iv(t, "2024-06-01", "2024-06-01").Valid())
	require.False(t, iv(t, "2024-06-10", "2024-06-03").Valid())
}

func TestNewInterval_TruncatesTime(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	i := model.NewInterval(
		time.Date(2024, 6, 1, 23, 30, 0, 0, loc),
		time.Date(2024, 6, 3, 1, 0, 0, 0, loc),
	)
	require.Equal(t, d(t, "2024-06-01"), i.Start)
	require.Equal(t, d(t, "2024-06-03"), i.End)
}

func TestInterval_Days(t *testing.T) {
	days := iv(t, "2024-02-27", "2024-03-01").Days()
	require.Len(t, days, 4)
	require.Equal(t, "2024-02-29", model.FormatDate(days[2]))
	require.Nil(t, iv(t, "2024-03-02", "2024-03-01").Days())
}

func TestInterval_Clip(t *testing.T) {
	w := iv(t, "2024-06-03", "2024-06-30")

	got, ok := iv(t, "2024-06-01", "2024-06-05").Clip(w)
	require.True(t, ok)
	require.Equal(t, iv(t, "2024-06-03", "2024-06-05"), got)

	_, ok = iv(t, "2024-07-01", "2024-07-05").Clip(w)
	require.False(t, ok)
}

func TestBooking_ActiveAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	require.True(t, model.Booking{Status: model.BookingBooked}.ActiveAt(now))
	require.False(t, model.Booking{Status: model.BookingCancelled}.ActiveAt(now))
	require.True(t, model.Booking{Status: model.BookingPending, HeldUntil: &later}.ActiveAt(now))
	require.False(t, model.Booking{Status: model.BookingPending, HeldUntil: &earlier}.ActiveAt(now))
	require.False(t, model.Booking{Status: model.BookingPending}.ActiveAt(now))
}
