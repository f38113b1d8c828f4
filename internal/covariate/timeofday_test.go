package covariate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"09:00-17:00", "09:00-17:00"},
		{"9:05-17:30", "09:05-17:30"},
		{"22:00-02:00", "22:00-02:00"},
		{"00:00-23:59", "00:00-23:59"},
		{"10:15", "10:15"},
		{"10:15-10:15", "10:15"},
	}
	for _, tt := range tests {
		w, err := ParseWindow(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, w.String(), tt.in)
	}
}

func TestParseWindowRejects(t *testing.T) {
	for _, in := range []string{
		"", "morning", "25:00-26:00", "09:60", "9-17", "09:00-", "-17:00", "09:00-17:00-18:00",
	} {
		_, err := ParseWindow(in)
		assert.Error(t, err, in)
	}
}

func TestWindowCovers(t *testing.T) {
	w, err := ParseWindow("09:00-17:00")
	require.NoError(t, err)

	assert.True(t, w.Covers(9*60))
	assert.True(t, w.Covers(17*60))
	assert.True(t, w.Covers(12*60+30))
	assert.False(t, w.Covers(8*60+59))
	assert.False(t, w.Covers(17*60+1))
}

func TestWindowCoversWrapsMidnight(t *testing.T) {
	w, err := ParseWindow("22:00-02:00")
	require.NoError(t, err)

	assert.True(t, w.Covers(23*60))
	assert.True(t, w.Covers(0))
	assert.True(t, w.Covers(2*60))
	assert.False(t, w.Covers(3*60))
	assert.False(t, w.Covers(12*60))
}

func TestWindowContains(t *testing.T) {
	day, err := ParseWindow("09:00-17:00")
	require.NoError(t, err)
	lunch, err := ParseWindow("12:00-13:00")
	require.NoError(t, err)
	night, err := ParseWindow("22:00-02:00")
	require.NoError(t, err)
	lateNight, err := ParseWindow("23:00-01:00")
	require.NoError(t, err)

	assert.True(t, day.Contains(lunch))
	assert.False(t, lunch.Contains(day))
	assert.True(t, day.Contains(day))

	// Containment across the midnight wrap.
	assert.True(t, night.Contains(lateNight))
	assert.False(t, lateNight.Contains(night))
	assert.False(t, night.Contains(lunch))
}

func TestWindowOverlaps(t *testing.T) {
	day, err := ParseWindow("09:00-17:00")
	require.NoError(t, err)
	evening, err := ParseWindow("16:00-20:00")
	require.NoError(t, err)
	night, err := ParseWindow("22:00-02:00")
	require.NoError(t, err)
	morning, err := ParseWindow("01:00-05:00")
	require.NoError(t, err)

	assert.True(t, day.Overlaps(evening))
	assert.True(t, evening.Overlaps(day))
	assert.False(t, day.Overlaps(night))
	assert.True(t, night.Overlaps(morning))
}

func TestTimeOfDayMatch(t *testing.T) {
	m := TimeOfDayMatcher{}

	tests := []struct {
		name     string
		current  string
		baseline string
		want     Conformance
	}{
		{"point inside window", "10:30", "09:00-17:00", Conforms},
		{"point outside window", "08:00", "09:00-17:00", DoesNotConform},
		{"window inside window", "10:00-12:00", "09:00-17:00", Conforms},
		{"windows overlap", "16:00-20:00", "09:00-17:00", PartiallyConforms},
		{"windows disjoint", "18:00-20:00", "09:00-17:00", DoesNotConform},
		{"inside wrapped window", "23:30", "22:00-02:00", Conforms},
		{"overlap with wrapped window", "01:00-05:00", "22:00-02:00", PartiallyConforms},
		{"identical windows", "09:00-17:00", "09:00-17:00", Conforms},
		{"undefined current", Undefined, "09:00-17:00", DoesNotConform},
		{"undefined baseline", "10:30", Undefined, DoesNotConform},
		{"both undefined", Undefined, Undefined, DoesNotConform},
		{"unparseable current", "morning", "09:00-17:00", DoesNotConform},
		{"unparseable baseline", "10:30", "whenever", DoesNotConform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.current, tt.baseline))
		})
	}
}

func TestTimeOfDayCanonicalize(t *testing.T) {
	m := TimeOfDayMatcher{}

	assert.Equal(t, "09:05-17:30", m.Canonicalize("9:05-17:30"))
	assert.Equal(t, "10:15", m.Canonicalize("10:15-10:15"))
	// Unparseable values pass through untouched.
	assert.Equal(t, "morning", m.Canonicalize("morning"))
}
