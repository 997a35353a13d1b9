package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m, s, ns int) time.Time {
	return time.Date(2026, 10, 16, h, m, s, ns, KST)
}

func TestDefaultWindowBoundaries(t *testing.T) {
	c := Default()
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"08:29:59", at(8, 29, 59, 0), false},
		{"08:30:00", at(8, 30, 0, 0), true},
		{"noon", at(12, 0, 0, 0), true},
		{"15:30:00", at(15, 30, 0, 0), true},
		{"15:30:00.000000001", at(15, 30, 0, 1), false},
		{"15:30:01", at(15, 30, 1, 0), false},
		{"midnight", at(0, 0, 0, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.IsOpen(tc.t))
		})
	}
}

func TestIsOpenConvertsToExchangeTime(t *testing.T) {
	c := Default()
	// 00:30 UTC is 09:30 KST.
	assert.True(t, c.IsOpen(time.Date(2026, 10, 16, 0, 30, 0, 0, time.UTC)))
	// 08:00 UTC is 17:00 KST.
	assert.False(t, c.IsOpen(time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)))
}

func TestNewClock(t *testing.T) {
	c, err := NewClock("09:00", "15:20:30", nil)
	require.NoError(t, err)
	assert.True(t, c.IsOpen(at(15, 20, 30, 0)))
	assert.False(t, c.IsOpen(at(8, 59, 59, 0)))
	assert.Equal(t, "09:00-15:20 KST", c.String())

	_, err = NewClock("9am", "15:30", nil)
	assert.Error(t, err)
	_, err = NewClock("16:00", "15:30", nil)
	assert.Error(t, err)
}
