package market

import (
	"fmt"
	"time"
)

// KST is the Korea Exchange's wall clock.
var KST = time.FixedZone("KST", 9*60*60)

const (
	DefaultOpen  = "08:30"
	DefaultClose = "15:30"
)

// Clock gates trading to the regular session window, both ends inclusive.
type Clock struct {
	open, close time.Duration // offsets from local midnight
	loc         *time.Location
}

// NewClock parses "HH:MM" (or "HH:MM:SS") bounds in loc. A nil loc means KST.
func NewClock(open, close string, loc *time.Location) (*Clock, error) {
	if loc == nil {
		loc = KST
	}
	o, err := parseTimeOfDay(open)
	if err != nil {
		return nil, fmt.Errorf("market open: %w", err)
	}
	c, err := parseTimeOfDay(close)
	if err != nil {
		return nil, fmt.Errorf("market close: %w", err)
	}
	if o > c {
		return nil, fmt.Errorf("market open %s is after close %s", open, close)
	}
	return &Clock{open: o, close: c, loc: loc}, nil
}

// Default returns the 08:30-15:30 KST window.
func Default() *Clock {
	c, _ := NewClock(DefaultOpen, DefaultClose, KST)
	return c
}

// IsOpen compares at full precision, so 15:30:00.000000001 is already closed.
func (c *Clock) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	since := local.Sub(midnight)
	return since >= c.open && since <= c.close
}

func (c *Clock) String() string {
	return fmt.Sprintf("%s-%s %s", fmtOffset(c.open), fmtOffset(c.close), c.loc)
}

func parseTimeOfDay(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("%q is not HH:MM", s)
}

func fmtOffset(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
