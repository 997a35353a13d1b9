package interfaces

import "time"

type MarketClock interface {
	IsOpen(t time.Time) bool
}
