package interfaces

import "kis-trading-bot/internal/types"

// InstrumentProvider resolves a 6-character stock code to its listing row.
type InstrumentProvider interface {
	Lookup(code string) (types.Instrument, bool)
}
