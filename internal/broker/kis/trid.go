package kis

import (
	"fmt"

	"kis-trading-bot/internal/types"
)

var tradingIDs = map[types.Mode]map[types.Intent]string{
	types.ModeLive: {
		types.IntentBuy:             "TTTC0802U",
		types.IntentSell:            "TTTC0801U",
		types.IntentAmend:           "TTTC0803U",
		types.IntentCancel:          "TTTC0803U",
		types.IntentBalanceQuery:    "TTTC8434R",
		types.IntentBuyabilityQuery: "TTTC8908R",
		types.IntentAmendableQuery:  "TTTC8036R",
	},
	types.ModeSimulated: {
		types.IntentBuy:             "VTTC0802U",
		types.IntentSell:            "VTTC0801U",
		types.IntentAmend:           "VTTC0803U",
		types.IntentCancel:          "VTTC0803U",
		types.IntentBalanceQuery:    "VTTC8434R",
		types.IntentBuyabilityQuery: "VTTC8908R",
	},
}

// TradingID returns the tr_id header for a mode and intent. An unknown pair
// is a programming error and panics; the amendable-order query has no
// simulated code, so callers must reject it before getting here.
func TradingID(mode types.Mode, intent types.Intent) string {
	if id, ok := tradingIDs[mode][intent]; ok {
		return id
	}
	panic(fmt.Sprintf("kis: no tr_id for mode %s intent %s", mode, intent))
}
