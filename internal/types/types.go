package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects the KIS account type. Each mode has its own host and tr_id codes.
type Mode string

const (
	ModeLive      Mode = "LIVE"
	ModeSimulated Mode = "SIMULATED"
)

// ParseMode accepts the long and short spellings used in config files.
// Anything unrecognised falls back to the simulated account.
func ParseMode(s string) Mode {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIVE", "REAL", "R":
		return ModeLive
	default:
		return ModeSimulated
	}
}

func (m Mode) IsLive() bool { return m == ModeLive }

type Intent int

const (
	IntentBuy Intent = iota + 1
	IntentSell
	IntentAmend
	IntentCancel
	IntentBalanceQuery
	IntentBuyabilityQuery
	IntentAmendableQuery
)

func (i Intent) String() string {
	switch i {
	case IntentBuy:
		return "BUY"
	case IntentSell:
		return "SELL"
	case IntentAmend:
		return "AMEND"
	case IntentCancel:
		return "CANCEL"
	case IntentBalanceQuery:
		return "BALANCE"
	case IntentBuyabilityQuery:
		return "BUYABILITY"
	case IntentAmendableQuery:
		return "AMENDABLE"
	default:
		return "UNKNOWN"
	}
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Intent maps an order side to its trading intent.
func (s Side) Intent() Intent {
	if s == SideSell {
		return IntentSell
	}
	return IntentBuy
}

// PriceDivision is the KIS ORD_DVSN code.
type PriceDivision string

const (
	DivisionLimit       PriceDivision = "00"
	DivisionMarket      PriceDivision = "01"
	DivisionPreMarket   PriceDivision = "05"
	DivisionAfterMarket PriceDivision = "06"
	DivisionSinglePrice PriceDivision = "07"
)

// Known reports whether d is one of the KIS ORD_DVSN codes.
func (d PriceDivision) Known() bool {
	switch d {
	case DivisionLimit, DivisionMarket, DivisionPreMarket, DivisionAfterMarket, DivisionSinglePrice:
		return true
	}
	return false
}

// ParsePriceDivision accepts either the KIS code or a readable name.
func ParsePriceDivision(s string) (PriceDivision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "00", "limit":
		return DivisionLimit, true
	case "01", "market", "":
		return DivisionMarket, true
	case "05", "pre-market", "premarket":
		return DivisionPreMarket, true
	case "06", "after-market", "aftermarket":
		return DivisionAfterMarket, true
	case "07", "single-price", "singleprice":
		return DivisionSinglePrice, true
	default:
		return "", false
	}
}

type OrderRequest struct {
	StockCode string        `json:"stock_code"`
	Quantity  int64         `json:"quantity"`
	Division  PriceDivision `json:"division"`
	Price     int64         `json:"price"`
	Side      Side          `json:"side"`
}

// AmendRequest changes the division, quantity or price of a pending order.
type AmendRequest struct {
	OrgNumber   string        `json:"org_number"`
	OrderNumber string        `json:"order_number"`
	Division    PriceDivision `json:"division"`
	Quantity    int64         `json:"quantity"`
	Price       int64         `json:"price"`
	AllQuantity bool          `json:"all_quantity"`
}

type CancelRequest struct {
	OrgNumber   string `json:"org_number"`
	OrderNumber string `json:"order_number"`
	Quantity    int64  `json:"quantity"`
	AllQuantity bool   `json:"all_quantity"`
}

// OrderReceipt is only ever built from an accepted (rt_cd == "0") response.
type OrderReceipt struct {
	Accepted    bool              `json:"accepted"`
	Intent      Intent            `json:"intent"`
	OrgNumber   string            `json:"org_number"`
	OrderNumber string            `json:"order_number"`
	OrderTime   time.Time         `json:"order_time"`
	Body        map[string]string `json:"body"`
}

// Cursor holds the KIS continuation keys for paged queries.
type Cursor struct {
	FK100 string `json:"fk100"`
	NK100 string `json:"nk100"`
}

func (c Cursor) IsZero() bool {
	return strings.TrimSpace(c.FK100) == "" && strings.TrimSpace(c.NK100) == ""
}

type AmendableOrder struct {
	OrgNumber         string `json:"org_number"`
	OrderNumber       string `json:"order_number"`
	OriginalNumber    string `json:"original_number"`
	DivisionName      string `json:"division_name"`
	StockCode         string `json:"stock_code"`
	StockName         string `json:"stock_name"`
	Quantity          int64  `json:"quantity"`
	Price             int64  `json:"price"`
	OrderTime         string `json:"order_time"`
	AmendableQuantity int64  `json:"amendable_quantity"`
	IsBuy             bool   `json:"is_buy"`
}

type AmendablePage struct {
	Orders  []AmendableOrder `json:"orders"`
	HasMore bool             `json:"has_more"`
	Next    Cursor           `json:"next"`
}

type BalanceEntry struct {
	StockCode      string          `json:"stock_code"`
	StockName      string          `json:"stock_name"`
	Quantity       int64           `json:"quantity"`
	AvgPrice       decimal.Decimal `json:"avg_price"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	EvalAmount     decimal.Decimal `json:"eval_amount"`
}

type BalanceSummary struct {
	Deposit         decimal.Decimal `json:"deposit"`
	TotalEvaluation decimal.Decimal `json:"total_evaluation"`
	NetAsset        decimal.Decimal `json:"net_asset"`
	EvaluationPnL   decimal.Decimal `json:"evaluation_pnl"`
}

type BalancePage struct {
	Entries []BalanceEntry  `json:"entries"`
	Summary *BalanceSummary `json:"summary,omitempty"`
	HasMore bool            `json:"has_more"`
	Next    Cursor          `json:"next"`
}

type BuyabilityResult struct {
	StockCode   string          `json:"stock_code"`
	MaxAmount   decimal.Decimal `json:"max_amount"`
	MaxQuantity int64           `json:"max_quantity"`
}

// Instrument is one row of the exchange listing master.
type Instrument struct {
	Code         string `json:"code"`
	StandardCode string `json:"standard_code"`
	Name         string `json:"name"`
	Market       string `json:"market"`
}

type LoopState string

const (
	StateIdle   LoopState = "IDLE"
	StateActing LoopState = "ACTING"
)

type ActionResult struct {
	Name   string `json:"name"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StepResult describes one tick of the polling loop.
type StepResult struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"time"`
	State   LoopState      `json:"state"`
	Actions []ActionResult `json:"actions,omitempty"`
}
