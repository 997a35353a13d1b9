package kis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kis-trading-bot/internal/types"

	"github.com/shopspring/decimal"
)

// envelope is the common shape of every KIS trading response.
type envelope struct {
	RtCd    string          `json:"rt_cd"`
	MsgCd   string          `json:"msg_cd"`
	Msg1    string          `json:"msg1"`
	Output  json.RawMessage `json:"output"`
	Output1 json.RawMessage `json:"output1"`
	Output2 json.RawMessage `json:"output2"`
	CtxFK   *string         `json:"ctx_area_fk100"`
	CtxNK   *string         `json:"ctx_area_nk100"`
}

func (e envelope) ok() bool { return e.RtCd == "0" }

// next returns the continuation cursor. More rows exist whenever a cursor
// field is present in the response, even if its value is blank.
func (e envelope) next() (types.Cursor, bool) {
	var c types.Cursor
	if e.CtxFK != nil {
		c.FK100 = strings.TrimSpace(*e.CtxFK)
	}
	if e.CtxNK != nil {
		c.NK100 = strings.TrimSpace(*e.CtxNK)
	}
	return c, e.CtxFK != nil || e.CtxNK != nil
}

type orderOutput struct {
	OrgNo string `json:"KRX_FWDG_ORD_ORGNO"`
	OrdNo string `json:"ODNO"`
	OrdTm string `json:"ORD_TMD"`
}

type amendableRow struct {
	OrgNo       string `json:"ord_gno_brno"`
	OrdNo       string `json:"odno"`
	OrigOrdNo   string `json:"orgn_odno"`
	DvsnName    string `json:"ord_dvsn_name"`
	Pdno        string `json:"pdno"`
	PrdtName    string `json:"prdt_name"`
	OrdQty      string `json:"ord_qty"`
	OrdUnpr     string `json:"ord_unpr"`
	OrdTmd      string `json:"ord_tmd"`
	PsblQty     string `json:"psbl_qty"`
	SllBuyDvsCd string `json:"sll_buy_dvsn_cd"`
}

type balanceRow struct {
	Pdno       string `json:"pdno"`
	PrdtName   string `json:"prdt_name"`
	HldgQty    string `json:"hldg_qty"`
	PchsAvgPrc string `json:"pchs_avg_pric"`
	PchsAmt    string `json:"pchs_amt"`
	EvluAmt    string `json:"evlu_amt"`
}

type balanceSummaryRow struct {
	DncaTotAmt      string `json:"dnca_tot_amt"`
	TotEvluAmt      string `json:"tot_evlu_amt"`
	NassAmt         string `json:"nass_amt"`
	EvluPflsSmtlAmt string `json:"evlu_pfls_smtl_amt"`
}

type buyabilityOutput struct {
	MaxBuyAmt string `json:"max_buy_amt"`
	MaxBuyQty string `json:"max_buy_qty"`
}

// sll_buy_dvsn_cd: 01 sell, 02 buy.
const buyDivisionCode = "02"

// parseOrderTime combines an HHMMSS order time with day's KST date.
func parseOrderTime(hhmmss string, day time.Time) (time.Time, error) {
	t, err := time.Parse("150405", strings.TrimSpace(hhmmss))
	if err != nil {
		return time.Time{}, fmt.Errorf("order time %q: %w", hhmmss, err)
	}
	d := day.In(KST)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, KST), nil
}

func (r amendableRow) toOrder() (types.AmendableOrder, error) {
	qty, err := parseInt(r.OrdQty)
	if err != nil {
		return types.AmendableOrder{}, err
	}
	price, err := parseInt(r.OrdUnpr)
	if err != nil {
		return types.AmendableOrder{}, err
	}
	psbl, err := parseInt(r.PsblQty)
	if err != nil {
		return types.AmendableOrder{}, err
	}
	return types.AmendableOrder{
		OrgNumber:         r.OrgNo,
		OrderNumber:       r.OrdNo,
		OriginalNumber:    r.OrigOrdNo,
		DivisionName:      r.DvsnName,
		StockCode:         r.Pdno,
		StockName:         r.PrdtName,
		Quantity:          qty,
		Price:             price,
		OrderTime:         r.OrdTmd,
		AmendableQuantity: psbl,
		IsBuy:             r.SllBuyDvsCd == buyDivisionCode,
	}, nil
}

func (r balanceRow) toEntry() (types.BalanceEntry, error) {
	qty, err := parseInt(r.HldgQty)
	if err != nil {
		return types.BalanceEntry{}, err
	}
	avg, err := parseDecimal(r.PchsAvgPrc)
	if err != nil {
		return types.BalanceEntry{}, err
	}
	pchs, err := parseDecimal(r.PchsAmt)
	if err != nil {
		return types.BalanceEntry{}, err
	}
	evlu, err := parseDecimal(r.EvluAmt)
	if err != nil {
		return types.BalanceEntry{}, err
	}
	return types.BalanceEntry{
		StockCode:      r.Pdno,
		StockName:      r.PrdtName,
		Quantity:       qty,
		AvgPrice:       avg,
		PurchaseAmount: pchs,
		EvalAmount:     evlu,
	}, nil
}

func (r balanceSummaryRow) toSummary() (*types.BalanceSummary, error) {
	var s types.BalanceSummary
	var err error
	if s.Deposit, err = parseDecimal(r.DncaTotAmt); err != nil {
		return nil, err
	}
	if s.TotalEvaluation, err = parseDecimal(r.TotEvluAmt); err != nil {
		return nil, err
	}
	if s.NetAsset, err = parseDecimal(r.NassAmt); err != nil {
		return nil, err
	}
	if s.EvaluationPnL, err = parseDecimal(r.EvluPflsSmtlAmt); err != nil {
		return nil, err
	}
	return &s, nil
}

// KIS sends numbers as strings; blanks mean zero.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ".") {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("number %q: %w", s, err)
		}
		return d.IntPart(), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("number %q: %w", s, err)
	}
	return n, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decimal %q: %w", s, err)
	}
	return d, nil
}

// bodyEcho turns the exact submitted bytes back into field/value pairs.
func bodyEcho(b []byte) map[string]string {
	m := map[string]string{}
	_ = json.Unmarshal(b, &m)
	return m
}

// unmarshalRows accepts both an array and a single object, since KIS
// returns output2 as a one-element array on some endpoints and an object on others.
func unmarshalRows[T any](raw json.RawMessage) ([]T, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var one T
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		return []T{one}, nil
	}
	var rows []T
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
