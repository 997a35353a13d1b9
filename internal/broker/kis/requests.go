package kis

import (
	"fmt"
	"strconv"

	"kis-trading-bot/internal/types"
)

// Request bodies are marshalled in field order, so the bytes sent to
// /uapi/hashkey and to the order endpoint are identical.

type orderCashBody struct {
	CANO       string `json:"CANO"`
	ACNTPRDTCD string `json:"ACNT_PRDT_CD"`
	PDNO       string `json:"PDNO"`
	ORDDVSN    string `json:"ORD_DVSN"`
	ORDQTY     string `json:"ORD_QTY"`
	ORDUNPR    string `json:"ORD_UNPR"`
}

func newOrderCashBody(acct AccountKey, req types.OrderRequest) orderCashBody {
	return orderCashBody{
		CANO:       acct.CANO,
		ACNTPRDTCD: acct.ProductCD,
		PDNO:       req.StockCode,
		ORDDVSN:    string(req.Division),
		ORDQTY:     formatQty(req.Quantity),
		ORDUNPR:    strconv.FormatInt(req.Price, 10),
	}
}

const (
	revisionAmend  = "01"
	revisionCancel = "02"
)

type revisionBody struct {
	CANO            string `json:"CANO"`
	ACNTPRDTCD      string `json:"ACNT_PRDT_CD"`
	KRXFWDGORDORGNO string `json:"KRX_FWDG_ORD_ORGNO"`
	ORGNODNO        string `json:"ORGN_ODNO"`
	ORDDVSN         string `json:"ORD_DVSN"`
	RVSECNCLDVSNCD  string `json:"RVSE_CNCL_DVSN_CD"`
	ORDQTY          string `json:"ORD_QTY"`
	ORDUNPR         string `json:"ORD_UNPR"`
	QTYALLORDYN     string `json:"QTY_ALL_ORD_YN"`
}

func newAmendBody(acct AccountKey, req types.AmendRequest) revisionBody {
	return revisionBody{
		CANO:            acct.CANO,
		ACNTPRDTCD:      acct.ProductCD,
		KRXFWDGORDORGNO: req.OrgNumber,
		ORGNODNO:        req.OrderNumber,
		ORDDVSN:         string(req.Division),
		RVSECNCLDVSNCD:  revisionAmend,
		ORDQTY:          allOrQty(req.AllQuantity, req.Quantity),
		ORDUNPR:         strconv.FormatInt(req.Price, 10),
		QTYALLORDYN:     yn(req.AllQuantity),
	}
}

// Cancel leaves the division and price blank; the server ignores them.
func newCancelBody(acct AccountKey, req types.CancelRequest) revisionBody {
	return revisionBody{
		CANO:            acct.CANO,
		ACNTPRDTCD:      acct.ProductCD,
		KRXFWDGORDORGNO: req.OrgNumber,
		ORGNODNO:        req.OrderNumber,
		ORDDVSN:         "",
		RVSECNCLDVSNCD:  revisionCancel,
		ORDQTY:          allOrQty(req.AllQuantity, req.Quantity),
		ORDUNPR:         "",
		QTYALLORDYN:     yn(req.AllQuantity),
	}
}

type amendableQuery struct {
	acct   AccountKey
	cursor types.Cursor
}

func (q amendableQuery) params() map[string]string {
	return map[string]string{
		"CANO":           q.acct.CANO,
		"ACNT_PRDT_CD":   q.acct.ProductCD,
		"CTX_AREA_FK100": q.cursor.FK100,
		"CTX_AREA_NK100": q.cursor.NK100,
		"INQR_DVSN_1":    "0",
		"INQR_DVSN_2":    "0",
	}
}

type balanceQuery struct {
	acct   AccountKey
	cursor types.Cursor
}

func (q balanceQuery) params() map[string]string {
	return map[string]string{
		"CANO":                  q.acct.CANO,
		"ACNT_PRDT_CD":          q.acct.ProductCD,
		"AFHR_FLPR_YN":          "N",
		"OFL_YN":                "",
		"INQR_DVSN":             "02", // per stock
		"UNPR_DVSN":             "01",
		"FUND_STTL_ICLD_YN":     "N",
		"FNCG_AMT_AUTO_RDPT_YN": "N",
		"PRCS_DVSN":             "00",
		"CTX_AREA_FK100":        q.cursor.FK100,
		"CTX_AREA_NK100":        q.cursor.NK100,
	}
}

type buyabilityQuery struct {
	acct      AccountKey
	stockCode string
	price     int64
}

func (q buyabilityQuery) params() map[string]string {
	return map[string]string{
		"CANO":                 q.acct.CANO,
		"ACNT_PRDT_CD":         q.acct.ProductCD,
		"PDNO":                 q.stockCode,
		"ORD_UNPR":             strconv.FormatInt(q.price, 10),
		"ORD_DVSN":             string(types.DivisionLimit),
		"CMA_EVLU_AMT_ICLD_YN": "N",
		"OVRS_ICLD_YN":         "N",
	}
}

// formatQty zero-pads to two digits, matching what the KIS samples send.
func formatQty(q int64) string {
	return fmt.Sprintf("%02d", q)
}

func allOrQty(all bool, q int64) string {
	if all {
		return "0"
	}
	return formatQty(q)
}

func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
