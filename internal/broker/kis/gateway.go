package kis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"kis-trading-bot/internal/api"
	"kis-trading-bot/internal/interfaces"
	"kis-trading-bot/internal/logger"
	"kis-trading-bot/internal/types"
)

const (
	orderCashPath      = "/uapi/domestic-stock/v1/trading/order-cash"
	orderRevisionPath  = "/uapi/domestic-stock/v1/trading/order-rvsecncl"
	amendableQueryPath = "/uapi/domestic-stock/v1/trading/inquire-psbl-rvsecncl"
	balanceQueryPath   = "/uapi/domestic-stock/v1/trading/inquire-balance"
	buyabilityPath     = "/uapi/domestic-stock/v1/trading/inquire-psbl-order"

	stockCodeLen = 6
)

// Gateway is the KIS order gateway for one account.
type Gateway struct {
	creds       Credentials
	auth        *Authenticator
	client      *api.Client
	instruments interfaces.InstrumentProvider
	now         func() time.Time

	mu     sync.Mutex
	orders []types.OrderReceipt
}

var _ interfaces.Broker = (*Gateway)(nil)

type GatewayOption func(*Gateway)

// WithInstruments makes order validation reject codes the provider does not know.
func WithInstruments(p interfaces.InstrumentProvider) GatewayOption {
	return func(g *Gateway) { g.instruments = p }
}

// WithGatewayClock replaces time.Now when stamping order receipts.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

func NewGateway(creds Credentials, auth *Authenticator, client *api.Client, opts ...GatewayOption) *Gateway {
	g := &Gateway{creds: creds, auth: auth, client: client, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Params is everything NewKIS needs to build a ready gateway.
type Params struct {
	Mode      types.Mode
	AppKey    string
	AppSecret string
	Account   string

	// BaseURL overrides the mode's domain (tests, proxies).
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Logging           bool

	Instruments interfaces.InstrumentProvider
	Clock       func() time.Time
}

// Default throttles; KIS allows far fewer calls per second on simulated accounts.
const (
	DefaultLiveRPS      = 15.0
	DefaultSimulatedRPS = 2.0
)

func NewKIS(p Params) (*Gateway, error) {
	creds, err := NewCredentials(p.AppKey, p.AppSecret, p.Account, p.Mode)
	if err != nil {
		return nil, err
	}

	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = creds.Domain()
	}
	rps := p.RequestsPerSecond
	if rps == 0 {
		rps = DefaultSimulatedRPS
		if creds.Mode().IsLive() {
			rps = DefaultLiveRPS
		}
	}
	opts := []api.ClientOption{
		api.WithBaseURL(baseURL),
		api.WithRateLimit(rps, p.Burst),
		api.WithLogging(p.Logging),
	}
	if p.Timeout > 0 {
		opts = append(opts, api.WithTimeout(p.Timeout))
	}
	client := api.NewClient(opts...)

	var authOpts []AuthOption
	gwOpts := []GatewayOption{WithInstruments(p.Instruments)}
	if p.Clock != nil {
		authOpts = append(authOpts, WithClock(p.Clock))
		gwOpts = append(gwOpts, WithGatewayClock(p.Clock))
	}
	auth := NewAuthenticator(creds, client, authOpts...)
	return NewGateway(creds, auth, client, gwOpts...), nil
}

func (g *Gateway) Mode() types.Mode { return g.creds.Mode() }

// Orders returns a copy of the receipts accepted so far.
func (g *Gateway) Orders() []types.OrderReceipt {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]types.OrderReceipt, len(g.orders))
	copy(out, g.orders)
	return out
}

// PlaceOrder submits a cash buy or sell.
func (g *Gateway) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderReceipt, error) {
	const op = "place order"
	if req.Division == "" {
		req.Division = types.DivisionMarket
	}
	if err := g.validateOrder(req); err != nil {
		return nil, validationErr(op, err)
	}
	if req.Side == "" {
		req.Side = types.SideBuy
	}
	intent := req.Side.Intent()
	body := newOrderCashBody(g.creds.AccountKey(), req)
	return g.submit(ctx, op, intent, orderCashPath, body, req.StockCode, req.Quantity, req.Price)
}

// AmendOrder changes a pending order through order-rvsecncl.
func (g *Gateway) AmendOrder(ctx context.Context, req types.AmendRequest) (*types.OrderReceipt, error) {
	const op = "amend order"
	if req.Division == "" {
		req.Division = types.DivisionMarket
	}
	if err := validateAmend(req); err != nil {
		return nil, validationErr(op, err)
	}
	body := newAmendBody(g.creds.AccountKey(), req)
	return g.submit(ctx, op, types.IntentAmend, orderRevisionPath, body, "", req.Quantity, req.Price)
}

// CancelOrder cancels part or all of a pending order.
func (g *Gateway) CancelOrder(ctx context.Context, req types.CancelRequest) (*types.OrderReceipt, error) {
	const op = "cancel order"
	if err := validateCancel(req); err != nil {
		return nil, validationErr(op, err)
	}
	body := newCancelBody(g.creds.AccountKey(), req)
	return g.submit(ctx, op, types.IntentCancel, orderRevisionPath, body, "", req.Quantity, 0)
}

// AmendableOrders lists orders that can still be amended or cancelled.
// KIS has no simulated variant of this query.
func (g *Gateway) AmendableOrders(ctx context.Context, cursor types.Cursor) (*types.AmendablePage, error) {
	const op = "amendable orders"
	if !g.Mode().IsLive() {
		return nil, validationErr(op, ErrLiveOnly)
	}

	q := amendableQuery{acct: g.creds.AccountKey(), cursor: cursor}
	env, err := g.query(ctx, op, types.IntentAmendableQuery, amendableQueryPath, q.params())
	if err != nil {
		return nil, err
	}

	rows, err := unmarshalRows[amendableRow](env.Output)
	if err != nil {
		return nil, g.malformed(ctx, op, env, err)
	}
	page := &types.AmendablePage{Orders: make([]types.AmendableOrder, 0, len(rows))}
	for _, r := range rows {
		o, err := r.toOrder()
		if err != nil {
			return nil, g.malformed(ctx, op, env, err)
		}
		page.Orders = append(page.Orders, o)
	}
	page.Next, page.HasMore = env.next()
	if page.HasMore {
		logger.Info(ctx, "More amendable orders available", "fk100", page.Next.FK100, "nk100", page.Next.NK100)
	}
	return page, nil
}

// Balance returns one page of holdings plus the account summary.
func (g *Gateway) Balance(ctx context.Context, cursor types.Cursor) (*types.BalancePage, error) {
	const op = "balance"
	q := balanceQuery{acct: g.creds.AccountKey(), cursor: cursor}
	env, err := g.query(ctx, op, types.IntentBalanceQuery, balanceQueryPath, q.params())
	if err != nil {
		return nil, err
	}

	rows, err := unmarshalRows[balanceRow](env.Output1)
	if err != nil {
		return nil, g.malformed(ctx, op, env, err)
	}
	page := &types.BalancePage{Entries: make([]types.BalanceEntry, 0, len(rows))}
	for _, r := range rows {
		e, err := r.toEntry()
		if err != nil {
			return nil, g.malformed(ctx, op, env, err)
		}
		page.Entries = append(page.Entries, e)
	}

	sums, err := unmarshalRows[balanceSummaryRow](env.Output2)
	if err != nil {
		return nil, g.malformed(ctx, op, env, err)
	}
	if len(sums) > 0 {
		if page.Summary, err = sums[0].toSummary(); err != nil {
			return nil, g.malformed(ctx, op, env, err)
		}
	}

	page.Next, page.HasMore = env.next()
	if page.HasMore {
		logger.Info(ctx, "More balance rows available", "fk100", page.Next.FK100, "nk100", page.Next.NK100)
	}
	return page, nil
}

// Buyability reports the maximum amount and quantity purchasable at price.
func (g *Gateway) Buyability(ctx context.Context, stockCode string, price int64) (*types.BuyabilityResult, error) {
	const op = "buyability"
	if err := g.validateCode(stockCode); err != nil {
		return nil, validationErr(op, err)
	}

	q := buyabilityQuery{acct: g.creds.AccountKey(), stockCode: stockCode, price: price}
	env, err := g.query(ctx, op, types.IntentBuyabilityQuery, buyabilityPath, q.params())
	if err != nil {
		return nil, err
	}

	var out buyabilityOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, g.malformed(ctx, op, env, err)
	}
	amt, err := parseDecimal(out.MaxBuyAmt)
	if err != nil {
		return nil, g.malformed(ctx, op, env, err)
	}
	qty, err := parseInt(out.MaxBuyQty)
	if err != nil {
		return nil, g.malformed(ctx, op, env, err)
	}
	return &types.BuyabilityResult{StockCode: stockCode, MaxAmount: amt, MaxQuantity: qty}, nil
}

func (g *Gateway) validateCode(code string) error {
	if utf8.RuneCountInString(code) != stockCodeLen {
		return ErrInvalidStockCode
	}
	if g.instruments != nil {
		if _, ok := g.instruments.Lookup(code); !ok {
			return ErrUnknownInstrument
		}
	}
	return nil
}

func (g *Gateway) validateOrder(req types.OrderRequest) error {
	if err := g.validateCode(req.StockCode); err != nil {
		return err
	}
	if req.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !req.Division.Known() {
		return ErrInvalidDivision
	}
	if req.Division != types.DivisionMarket && req.Price == 0 {
		return ErrPriceRequired
	}
	return nil
}

func validateAmend(req types.AmendRequest) error {
	if strings.TrimSpace(req.OrgNumber) == "" || strings.TrimSpace(req.OrderNumber) == "" {
		return ErrMissingOrderRef
	}
	if !req.AllQuantity && req.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !req.Division.Known() {
		return ErrInvalidDivision
	}
	if req.Division != types.DivisionMarket && req.Price == 0 {
		return ErrPriceRequired
	}
	return nil
}

func validateCancel(req types.CancelRequest) error {
	if strings.TrimSpace(req.OrgNumber) == "" || strings.TrimSpace(req.OrderNumber) == "" {
		return ErrMissingOrderRef
	}
	if !req.AllQuantity && req.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// submit signs body, posts it and turns an accepted response into a receipt.
func (g *Gateway) submit(ctx context.Context, op string, intent types.Intent, path string, body any, stockCode string, qty, price int64) (*types.OrderReceipt, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, transportErr(op, "", err)
	}

	headers, err := g.headers(ctx, op, intent)
	if err != nil {
		return nil, err
	}
	hash, err := g.auth.HashKey(ctx, raw)
	if err != nil {
		return nil, err
	}
	headers["hashkey"] = hash

	resp, err := g.client.Do(ctx, &api.Request{Method: http.MethodPost, Path: path, Body: raw, Headers: headers})
	env, err := g.decode(ctx, op, resp, err)
	if err != nil {
		return nil, err
	}

	var out orderOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, g.malformed(ctx, op, env, err)
	}
	now := g.now()
	at, err := parseOrderTime(out.OrdTm, now)
	if err != nil {
		logger.Warn(ctx, "Order time unreadable, using local clock", "op", op, "ord_tmd", out.OrdTm)
		at = now.In(KST)
	}

	receipt := types.OrderReceipt{
		Accepted:    true,
		Intent:      intent,
		OrgNumber:   out.OrgNo,
		OrderNumber: out.OrdNo,
		OrderTime:   at,
		Body:        bodyEcho(raw),
	}
	g.mu.Lock()
	g.orders = append(g.orders, receipt)
	g.mu.Unlock()

	logger.Order(ctx, intent.String(), stockCode, qty, price, out.OrdNo,
		"org_number", out.OrgNo, "order_time", at.Format(time.RFC3339), "mode", g.Mode())
	return &receipt, nil
}

func (g *Gateway) query(ctx context.Context, op string, intent types.Intent, path string, params map[string]string) (*envelope, error) {
	headers, err := g.headers(ctx, op, intent)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.GET(ctx, path, params, headers)
	return g.decode(ctx, op, resp, err)
}

func (g *Gateway) headers(ctx context.Context, op string, intent types.Intent) (map[string]string, error) {
	token, err := g.auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, authErr(op, "", ErrEmptyToken)
	}
	h := g.creds.headers()
	h["authorization"] = token
	h["tr_id"] = TradingID(g.Mode(), intent)
	return h, nil
}

// decode maps a raw response to an envelope. KIS reports business errors
// with rt_cd, sometimes under a 4xx/5xx status, so the body is read before
// the status decides anything.
func (g *Gateway) decode(ctx context.Context, op string, resp *api.Response, callErr error) (*envelope, error) {
	var status *api.StatusError
	if callErr != nil && !errors.As(callErr, &status) {
		e := transportErr(op, rawBody(resp), callErr)
		logger.ErrorWithErr(ctx, "KIS request failed", e, "op", op)
		return nil, e
	}

	var env envelope
	if err := resp.ParseJSON(&env); err != nil || env.RtCd == "" {
		cause := callErr
		if cause == nil {
			cause = err
		}
		if cause == nil {
			cause = errors.New("response has no rt_cd")
		}
		e := transportErr(op, resp.String(), cause)
		logger.ErrorWithErr(ctx, "KIS response unreadable", e, "op", op, "status", resp.StatusCode)
		return nil, e
	}

	if !env.ok() {
		logger.Rejection(ctx, op, env.MsgCd, env.Msg1, "rt_cd", env.RtCd, "mode", g.Mode())
		return nil, &Error{Kind: KindRejection, Op: op, MsgCode: env.MsgCd, Message: env.Msg1, Raw: resp.String()}
	}
	if callErr != nil {
		e := transportErr(op, resp.String(), callErr)
		logger.ErrorWithErr(ctx, "KIS request failed", e, "op", op, "status", resp.StatusCode)
		return nil, e
	}
	return &env, nil
}

func (g *Gateway) malformed(ctx context.Context, op string, env *envelope, err error) error {
	e := transportErr(op, string(env.Output), err)
	logger.ErrorWithErr(ctx, "KIS response payload malformed", e, "op", op)
	return e
}
