package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const (
	// httpTimeout is the global per-request timeout; no per-call deadline
	// exists beyond it.
	httpTimeout = 30 * time.Second

	// maxRemarksLen caps free-text remarks sent upstream.
	maxRemarksLen = 100
)

// Gateway is the stateless request/response mapping layer in front of the
// upstream broker. Every method takes a valid session token; Gateway itself
// holds no per-client state.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGateway creates a Gateway for the given environment.
func NewGateway(env Environment) *Gateway {
	return NewGatewayURL(baseURLs[env])
}

// NewGatewayURL creates a Gateway against an explicit base URL. Used in
// tests and for non-standard deployments.
func NewGatewayURL(baseURL string) *Gateway {
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: httpTimeout},
		// Upstream throttling: keep a polite request rate like the
		// broker's own clients do.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Upstream enum translation tables.
var (
	orderTypeMap = map[string]string{
		"MKT": "MARKET",
		"LMT": "LIMIT",
		"SLM": "SL-M",
		"SL":  "SL",
	}
	transactionTypeMap = map[string]string{
		"BUY":  "B",
		"SELL": "S",
	}
	validityMap = map[string]string{
		"DAY": "DAY",
		"IOC": "IOC",
		"GTD": "GTD",
	}
)

func mapOrDefault(m map[string]string, key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	if def != "" {
		return def
	}
	return key
}

// Authenticate performs the initial login call. It is the only request
// that carries credentials in the body instead of a bearer token.
func (g *Gateway) Authenticate(ctx context.Context, creds Credentials, totpCode, clientCode string) (string, error) {
	payload := map[string]any{
		"userid":   creds.UserID,
		"password": creds.Password,
		"apikey":   creds.APIKey,
	}
	if totpCode != "" {
		payload["totp"] = totpCode
	}

	env, err := g.post(ctx, pathAuth, "", payload)
	if err != nil {
		return "", err
	}

	if !env.authSuccess() {
		msg := env.message()
		if msg == "" {
			msg = "unknown error"
		}
		return "", &AuthError{ClientCode: clientCode, Msg: msg}
	}

	return env.authToken()
}

// Logout invalidates a token upstream. Best effort: callers drop the
// cached session regardless of the result.
func (g *Gateway) Logout(ctx context.Context, token string) error {
	_, err := g.post(ctx, pathLogout, token, map[string]any{})
	return err
}

// ValidateOrder applies the order invariants that can be checked without
// any network call.
func ValidateOrder(ord *OrderRequest) error {
	if ord.Quantity <= 0 {
		return Validationf("order quantity must be greater than 0")
	}
	switch ord.OrderType {
	case "LMT", "SL":
		if ord.Price == nil || *ord.Price <= 0 {
			return Validationf("price is required for %s orders", ord.OrderType)
		}
	}
	switch ord.OrderType {
	case "SLM", "SL":
		if ord.TriggerPrice == nil || *ord.TriggerPrice <= 0 {
			return Validationf("trigger price is required for %s orders", ord.OrderType)
		}
	}
	if ord.DisclosedQty > ord.Quantity {
		return Validationf("disclosed quantity cannot exceed total quantity")
	}
	return nil
}

// PlaceOrder validates ord, submits it on behalf of clientCode and returns
// the broker order id.
func (g *Gateway) PlaceOrder(ctx context.Context, token, clientCode string, ord *OrderRequest) (string, error) {
	if err := ValidateOrder(ord); err != nil {
		return "", err
	}

	payload := map[string]any{
		"clientcode":      clientCode,
		"symboltoken":     ord.SymbolToken,
		"transactiontype": mapOrDefault(transactionTypeMap, ord.TransactionType, ""),
		"ordertype":       mapOrDefault(orderTypeMap, ord.OrderType, ""),
		"producttype":     ord.ProductType,
		"quantity":        strconv.Itoa(ord.Quantity),
		"exchange":        ord.Exchange,
		"validity":        mapOrDefault(validityMap, ord.Validity, "DAY"),
	}
	if ord.Price != nil {
		payload["price"] = formatPrice(*ord.Price)
	}
	if ord.TriggerPrice != nil {
		payload["triggerprice"] = formatPrice(*ord.TriggerPrice)
	}
	if ord.DisclosedQty > 0 {
		payload["disclosedquantity"] = strconv.Itoa(ord.DisclosedQty)
	}
	if ord.Remarks != "" {
		payload["remarks"] = truncateRemarks(ord.Remarks)
	}

	env, err := g.authed(ctx, pathPlaceOrder, token, payload)
	if err != nil {
		return "", err
	}
	return env.orderID()
}

// ModifyOrder mutates an open order. The return value reflects the
// upstream success heuristic, not a strict contract.
func (g *Gateway) ModifyOrder(ctx context.Context, token, clientCode, orderID string, mods OrderModification) (bool, error) {
	payload := map[string]any{
		"clientcode":    clientCode,
		"uniqueorderid": orderID,
	}
	if mods.Quantity != nil {
		payload["quantity"] = strconv.Itoa(*mods.Quantity)
	}
	if mods.Price != nil {
		payload["price"] = formatPrice(*mods.Price)
	}
	if mods.TriggerPrice != nil {
		payload["triggerprice"] = formatPrice(*mods.TriggerPrice)
	}
	if mods.OrderType != "" {
		payload["ordertype"] = mapOrDefault(orderTypeMap, mods.OrderType, "")
	}
	if mods.Validity != "" {
		payload["validity"] = mods.Validity
	}
	if mods.DisclosedQty != nil {
		payload["disclosedquantity"] = strconv.Itoa(*mods.DisclosedQty)
	}

	env, err := g.authed(ctx, pathModifyOrder, token, payload)
	if err != nil {
		return false, err
	}
	return env.operationSuccess(), nil
}

// CancelOrder cancels an open order, using the same success heuristic as
// ModifyOrder.
func (g *Gateway) CancelOrder(ctx context.Context, token, clientCode, orderID string) (bool, error) {
	env, err := g.authed(ctx, pathCancelOrder, token, map[string]any{
		"clientcode":    clientCode,
		"uniqueorderid": orderID,
	})
	if err != nil {
		return false, err
	}
	return env.operationSuccess(), nil
}

// GetOrderStatus fetches the upstream detail for one order.
func (g *Gateway) GetOrderStatus(ctx context.Context, token, clientCode, orderID string) (map[string]any, error) {
	env, err := g.authed(ctx, pathOrderStatus, token, map[string]any{
		"clientcode":    clientCode,
		"uniqueorderid": orderID,
	})
	if err != nil {
		return nil, err
	}
	return env.dataObject(), nil
}

// GetOrderBook fetches all of a client's orders.
func (g *Gateway) GetOrderBook(ctx context.Context, token, clientCode string) ([]map[string]any, error) {
	env, err := g.authed(ctx, pathOrderBook, token, map[string]any{"clientcode": clientCode})
	if err != nil {
		return nil, err
	}
	return env.dataList(), nil
}

// GetPositions fetches a client's open positions.
func (g *Gateway) GetPositions(ctx context.Context, token, clientCode string) ([]Position, error) {
	env, err := g.authed(ctx, pathPositions, token, map[string]any{"clientcode": clientCode})
	if err != nil {
		return nil, err
	}

	rows := env.dataList()
	positions := make([]Position, 0, len(rows))
	for _, row := range rows {
		pos := Position{
			SymbolToken: firstString(row, "token", "symboltoken"),
			Symbol:      firstString(row, "symbol", "tradingsymbol"),
			ProductType: firstString(row, "producttype", "productname"),
			Raw:         row,
		}
		if qty, ok := numeric(row["quantity"]); ok {
			pos.Quantity = int(qty)
		} else if qty, ok := numeric(row["netqty"]); ok {
			pos.Quantity = int(qty)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// GetHoldings fetches a client's demat holdings.
func (g *Gateway) GetHoldings(ctx context.Context, token, clientCode string) ([]map[string]any, error) {
	env, err := g.authed(ctx, pathHoldings, token, map[string]any{"clientcode": clientCode})
	if err != nil {
		return nil, err
	}
	return env.dataList(), nil
}

// GetClientProfile fetches a client's upstream profile.
func (g *Gateway) GetClientProfile(ctx context.Context, token, clientCode string) (map[string]any, error) {
	env, err := g.authed(ctx, pathProfile, token, map[string]any{"clientcode": clientCode})
	if err != nil {
		return nil, err
	}
	return env.dataObject(), nil
}

// SearchInstruments fetches the full instrument catalog for an exchange.
func (g *Gateway) SearchInstruments(ctx context.Context, token, exchange string) ([]Instrument, error) {
	if !ValidExchange(exchange) {
		return nil, Validationf("invalid exchange %q, valid exchanges: %v", exchange, ValidExchanges)
	}
	exchange = strings.ToUpper(exchange)

	env, err := g.authed(ctx, pathInstruments, token, map[string]any{"exchangename": exchange})
	if err != nil {
		return nil, err
	}

	rows := env.dataList()
	instruments := make([]Instrument, 0, len(rows))
	for _, row := range rows {
		instruments = append(instruments, Instrument{
			Token:    firstString(row, "token", "scripcode"),
			Symbol:   firstString(row, "symbol", "scripshortname"),
			Name:     firstString(row, "name", "scripname"),
			Exchange: exchange,
		})
	}
	return instruments, nil
}

// authed issues an authenticated request and enforces the data-endpoint
// success heuristic on the envelope.
func (g *Gateway) authed(ctx context.Context, path, token string, payload map[string]any) (envelope, error) {
	env, err := g.post(ctx, path, token, payload)
	if err != nil {
		return nil, err
	}
	if !env.dataSuccess() {
		msg := env.message()
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &ProtocolError{Msg: msg}
	}
	return env, nil
}

// post sends one JSON POST request. token may be empty for the auth call.
func (g *Gateway) post(ctx context.Context, path, token string, payload map[string]any) (envelope, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Msg: err.Error()}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tradegate/1.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Msg: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Msg: fmt.Sprintf("reading response: %v", err)}
	}

	return parseEnvelope(resp.StatusCode, respBody)
}

// formatPrice renders a price the way the upstream expects: a plain
// decimal string.
func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// truncateRemarks caps remarks at maxRemarksLen bytes without cutting
// through a multi-byte rune.
func truncateRemarks(s string) string {
	if len(s) <= maxRemarksLen {
		return s
	}
	cut := maxRemarksLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
