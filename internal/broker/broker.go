// Package broker wraps the upstream broker API: per-client authenticated
// sessions and the request/response mapping for orders and portfolio reads.
package broker

import (
	"strings"
	"time"
)

// Environment selects the upstream deployment.
type Environment string

const (
	EnvUAT        Environment = "UAT"
	EnvProduction Environment = "PRODUCTION"
)

// Upstream base URLs per environment.
var baseURLs = map[Environment]string{
	EnvUAT:        "https://openapi.motilaloswaluat.com",
	EnvProduction: "https://openapi.motilaloswal.com",
}

// Endpoint paths, identical across environments.
const (
	pathAuth        = "/rest/login/v3/authdirectapi"
	pathLogout      = "/rest/login/v2/logout"
	pathProfile     = "/rest/report/v1/profile"
	pathPositions   = "/rest/report/v1/getposition"
	pathHoldings    = "/rest/report/v1/getdpholding"
	pathInstruments = "/rest/report/v1/getscripsbyexchangename"
	pathPlaceOrder  = "/rest/secure/v1/placeorder"
	pathModifyOrder = "/rest/secure/v1/modifyorder"
	pathCancelOrder = "/rest/secure/v1/cancelorder"
	pathOrderStatus = "/rest/report/v1/getorderdetail"
	pathOrderBook   = "/rest/report/v1/getorderbook"
)

// ValidExchanges lists the exchanges accepted by the catalog endpoints.
var ValidExchanges = []string{"NSE", "BSE", "MCX", "NCDEX", "CDS"}

// ValidExchange reports whether exchange (case-insensitive) is supported.
func ValidExchange(exchange string) bool {
	up := strings.ToUpper(exchange)
	for _, e := range ValidExchanges {
		if e == up {
			return true
		}
	}
	return false
}

// Credentials holds one segment's decrypted broker credentials. Instances
// are built per authentication attempt and discarded immediately after the
// auth call; they are never persisted or logged.
type Credentials struct {
	APIKey   string
	Secret   string
	UserID   string
	Password string
	TOTPSeed string // optional
}

// Valid reports whether all required fields are present.
func (c Credentials) Valid() bool {
	for _, f := range []string{c.APIKey, c.Secret, c.UserID, c.Password} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// Session is a cached upstream authentication token with its expiry.
type Session struct {
	ClientID  int64
	Segment   string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return !time.Now().Before(s.ExpiresAt)
}

// OrderRequest is the gateway-level representation of one order.
type OrderRequest struct {
	SymbolToken     string
	Exchange        string
	OrderType       string // MKT, LMT, SLM, SL
	TransactionType string // BUY, SELL
	ProductType     string // MIS, CNC, NRML
	Quantity        int
	Price           *float64
	TriggerPrice    *float64
	DisclosedQty    int
	Validity        string // DAY, IOC, GTD
	Remarks         string
}

// OrderModification carries the mutable fields of an order; nil/empty
// fields are left untouched upstream.
type OrderModification struct {
	Quantity     *int
	Price        *float64
	TriggerPrice *float64
	OrderType    string
	Validity     string
	DisclosedQty *int
}

// Position is a normalized upstream position row. Raw preserves the full
// upstream payload for callers that need untranslated fields.
type Position struct {
	SymbolToken string
	Symbol      string
	ProductType string
	Quantity    int
	Raw         map[string]any
}

// Instrument is a normalized catalog row for one tradable instrument.
type Instrument struct {
	Token    string `json:"token"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}
