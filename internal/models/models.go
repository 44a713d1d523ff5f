// Package models contains the domain models for the trading gateway.
package models

import "time"

// Segment names a credential scope per client. Each segment requires an
// independent upstream authentication.
const (
	SegmentInteractive = "interactive"
	SegmentCommodity   = "commodity"
)

// ValidSegment reports whether s is a known credential segment.
func ValidSegment(s string) bool {
	return s == SegmentInteractive || s == SegmentCommodity
}

// Client represents an end-client trading account registered with the gateway.
// Credential columns hold ciphertext only; plaintext exists in memory just
// long enough to authenticate.
type Client struct {
	ID         int64  `json:"id"`
	ClientCode string `json:"client_code"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	IsActive   bool   `json:"is_active"`

	// Interactive segment credentials (encrypted).
	EncAPIKeyInteractive   string `json:"-"`
	EncSecretInteractive   string `json:"-"`
	EncUserIDInteractive   string `json:"-"`
	EncPasswordInteractive string `json:"-"`
	EncTOTPSeedInteractive string `json:"-"`

	// Commodity segment credentials (encrypted).
	EncAPIKeyCommodity   string `json:"-"`
	EncSecretCommodity   string `json:"-"`
	EncUserIDCommodity   string `json:"-"`
	EncPasswordCommodity string `json:"-"`
	EncTOTPSeedCommodity string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCredentials reports whether the client has the full set of encrypted
// credentials stored for the given segment.
func (c *Client) HasCredentials(segment string) bool {
	switch segment {
	case SegmentInteractive:
		return c.EncAPIKeyInteractive != "" && c.EncSecretInteractive != "" &&
			c.EncUserIDInteractive != "" && c.EncPasswordInteractive != ""
	case SegmentCommodity:
		return c.EncAPIKeyCommodity != "" && c.EncSecretCommodity != "" &&
			c.EncUserIDCommodity != "" && c.EncPasswordCommodity != ""
	}
	return false
}

// OrderRecord is the local record of an order placed upstream.
type OrderRecord struct {
	ID              int64      `json:"id"`
	RefID           string     `json:"ref_id"` // ULID assigned by the gateway
	BrokerOrderID   string     `json:"broker_order_id"`
	ClientID        int64      `json:"client_id"`
	Symbol          string     `json:"symbol"`
	SymbolToken     string     `json:"symbol_token"`
	Exchange        string     `json:"exchange"`
	OrderType       string     `json:"order_type"`       // MKT, LMT, SLM, SL
	TransactionType string     `json:"transaction_type"` // BUY, SELL
	ProductType     string     `json:"product_type"`     // MIS, CNC, NRML
	Quantity        int        `json:"quantity"`
	Price           *float64   `json:"price,omitempty"`
	TriggerPrice    *float64   `json:"trigger_price,omitempty"`
	Validity        string     `json:"validity"`
	Status          string     `json:"status"` // PENDING, CANCELLED, ...
	Remarks         string     `json:"remarks,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Order statuses tracked locally. Upstream statuses are passed through as-is
// on status queries; only these are written by the gateway itself.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusCancelled = "CANCELLED"
)

// Run kinds recorded in the execution history.
const (
	RunKindBatch = "batch"
	RunKindExit  = "exit"
)

// RunRecord is the stored summary of one batch or exit execution.
type RunRecord struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Kind          string    `json:"kind"`
	DryRun        bool      `json:"dry_run"`
	Total         int       `json:"total"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	TotalQuantity int       `json:"total_quantity"`
	ElapsedMS     int64     `json:"elapsed_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
