// Package engine executes trading operations across many client accounts
// with bounded concurrency. One instruction failing never aborts the rest
// of a batch.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"tradegate/internal/broker"
	"tradegate/internal/models"
	"tradegate/internal/repository"
)

const (
	defaultConcurrency = 5
	maxConcurrency     = 20

	// DryRunOrderID marks instructions that were validated but never sent
	// upstream.
	DryRunOrderID = "DRY_RUN"
)

// Engine coordinates SessionManager, Gateway and the local repositories
// for multi-client order execution.
type Engine struct {
	clients  *repository.ClientRepository
	orders   *repository.OrderRepository
	runs     *repository.RunRepository
	sessions *broker.SessionManager
	gateway  *broker.Gateway
}

// NewEngine creates an Engine. runs may be nil to skip run history.
func NewEngine(clients *repository.ClientRepository, orders *repository.OrderRepository, runs *repository.RunRepository, sessions *broker.SessionManager, gateway *broker.Gateway) *Engine {
	return &Engine{
		clients:  clients,
		orders:   orders,
		runs:     runs,
		sessions: sessions,
		gateway:  gateway,
	}
}

// ClientOrder is one client's row in a batch request.
type ClientOrder struct {
	ClientID int64    `json:"client_id"`
	Quantity int      `json:"quantity"`
	Price    *float64 `json:"price,omitempty"`
	Remarks  string   `json:"remarks,omitempty"`
}

// BatchRequest describes one instrument traded across many clients.
type BatchRequest struct {
	Symbol          string        `json:"symbol"`
	SymbolToken     string        `json:"symbol_token"`
	Exchange        string        `json:"exchange"`
	OrderType       string        `json:"order_type"`
	TransactionType string        `json:"transaction_type"`
	ProductType     string        `json:"product_type"`
	Validity        string        `json:"validity,omitempty"`
	Segment         string        `json:"segment,omitempty"`
	DefaultPrice    *float64      `json:"default_price,omitempty"`
	TriggerPrice    *float64      `json:"trigger_price,omitempty"`
	Orders          []ClientOrder `json:"orders"`
	DryRun          bool          `json:"dry_run,omitempty"`
	MaxConcurrent   int           `json:"max_concurrent,omitempty"`
}

// InstructionResult is the outcome of one client's instruction. Results
// keep the request's row order regardless of completion order.
type InstructionResult struct {
	ClientID      int64  `json:"client_id"`
	ClientCode    string `json:"client_code,omitempty"`
	Success       bool   `json:"success"`
	BrokerOrderID string `json:"broker_order_id,omitempty"`
	RefID         string `json:"ref_id,omitempty"`
	Quantity      int    `json:"quantity"`
	Error         string `json:"error,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
}

// BatchResult aggregates a full batch run.
type BatchResult struct {
	RunID             string              `json:"run_id"`
	Success           bool                `json:"success"`
	DryRun            bool                `json:"dry_run"`
	Total             int                 `json:"total"`
	Succeeded         int                 `json:"succeeded"`
	Failed            int                 `json:"failed"`
	SuccessRate       float64             `json:"success_rate"`
	TotalQuantity     int                 `json:"total_quantity"`
	AvgInstructionMS  int64               `json:"avg_instruction_ms"`
	ElapsedMS         int64               `json:"elapsed_ms"`
	Message           string              `json:"message,omitempty"`
	Results           []InstructionResult `json:"results"`
}

// instruction is the fully resolved unit of work handed to the fan-out
// loop. Exit flows produce instructions with per-row sides, so the side
// lives here rather than on the batch.
type instruction struct {
	ClientID        int64
	Symbol          string
	SymbolToken     string
	Exchange        string
	OrderType       string
	TransactionType string
	ProductType     string
	Validity        string
	Segment         string
	Quantity        int
	Price           *float64
	TriggerPrice    *float64
	Remarks         string
}

func clampConcurrency(n int) int {
	if n <= 0 {
		return defaultConcurrency
	}
	if n > maxConcurrency {
		return maxConcurrency
	}
	return n
}

func (r *BatchRequest) segment() string {
	if r.Segment == "" {
		return models.SegmentInteractive
	}
	return r.Segment
}

// validate applies the batch-level preconditions. Per-row problems are
// left to the per-instruction path so they fail in isolation.
func (r *BatchRequest) validate() error {
	if r.SymbolToken == "" {
		return broker.Validationf("symbol token is required")
	}
	if !broker.ValidExchange(r.Exchange) {
		return broker.Validationf("invalid exchange %q, valid exchanges: %v", r.Exchange, broker.ValidExchanges)
	}
	if !models.ValidSegment(r.segment()) {
		return broker.Validationf("invalid segment %q", r.Segment)
	}

	switch r.OrderType {
	case "LMT", "SL":
		if r.DefaultPrice == nil && !r.anyRowPriced() {
			return broker.Validationf("%s orders require a default price or per-client prices", r.OrderType)
		}
	}
	switch r.OrderType {
	case "SLM", "SL":
		if r.TriggerPrice == nil {
			return broker.Validationf("%s orders require a trigger price", r.OrderType)
		}
	}
	return nil
}

func (r *BatchRequest) anyRowPriced() bool {
	for _, row := range r.Orders {
		if row.Price != nil {
			return true
		}
	}
	return false
}

// ExecuteBatch runs one instrument's orders across all requested clients.
// It returns an error only for batch-level precondition failures; every
// per-client problem becomes a failed result row instead.
func (e *Engine) ExecuteBatch(ctx context.Context, req *BatchRequest) (*BatchResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	segment := req.segment()
	instructions := make([]instruction, 0, len(req.Orders))
	for _, row := range req.Orders {
		if row.Quantity <= 0 {
			continue
		}
		price := row.Price
		if price == nil {
			price = req.DefaultPrice
		}
		instructions = append(instructions, instruction{
			ClientID:        row.ClientID,
			Symbol:          req.Symbol,
			SymbolToken:     req.SymbolToken,
			Exchange:        req.Exchange,
			OrderType:       req.OrderType,
			TransactionType: req.TransactionType,
			ProductType:     req.ProductType,
			Validity:        req.Validity,
			Segment:         segment,
			Quantity:        row.Quantity,
			Price:           price,
			TriggerPrice:    req.TriggerPrice,
			Remarks:         row.Remarks,
		})
	}

	result := e.run(ctx, instructions, req.DryRun, clampConcurrency(req.MaxConcurrent))
	if result.Total == 0 {
		result.Message = "no valid instructions after filtering"
	}
	e.recordRun(models.RunKindBatch, result)
	return result, nil
}

// recordRun stores the run summary. History is bookkeeping; a write
// failure never affects the result.
func (e *Engine) recordRun(kind string, result *BatchResult) {
	if e.runs == nil || result.Total == 0 {
		return
	}
	_, err := e.runs.Create(&models.RunRecord{
		RunID:         result.RunID,
		Kind:          kind,
		DryRun:        result.DryRun,
		Total:         result.Total,
		Succeeded:     result.Succeeded,
		Failed:        result.Failed,
		TotalQuantity: result.TotalQuantity,
		ElapsedMS:     result.ElapsedMS,
	})
	if err != nil {
		log.Printf("engine: run %s not recorded: %v", result.RunID, err)
	}
}

// run fans the instructions out with bounded concurrency and aggregates
// the outcomes.
func (e *Engine) run(ctx context.Context, instructions []instruction, dryRun bool, concurrent int) *BatchResult {
	start := time.Now()
	results := make([]InstructionResult, len(instructions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrent)
	for i := range instructions {
		i := i
		g.Go(func() error {
			results[i] = e.execute(gctx, instructions[i], dryRun)
			return nil
		})
	}
	// Workers never return errors; failures live in the result rows.
	_ = g.Wait()

	result := &BatchResult{
		RunID:   ulid.Make().String(),
		DryRun:  dryRun,
		Total:   len(results),
		Results: results,
	}

	var totalInstructionMS int64
	for _, r := range results {
		totalInstructionMS += r.DurationMS
		if r.Success {
			result.Succeeded++
			result.TotalQuantity += r.Quantity
		} else {
			result.Failed++
		}
	}
	if result.Total > 0 {
		result.SuccessRate = float64(result.Succeeded) / float64(result.Total) * 100
		result.AvgInstructionMS = totalInstructionMS / int64(result.Total)
	}
	result.Success = result.Succeeded > 0
	result.ElapsedMS = time.Since(start).Milliseconds()
	return result
}

// execute runs one instruction end to end. All failure modes, panics
// included, become a failed result row.
func (e *Engine) execute(ctx context.Context, instr instruction, dryRun bool) (res InstructionResult) {
	start := time.Now()
	res = InstructionResult{ClientID: instr.ClientID, Quantity: instr.Quantity}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: instruction for client %d panicked: %v", instr.ClientID, r)
			res.Success = false
			res.Error = fmt.Sprintf("internal error: %v", r)
		}
		res.DurationMS = time.Since(start).Milliseconds()
	}()

	client, err := e.clients.GetByID(instr.ClientID)
	if err != nil {
		res.Error = fmt.Sprintf("load client: %v", err)
		return res
	}
	if client == nil {
		res.Error = "client not found"
		return res
	}
	res.ClientCode = client.ClientCode
	if !client.IsActive {
		res.Error = "client is inactive"
		return res
	}
	if !client.HasCredentials(instr.Segment) {
		res.Error = fmt.Sprintf("no %s credentials configured", instr.Segment)
		return res
	}

	ord := &broker.OrderRequest{
		SymbolToken:     instr.SymbolToken,
		Exchange:        instr.Exchange,
		OrderType:       instr.OrderType,
		TransactionType: instr.TransactionType,
		ProductType:     instr.ProductType,
		Quantity:        instr.Quantity,
		Price:           instr.Price,
		TriggerPrice:    instr.TriggerPrice,
		Validity:        instr.Validity,
		Remarks:         instr.Remarks,
	}
	if err := broker.ValidateOrder(ord); err != nil {
		res.Error = err.Error()
		return res
	}

	if dryRun {
		res.Success = true
		res.BrokerOrderID = DryRunOrderID
		return res
	}

	session, err := e.sessions.Authenticate(ctx, client, instr.Segment, false)
	if err != nil {
		res.Error = fmt.Sprintf("authenticate: %v", err)
		return res
	}

	orderID, err := e.gateway.PlaceOrder(ctx, session.Token, client.ClientCode, ord)
	if err != nil {
		res.Error = fmt.Sprintf("place order: %v", err)
		return res
	}
	res.Success = true
	res.BrokerOrderID = orderID

	record := &models.OrderRecord{
		RefID:           ulid.Make().String(),
		BrokerOrderID:   orderID,
		ClientID:        client.ID,
		Symbol:          instr.Symbol,
		SymbolToken:     instr.SymbolToken,
		Exchange:        instr.Exchange,
		OrderType:       instr.OrderType,
		TransactionType: instr.TransactionType,
		ProductType:     instr.ProductType,
		Quantity:        instr.Quantity,
		Price:           instr.Price,
		TriggerPrice:    instr.TriggerPrice,
		Validity:        instr.Validity,
		Status:          models.OrderStatusPending,
		Remarks:         instr.Remarks,
	}
	if _, err := e.orders.Create(record); err != nil {
		// The order is live upstream. Keep the success but surface the
		// bookkeeping gap.
		log.Printf("engine: order %s placed for client %s but not recorded: %v", orderID, client.ClientCode, err)
		res.Error = fmt.Sprintf("order placed but not recorded locally: %v", err)
		return res
	}
	res.RefID = record.RefID
	return res
}
