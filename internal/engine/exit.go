package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"tradegate/internal/broker"
	"tradegate/internal/models"
)

// exitScanConcurrency bounds how many clients' position books are fetched
// at once while building an exit batch.
const exitScanConcurrency = 5

// ExitRequest asks the engine to flatten one instrument across clients.
type ExitRequest struct {
	SymbolToken string  `json:"symbol_token"`
	Symbol      string  `json:"symbol,omitempty"`
	Exchange    string  `json:"exchange"`
	ProductType string  `json:"product_type,omitempty"`
	Segment     string  `json:"segment,omitempty"`
	ClientIDs   []int64 `json:"client_ids,omitempty"`
	MinQuantity int     `json:"min_quantity,omitempty"`
	DryRun      bool    `json:"dry_run,omitempty"`
}

// ClientError records a client that was excluded from an exit batch.
type ClientError struct {
	ClientID   int64  `json:"client_id"`
	ClientCode string `json:"client_code"`
	Error      string `json:"error"`
}

// ExitResult is a batch result plus the clients whose positions could not
// be read.
type ExitResult struct {
	*BatchResult
	Skipped []ClientError `json:"skipped,omitempty"`
}

func (r *ExitRequest) segment() string {
	if r.Segment == "" {
		return models.SegmentInteractive
	}
	return r.Segment
}

// ExitPositions looks up each candidate client's net position in the
// requested instrument and places the opposite-side market order to
// flatten it. Clients whose positions cannot be fetched are reported and
// excluded rather than failing the run.
func (e *Engine) ExitPositions(ctx context.Context, req *ExitRequest) (*ExitResult, error) {
	if req.SymbolToken == "" {
		return nil, broker.Validationf("symbol token is required")
	}
	if !broker.ValidExchange(req.Exchange) {
		return nil, broker.Validationf("invalid exchange %q, valid exchanges: %v", req.Exchange, broker.ValidExchanges)
	}
	segment := req.segment()
	if !models.ValidSegment(segment) {
		return nil, broker.Validationf("invalid segment %q", req.Segment)
	}

	candidates, err := e.exitCandidates(req.ClientIDs, segment)
	if err != nil {
		return nil, fmt.Errorf("load candidate clients: %w", err)
	}

	var (
		mu           sync.Mutex
		instructions []instruction
		skipped      []ClientError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exitScanConcurrency)
	for _, client := range candidates {
		client := client
		g.Go(func() error {
			instr, err := e.exitInstruction(gctx, client, req, segment)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped = append(skipped, ClientError{
					ClientID:   client.ID,
					ClientCode: client.ClientCode,
					Error:      err.Error(),
				})
				return nil
			}
			if instr != nil {
				instructions = append(instructions, *instr)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := e.run(ctx, instructions, req.DryRun, exitScanConcurrency)
	if result.Total == 0 {
		result.Message = "no positions to exit"
	}
	e.recordRun(models.RunKindExit, result)
	return &ExitResult{BatchResult: result, Skipped: skipped}, nil
}

// exitCandidates resolves the client set: an explicit id filter keeps only
// active clients, otherwise every active client holding credentials for
// the segment qualifies.
func (e *Engine) exitCandidates(ids []int64, segment string) ([]*models.Client, error) {
	if len(ids) == 0 {
		return e.clients.GetActiveWithCredentials(segment, 0)
	}

	candidates := make([]*models.Client, 0, len(ids))
	for _, id := range ids {
		client, err := e.clients.GetByID(id)
		if err != nil {
			return nil, err
		}
		if client == nil || !client.IsActive {
			continue
		}
		candidates = append(candidates, client)
	}
	return candidates, nil
}

// exitInstruction fetches one client's net position in the instrument and
// synthesizes the flattening order, or nil when there is nothing to exit.
func (e *Engine) exitInstruction(ctx context.Context, client *models.Client, req *ExitRequest, segment string) (*instruction, error) {
	if !client.HasCredentials(segment) {
		return nil, fmt.Errorf("no %s credentials configured", segment)
	}

	session, err := e.sessions.Authenticate(ctx, client, segment, false)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	positions, err := e.gateway.GetPositions(ctx, session.Token, client.ClientCode)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	netQty := 0
	productType := req.ProductType
	for _, pos := range positions {
		if pos.SymbolToken != req.SymbolToken {
			continue
		}
		netQty += pos.Quantity
		if productType == "" {
			productType = pos.ProductType
		}
	}

	abs := netQty
	side := "SELL"
	if netQty < 0 {
		abs = -netQty
		side = "BUY"
	}
	minQty := req.MinQuantity
	if minQty < 1 {
		minQty = 1
	}
	if abs < minQty {
		return nil, nil
	}

	return &instruction{
		ClientID:        client.ID,
		Symbol:          req.Symbol,
		SymbolToken:     req.SymbolToken,
		Exchange:        req.Exchange,
		OrderType:       "MKT",
		TransactionType: side,
		ProductType:     productType,
		Segment:         segment,
		Quantity:        abs,
		Remarks:         "exit position",
	}, nil
}
