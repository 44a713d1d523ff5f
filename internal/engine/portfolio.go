package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"tradegate/internal/broker"
	"tradegate/internal/models"
)

// dashboardConcurrency bounds how many clients are polled at once when
// building the cross-client dashboard.
const dashboardConcurrency = 5

// PortfolioSummary is the combined upstream view of one client account.
// Parts that could not be fetched are listed in Errors and left zero.
type PortfolioSummary struct {
	ClientID   int64             `json:"client_id"`
	ClientCode string            `json:"client_code"`
	Positions  []broker.Position `json:"positions"`
	Holdings   []map[string]any  `json:"holdings"`
	Profile    map[string]any    `json:"profile,omitempty"`
	Errors     []string          `json:"errors,omitempty"`
}

// Portfolio fetches positions, holdings and the profile for one client
// concurrently. A part failing degrades the summary instead of failing it.
func (e *Engine) Portfolio(ctx context.Context, clientID int64, segment string) (*PortfolioSummary, error) {
	if segment == "" {
		segment = models.SegmentInteractive
	}
	client, err := e.loadClient(clientID, segment)
	if err != nil {
		return nil, err
	}
	session, err := e.sessions.Authenticate(ctx, client, segment, false)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		ClientID:   client.ID,
		ClientCode: client.ClientCode,
		Positions:  []broker.Position{},
		Holdings:   []map[string]any{},
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	fail := func(part string, err error) {
		mu.Lock()
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", part, err))
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		positions, err := e.gateway.GetPositions(ctx, session.Token, client.ClientCode)
		if err != nil {
			fail("positions", err)
			return
		}
		summary.Positions = positions
	}()
	go func() {
		defer wg.Done()
		holdings, err := e.gateway.GetHoldings(ctx, session.Token, client.ClientCode)
		if err != nil {
			fail("holdings", err)
			return
		}
		summary.Holdings = holdings
	}()
	go func() {
		defer wg.Done()
		profile, err := e.gateway.GetClientProfile(ctx, session.Token, client.ClientCode)
		if err != nil {
			fail("profile", err)
			return
		}
		summary.Profile = profile
	}()
	wg.Wait()

	return summary, nil
}

// DashboardEntry is one client's slice of the cross-client dashboard.
// An unreachable client keeps its row with Error set and zero counts.
type DashboardEntry struct {
	ClientID     int64  `json:"client_id"`
	ClientCode   string `json:"client_code"`
	Positions    int    `json:"positions"`
	OpenQuantity int    `json:"open_quantity"`
	Holdings     int    `json:"holdings"`
	Error        string `json:"error,omitempty"`
}

// Dashboard aggregates positions and holdings across every active client
// with stored credentials.
type Dashboard struct {
	Clients        []DashboardEntry `json:"clients"`
	TotalClients   int              `json:"total_clients"`
	Reachable      int              `json:"reachable"`
	TotalPositions int              `json:"total_positions"`
	TotalHoldings  int              `json:"total_holdings"`
	TotalQuantity  int              `json:"total_quantity"`
}

// BuildDashboard polls every active client with credentials for the
// segment and aggregates their books. One client failing gets an error
// entry; the rest of the aggregate is unaffected.
func (e *Engine) BuildDashboard(ctx context.Context, segment string) (*Dashboard, error) {
	if segment == "" {
		segment = models.SegmentInteractive
	}
	if !models.ValidSegment(segment) {
		return nil, broker.Validationf("invalid segment %q", segment)
	}

	clients, err := e.clients.GetActiveWithCredentials(segment, 0)
	if err != nil {
		return nil, fmt.Errorf("load active clients: %w", err)
	}

	entries := make([]DashboardEntry, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	for i := range clients {
		i := i
		g.Go(func() error {
			entries[i] = e.dashboardEntry(gctx, clients[i], segment)
			return nil
		})
	}
	// Workers never return errors; failures live in the entries.
	_ = g.Wait()

	dash := &Dashboard{Clients: entries, TotalClients: len(entries)}
	for _, entry := range entries {
		if entry.Error != "" {
			continue
		}
		dash.Reachable++
		dash.TotalPositions += entry.Positions
		dash.TotalHoldings += entry.Holdings
		dash.TotalQuantity += entry.OpenQuantity
	}
	return dash, nil
}

func (e *Engine) dashboardEntry(ctx context.Context, client *models.Client, segment string) DashboardEntry {
	entry := DashboardEntry{ClientID: client.ID, ClientCode: client.ClientCode}

	session, err := e.sessions.Authenticate(ctx, client, segment, false)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	positions, err := e.gateway.GetPositions(ctx, session.Token, client.ClientCode)
	if err != nil {
		entry.Error = fmt.Sprintf("positions: %v", err)
		return entry
	}
	entry.Positions = len(positions)
	for _, pos := range positions {
		qty := pos.Quantity
		if qty < 0 {
			qty = -qty
		}
		entry.OpenQuantity += qty
	}

	holdings, err := e.gateway.GetHoldings(ctx, session.Token, client.ClientCode)
	if err != nil {
		entry.Error = fmt.Sprintf("holdings: %v", err)
		return entry
	}
	entry.Holdings = len(holdings)
	return entry
}

// Positions fetches just the position book for one client.
func (e *Engine) Positions(ctx context.Context, clientID int64, segment string) ([]broker.Position, error) {
	if segment == "" {
		segment = models.SegmentInteractive
	}
	client, err := e.loadClient(clientID, segment)
	if err != nil {
		return nil, err
	}
	session, err := e.sessions.Authenticate(ctx, client, segment, false)
	if err != nil {
		return nil, err
	}
	return e.gateway.GetPositions(ctx, session.Token, client.ClientCode)
}
