package engine

import (
	"context"
	"fmt"
	"log"

	"tradegate/internal/broker"
	"tradegate/internal/models"
)

// loadClient fetches a client and checks it can trade on the segment.
func (e *Engine) loadClient(clientID int64, segment string) (*models.Client, error) {
	client, err := e.clients.GetByID(clientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	if client == nil {
		return nil, broker.Validationf("client %d not found", clientID)
	}
	if !client.IsActive {
		return nil, broker.Validationf("client %s is inactive", client.ClientCode)
	}
	if !client.HasCredentials(segment) {
		return nil, &broker.CredentialsError{ClientCode: client.ClientCode, Segment: segment, Msg: "credentials not configured"}
	}
	return client, nil
}

// CancelOrder cancels one client's open order and marks the local record
// cancelled when the upstream accepts.
func (e *Engine) CancelOrder(ctx context.Context, clientID int64, orderID, segment string) (bool, error) {
	if segment == "" {
		segment = models.SegmentInteractive
	}
	client, err := e.loadClient(clientID, segment)
	if err != nil {
		return false, err
	}

	session, err := e.sessions.Authenticate(ctx, client, segment, false)
	if err != nil {
		return false, err
	}
	ok, err := e.gateway.CancelOrder(ctx, session.Token, client.ClientCode, orderID)
	if err != nil {
		return false, err
	}
	if ok {
		if err := e.orders.UpdateStatus(orderID, models.OrderStatusCancelled); err != nil {
			log.Printf("engine: order %s cancelled upstream but local status not updated: %v", orderID, err)
		}
	}
	return ok, nil
}

// OrderStatus fetches the upstream detail for one client's order.
func (e *Engine) OrderStatus(ctx context.Context, clientID int64, orderID, segment string) (map[string]any, error) {
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
	return e.gateway.GetOrderStatus(ctx, session.Token, client.ClientCode, orderID)
}
