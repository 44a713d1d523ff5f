package repository

import (
	"database/sql"
	"time"

	"tradegate/internal/database"
	"tradegate/internal/models"
)

// OrderRepository handles order record database operations.
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, ref_id, broker_order_id, client_id, symbol, symbol_token, exchange,
	order_type, transaction_type, product_type, quantity, price, trigger_price,
	validity, status, remarks, created_at, updated_at`

// Create inserts a new order record and returns its ID.
func (r *OrderRepository) Create(order *models.OrderRecord) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO orders (
			ref_id, broker_order_id, client_id, symbol, symbol_token, exchange,
			order_type, transaction_type, product_type, quantity, price,
			trigger_price, validity, status, remarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, order.RefID, order.BrokerOrderID, order.ClientID, order.Symbol,
		order.SymbolToken, order.Exchange, order.OrderType, order.TransactionType,
		order.ProductType, order.Quantity, order.Price, order.TriggerPrice,
		order.Validity, order.Status, order.Remarks)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetByBrokerOrderID retrieves an order record by the upstream order id,
// optionally scoped to a client (clientID > 0). Returns nil when not found.
func (r *OrderRepository) GetByBrokerOrderID(brokerOrderID string, clientID int64) (*models.OrderRecord, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE broker_order_id = ?`
	args := []any{brokerOrderID}
	if clientID > 0 {
		query += ` AND client_id = ?`
		args = append(args, clientID)
	}

	order, err := scanOrderRow(r.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return order, err
}

// GetByClientID retrieves order records for a client, newest first.
func (r *OrderRepository) GetByClientID(clientID int64) ([]*models.OrderRecord, error) {
	return r.queryOrders(`
		SELECT `+orderColumns+` FROM orders
		WHERE client_id = ?
		ORDER BY created_at DESC, id DESC
	`, clientID)
}

// ListRecent retrieves the most recent order records across all clients.
func (r *OrderRepository) ListRecent(limit int) ([]*models.OrderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryOrders(`
		SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
}

// List retrieves a page of order records across all clients, newest first.
func (r *OrderRepository) List(p Pagination) (PaginatedResult[*models.OrderRecord], error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return PaginatedResult[*models.OrderRecord]{}, err
	}

	orders, err := r.queryOrders(`
		SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, p.Limit, p.Offset)
	if err != nil {
		return PaginatedResult[*models.OrderRecord]{}, err
	}
	return NewPaginatedResult(orders, total, p), nil
}

// UpdateStatus sets the local status of an order by upstream order id.
func (r *OrderRepository) UpdateStatus(brokerOrderID, status string) error {
	_, err := r.db.Exec(`
		UPDATE orders SET status = ?, updated_at = ? WHERE broker_order_id = ?
	`, status, time.Now(), brokerOrderID)
	return err
}

// queryOrders is a helper to query multiple order records.
func (r *OrderRepository) queryOrders(query string, args ...any) ([]*models.OrderRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*models.OrderRecord, 0)
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrderRow(row rowScanner) (*models.OrderRecord, error) {
	order := &models.OrderRecord{}
	var price, triggerPrice sql.NullFloat64
	var remarks sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.RefID,
		&order.BrokerOrderID,
		&order.ClientID,
		&order.Symbol,
		&order.SymbolToken,
		&order.Exchange,
		&order.OrderType,
		&order.TransactionType,
		&order.ProductType,
		&order.Quantity,
		&price,
		&triggerPrice,
		&order.Validity,
		&order.Status,
		&remarks,
		&order.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if price.Valid {
		order.Price = &price.Float64
	}
	if triggerPrice.Valid {
		order.TriggerPrice = &triggerPrice.Float64
	}
	order.Remarks = remarks.String
	if updatedAt.Valid {
		order.UpdatedAt = &updatedAt.Time
	}

	return order, nil
}
