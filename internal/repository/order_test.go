package repository

import (
	"testing"

	"tradegate/internal/models"
)

func createTestOrder(t *testing.T, repo *OrderRepository, clientID int64, refID, brokerOrderID string) int64 {
	t.Helper()
	price := 101.50
	id, err := repo.Create(&models.OrderRecord{
		RefID:           refID,
		BrokerOrderID:   brokerOrderID,
		ClientID:        clientID,
		Symbol:          "RELIANCE",
		SymbolToken:     "2885",
		Exchange:        "NSE",
		OrderType:       "LMT",
		TransactionType: "BUY",
		ProductType:     "MIS",
		Quantity:        10,
		Price:           &price,
		Validity:        "DAY",
		Status:          models.OrderStatusPending,
		Remarks:         "test order",
	})
	if err != nil {
		t.Fatalf("failed to create test order: %v", err)
	}
	return id
}

func TestOrderRepository_Create_ValidOrder_ReturnsID(t *testing.T) {
	db := setupTestDB(t)
	clientRepo := NewClientRepository(db)
	repo := NewOrderRepository(db)
	clientID := createTestClient(t, clientRepo, "MOF001", true)

	id := createTestOrder(t, repo, clientID, "01HTEST0000000000000000001", "BRK100")
	if id <= 0 {
		t.Error("Create() returned non-positive ID")
	}
}

func TestOrderRepository_GetByBrokerOrderID_Existing_ReturnsOrder(t *testing.T) {
	db := setupTestDB(t)
	clientRepo := NewClientRepository(db)
	repo := NewOrderRepository(db)
	clientID := createTestClient(t, clientRepo, "MOF001", true)
	createTestOrder(t, repo, clientID, "01HTEST0000000000000000001", "BRK100")

	order, err := repo.GetByBrokerOrderID("BRK100", clientID)
	if err != nil {
		t.Fatalf("GetByBrokerOrderID() error = %v", err)
	}
	if order == nil {
		t.Fatal("GetByBrokerOrderID() returned nil for existing order")
	}
	if order.Symbol != "RELIANCE" || order.Quantity != 10 {
		t.Errorf("order = %+v, want RELIANCE qty 10", order)
	}
	if order.Price == nil || *order.Price != 101.50 {
		t.Errorf("Price = %v, want 101.50", order.Price)
	}
}

func TestOrderRepository_GetByBrokerOrderID_WrongClient_ReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	clientRepo := NewClientRepository(db)
	repo := NewOrderRepository(db)
	clientID := createTestClient(t, clientRepo, "MOF001", true)
	createTestOrder(t, repo, clientID, "01HTEST0000000000000000001", "BRK100")

	order, err := repo.GetByBrokerOrderID("BRK100", clientID+1)
	if err != nil {
		t.Fatalf("GetByBrokerOrderID() error = %v", err)
	}
	if order != nil {
		t.Errorf("GetByBrokerOrderID() = %+v, want nil for other client", order)
	}
}

func TestOrderRepository_UpdateStatus_SetsCancelled(t *testing.T) {
	db := setupTestDB(t)
	clientRepo := NewClientRepository(db)
	repo := NewOrderRepository(db)
	clientID := createTestClient(t, clientRepo, "MOF001", true)
	createTestOrder(t, repo, clientID, "01HTEST0000000000000000001", "BRK100")

	if err := repo.UpdateStatus("BRK100", models.OrderStatusCancelled); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	order, _ := repo.GetByBrokerOrderID("BRK100", clientID)
	if order.Status != models.OrderStatusCancelled {
		t.Errorf("Status = %q, want %q", order.Status, models.OrderStatusCancelled)
	}
	if order.UpdatedAt == nil {
		t.Error("UpdatedAt = nil after UpdateStatus")
	}
}

func TestOrderRepository_GetByClientID_ReturnsOnlyClientOrders(t *testing.T) {
	db := setupTestDB(t)
	clientRepo := NewClientRepository(db)
	repo := NewOrderRepository(db)
	c1 := createTestClient(t, clientRepo, "MOF001", true)
	c2 := createTestClient(t, clientRepo, "MOF002", true)

	createTestOrder(t, repo, c1, "01HTEST0000000000000000001", "BRK100")
	createTestOrder(t, repo, c1, "01HTEST0000000000000000002", "BRK101")
	createTestOrder(t, repo, c2, "01HTEST0000000000000000003", "BRK102")

	orders, err := repo.GetByClientID(c1)
	if err != nil {
		t.Fatalf("GetByClientID() error = %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("GetByClientID() returned %d orders, want 2", len(orders))
	}
	for _, o := range orders {
		if o.ClientID != c1 {
			t.Errorf("order %s belongs to client %d, want %d", o.BrokerOrderID, o.ClientID, c1)
		}
	}
}

func TestOrderRepository_ListRecent_RespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	clientRepo := NewClientRepository(db)
	repo := NewOrderRepository(db)
	clientID := createTestClient(t, clientRepo, "MOF001", true)

	refs := []string{
		"01HTEST0000000000000000001",
		"01HTEST0000000000000000002",
		"01HTEST0000000000000000003",
	}
	for i, ref := range refs {
		createTestOrder(t, repo, clientID, ref, "BRK10"+string(rune('0'+i)))
	}

	orders, err := repo.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("ListRecent(2) returned %d orders, want 2", len(orders))
	}
}
