package repository

import (
	"path/filepath"
	"testing"

	"tradegate/internal/database"
	"tradegate/internal/models"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createTestClient(t *testing.T, repo *ClientRepository, code string, active bool) int64 {
	t.Helper()
	id, err := repo.Create(&models.Client{
		ClientCode: code,
		Name:       "Client " + code,
		Email:      code + "@example.com",
		IsActive:   active,
	})
	if err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	return id
}

func TestClientRepository_Create_ValidClient_ReturnsID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClientRepository(db)

	id := createTestClient(t, repo, "MOF001", true)
	if id <= 0 {
		t.Error("Create() returned non-positive ID")
	}
}

func TestClientRepository_GetByID_Existing_ReturnsClient(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClientRepository(db)
	id := createTestClient(t, repo, "MOF001", true)

	client, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if client == nil {
		t.Fatal("GetByID() returned nil for existing client")
	}
	if client.ClientCode != "MOF001" {
		t.Errorf("ClientCode = %q, want %q", client.ClientCode, "MOF001")
	}
	if !client.IsActive {
		t.Error("IsActive = false, want true")
	}
}

func TestClientRepository_GetByID_Missing_ReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClientRepository(db)

	client, err := repo.GetByID(9999)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if client != nil {
		t.Errorf("GetByID() = %+v, want nil", client)
	}
}

func TestClientRepository_GetByCode_Existing_ReturnsClient(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClientRepository(db)
	createTestClient(t, repo, "MOF002", true)

	client, err := repo.GetByCode("MOF002")
	if err != nil {
		t.Fatalf("GetByCode() error = %v", err)
	}
	if client == nil || client.ClientCode != "MOF002" {
		t.Errorf("GetByCode() = %+v, want client MOF002", client)
	}
}

func TestClientRepository_UpdateCredentials_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClientRepository(db)
	id := createTestClient(t, repo, "MOF003", true)

	err := repo.UpdateCredentials(id, models.SegmentInteractive,
		"enc-api", "enc-secret", "enc-user", "enc-pass", "enc-totp")
	if err != nil {
		t.Fatalf("UpdateCredentials() error = %v", err)
	}

	client, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if client.EncAPIKeyInteractive != "enc-api" {
		t.Errorf("EncAPIKeyInteractive = %q, want %q", client.EncAPIKeyInteractive, "enc-api")
	}
	if client.EncTOTPSeedInteractive != "enc-totp" {
		t.Errorf("EncTOTPSeedInteractive = %q, want %q", client.EncTOTPSeedInteractive, "enc-totp")
	}
	if !client.HasCredentials(models.SegmentInteractive) {
		t.Error("HasCredentials(interactive) = false after UpdateCredentials")
	}
	if client.HasCredentials(models.SegmentCommodity) {
		t.Error("HasCredentials(commodity) = true, want false")
	}
}

func TestClientRepository_GetActiveWithCredentials_FiltersCorrectly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClientRepository(db)

	withCreds := createTestClient(t, repo, "MOF010", true)
	inactive := createTestClient(t, repo, "MOF011", false)
	createTestClient(t, repo, "MOF012", true) // active, no credentials

	for _, id := range []int64{withCreds, inactive} {
		if err := repo.UpdateCredentials(id, models.SegmentInteractive,
			"a", "b", "c", "d", ""); err != nil {
			t.Fatalf("UpdateCredentials() error = %v", err)
		}
	}

	clients, err := repo.GetActiveWithCredentials(models.SegmentInteractive, 0)
	if err != nil {
		t.Fatalf("GetActiveWithCredentials() error = %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("GetActiveWithCredentials() returned %d clients, want 1", len(clients))
	}
	if clients[0].ID != withCreds {
		t.Errorf("returned client ID = %d, want %d", clients[0].ID, withCreds)
	}
}

func TestClientRepository_GetActiveWithCredentials_RespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClientRepository(db)

	for _, code := range []string{"MOF020", "MOF021", "MOF022"} {
		id := createTestClient(t, repo, code, true)
		if err := repo.UpdateCredentials(id, models.SegmentInteractive, "a", "b", "c", "d", ""); err != nil {
			t.Fatalf("UpdateCredentials() error = %v", err)
		}
	}

	clients, err := repo.GetActiveWithCredentials(models.SegmentInteractive, 1)
	if err != nil {
		t.Fatalf("GetActiveWithCredentials() error = %v", err)
	}
	if len(clients) != 1 {
		t.Errorf("GetActiveWithCredentials(limit=1) returned %d clients, want 1", len(clients))
	}
}

func TestClientRepository_SetActive_SoftDeletes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClientRepository(db)
	id := createTestClient(t, repo, "MOF030", true)

	if err := repo.SetActive(id, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	client, _ := repo.GetByID(id)
	if client.IsActive {
		t.Error("IsActive = true after SetActive(false)")
	}
}
