// Package repository provides database access for gateway records.
package repository

import (
	"database/sql"
	"time"

	"tradegate/internal/database"
	"tradegate/internal/models"
)

// ClientRepository handles client database operations.
type ClientRepository struct {
	db *database.DB
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(db *database.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `
	id, client_code, name, email, is_active,
	enc_api_key_interactive, enc_secret_interactive, enc_user_id_interactive,
	enc_password_interactive, enc_totp_seed_interactive,
	enc_api_key_commodity, enc_secret_commodity, enc_user_id_commodity,
	enc_password_commodity, enc_totp_seed_commodity,
	created_at, updated_at`

// Create inserts a new client and returns its ID.
func (r *ClientRepository) Create(client *models.Client) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO clients (client_code, name, email, is_active)
		VALUES (?, ?, ?, ?)
	`, client.ClientCode, client.Name, client.Email, boolToInt(client.IsActive))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetByID retrieves a client by ID. Returns nil without error when no
// client exists.
func (r *ClientRepository) GetByID(id int64) (*models.Client, error) {
	row := r.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

// GetByCode retrieves a client by its unique client code.
func (r *ClientRepository) GetByCode(code string) (*models.Client, error) {
	row := r.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE client_code = ?`, code)
	return scanClient(row)
}

// GetAll retrieves all clients, sorted by client code.
func (r *ClientRepository) GetAll() ([]*models.Client, error) {
	return r.queryClients(`SELECT ` + clientColumns + ` FROM clients ORDER BY client_code ASC`)
}

// GetActiveWithCredentials retrieves active clients that hold the full
// credential set for the given segment. limit <= 0 means no limit.
func (r *ClientRepository) GetActiveWithCredentials(segment string, limit int) ([]*models.Client, error) {
	var cond string
	switch segment {
	case models.SegmentCommodity:
		cond = `enc_api_key_commodity != '' AND enc_secret_commodity != ''
			AND enc_user_id_commodity != '' AND enc_password_commodity != ''`
	default:
		cond = `enc_api_key_interactive != '' AND enc_secret_interactive != ''
			AND enc_user_id_interactive != '' AND enc_password_interactive != ''`
	}

	query := `SELECT ` + clientColumns + ` FROM clients WHERE is_active = 1 AND ` + cond + ` ORDER BY id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		return r.queryClients(query, limit)
	}
	return r.queryClients(query)
}

// Update updates a client's profile fields.
func (r *ClientRepository) Update(client *models.Client) error {
	_, err := r.db.Exec(`
		UPDATE clients
		SET name = ?, email = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, client.Name, client.Email, boolToInt(client.IsActive), time.Now(), client.ID)
	return err
}

// SetActive flips the soft-delete flag.
func (r *ClientRepository) SetActive(id int64, active bool) error {
	_, err := r.db.Exec(`
		UPDATE clients SET is_active = ?, updated_at = ? WHERE id = ?
	`, boolToInt(active), time.Now(), id)
	return err
}

// UpdateCredentials replaces the encrypted credential set for one segment.
// Values are expected to be ciphertext already; this layer never sees
// plaintext secrets.
func (r *ClientRepository) UpdateCredentials(id int64, segment string, apiKey, secret, userID, password, totpSeed string) error {
	var query string
	switch segment {
	case models.SegmentCommodity:
		query = `UPDATE clients SET
			enc_api_key_commodity = ?, enc_secret_commodity = ?,
			enc_user_id_commodity = ?, enc_password_commodity = ?,
			enc_totp_seed_commodity = ?, updated_at = ?
			WHERE id = ?`
	default:
		query = `UPDATE clients SET
			enc_api_key_interactive = ?, enc_secret_interactive = ?,
			enc_user_id_interactive = ?, enc_password_interactive = ?,
			enc_totp_seed_interactive = ?, updated_at = ?
			WHERE id = ?`
	}
	_, err := r.db.Exec(query, apiKey, secret, userID, password, totpSeed, time.Now(), id)
	return err
}

// queryClients is a helper to query multiple clients.
func (r *ClientRepository) queryClients(query string, args ...any) ([]*models.Client, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]*models.Client, 0)
	for rows.Next() {
		client, err := scanClientRow(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row *sql.Row) (*models.Client, error) {
	client, err := scanClientRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return client, err
}

func scanClientRow(row rowScanner) (*models.Client, error) {
	client := &models.Client{}
	var email sql.NullString
	var isActive int
	var enc [10]sql.NullString

	err := row.Scan(
		&client.ID,
		&client.ClientCode,
		&client.Name,
		&email,
		&isActive,
		&enc[0], &enc[1], &enc[2], &enc[3], &enc[4],
		&enc[5], &enc[6], &enc[7], &enc[8], &enc[9],
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	client.Email = email.String
	client.IsActive = isActive == 1
	client.EncAPIKeyInteractive = enc[0].String
	client.EncSecretInteractive = enc[1].String
	client.EncUserIDInteractive = enc[2].String
	client.EncPasswordInteractive = enc[3].String
	client.EncTOTPSeedInteractive = enc[4].String
	client.EncAPIKeyCommodity = enc[5].String
	client.EncSecretCommodity = enc[6].String
	client.EncUserIDCommodity = enc[7].String
	client.EncPasswordCommodity = enc[8].String
	client.EncTOTPSeedCommodity = enc[9].String

	return client, nil
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
