package handlers

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"tradegate/internal/crypto"
	"tradegate/internal/models"
	"tradegate/internal/repository"
)

// ClientHandler handles client account management routes.
type ClientHandler struct {
	clientRepo *repository.ClientRepository
	vault      *crypto.Vault
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientRepo *repository.ClientRepository, vault *crypto.Vault) *ClientHandler {
	return &ClientHandler{clientRepo: clientRepo, vault: vault}
}

// List returns all registered clients. Credential ciphertext never
// serializes; the model hides those fields.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientRepo.GetAll()
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, clients)
}

type createClientRequest struct {
	ClientCode string `json:"client_code"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
}

// Create registers a new client account.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ClientCode = strings.TrimSpace(req.ClientCode)
	if req.ClientCode == "" || strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "client_code and name are required")
		return
	}

	existing, err := h.clientRepo.GetByCode(req.ClientCode)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, fmt.Sprintf("client %s already exists", req.ClientCode))
		return
	}

	client := &models.Client{
		ClientCode: req.ClientCode,
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		IsActive:   true,
	}
	id, err := h.clientRepo.Create(client)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	created, err := h.clientRepo.GetByID(id)
	if err != nil || created == nil {
		respondMappedError(w, fmt.Errorf("reload created client: %v", err))
		return
	}
	log.Printf("Client %s registered (id %d)", created.ClientCode, id)
	respondJSON(w, http.StatusCreated, created)
}

// Get returns one client by id.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, ok := h.loadClient(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, client)
}

type updateClientRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Update changes a client's profile fields.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	client, ok := h.loadClient(w, r)
	if !ok {
		return
	}

	var req updateClientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != nil {
		client.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		client.Email = strings.TrimSpace(*req.Email)
	}
	if req.IsActive != nil {
		client.IsActive = *req.IsActive
	}

	if err := h.clientRepo.Update(client); err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// Delete deactivates a client. Records are kept; only trading stops.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	client, ok := h.loadClient(w, r)
	if !ok {
		return
	}

	if err := h.clientRepo.SetActive(client.ID, false); err != nil {
		respondMappedError(w, err)
		return
	}
	log.Printf("Client %s deactivated", client.ClientCode)
	respondJSON(w, http.StatusOK, map[string]any{"id": client.ID, "is_active": false})
}

type credentialsRequest struct {
	Segment  string `json:"segment"`
	APIKey   string `json:"api_key"`
	Secret   string `json:"secret"`
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	TOTPSeed string `json:"totp_seed,omitempty"`
}

// UpdateCredentials stores a segment's broker credentials for a client.
// Values are encrypted before they touch the database and are never
// echoed back or logged.
func (h *ClientHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	client, ok := h.loadClient(w, r)
	if !ok {
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !models.ValidSegment(req.Segment) {
		respondError(w, http.StatusBadRequest, "segment must be interactive or commodity")
		return
	}
	if req.APIKey == "" || req.Secret == "" || req.UserID == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "api_key, secret, user_id and password are required")
		return
	}

	encrypted := make([]string, 5)
	for i, plaintext := range []string{req.APIKey, req.Secret, req.UserID, req.Password, req.TOTPSeed} {
		ct, err := h.vault.Encrypt(plaintext)
		if err != nil {
			respondMappedError(w, fmt.Errorf("encrypt credentials: %w", err))
			return
		}
		encrypted[i] = ct
	}

	if err := h.clientRepo.UpdateCredentials(client.ID, req.Segment, encrypted[0], encrypted[1], encrypted[2], encrypted[3], encrypted[4]); err != nil {
		respondMappedError(w, err)
		return
	}
	log.Printf("Credentials updated for client %s segment %s", client.ClientCode, req.Segment)
	respondJSON(w, http.StatusOK, map[string]any{"id": client.ID, "segment": req.Segment, "updated": true})
}

// TOTPQR serves the provisioning QR code for a client's stored TOTP seed
// so an operator can enroll an authenticator app.
func (h *ClientHandler) TOTPQR(w http.ResponseWriter, r *http.Request) {
	client, ok := h.loadClient(w, r)
	if !ok {
		return
	}

	segment := r.URL.Query().Get("segment")
	if segment == "" {
		segment = models.SegmentInteractive
	}
	if !models.ValidSegment(segment) {
		respondError(w, http.StatusBadRequest, "segment must be interactive or commodity")
		return
	}

	encSeed := client.EncTOTPSeedInteractive
	if segment == models.SegmentCommodity {
		encSeed = client.EncTOTPSeedCommodity
	}
	if encSeed == "" {
		respondError(w, http.StatusNotFound, "no TOTP seed stored for this segment")
		return
	}

	seed, err := h.vault.Decrypt(encSeed)
	if err != nil {
		respondMappedError(w, fmt.Errorf("decrypt TOTP seed: %w", err))
		return
	}

	uri := totpProvisioningURI(client.ClientCode, segment, seed)
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		respondMappedError(w, fmt.Errorf("encode QR code: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(png)
}

// totpProvisioningURI builds the otpauth URL authenticator apps scan.
func totpProvisioningURI(clientCode, segment, seed string) string {
	label := url.PathEscape(fmt.Sprintf("tradegate:%s/%s", clientCode, segment))
	params := url.Values{}
	params.Set("secret", seed)
	params.Set("issuer", "tradegate")
	return fmt.Sprintf("otpauth://totp/%s?%s", label, params.Encode())
}

// loadClient resolves the {id} URL parameter. On failure it writes the
// error response and returns false.
func (h *ClientHandler) loadClient(w http.ResponseWriter, r *http.Request) (*models.Client, bool) {
	id, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	client, err := h.clientRepo.GetByID(id)
	if err != nil {
		respondMappedError(w, err)
		return nil, false
	}
	if client == nil {
		respondError(w, http.StatusNotFound, "client not found")
		return nil, false
	}
	return client, true
}
