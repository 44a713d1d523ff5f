// Package demo provides demo data seeding for demonstration deployments.
package demo

import (
	"fmt"
	"log"

	"tradegate/internal/crypto"
	"tradegate/internal/database"
	"tradegate/internal/models"
	"tradegate/internal/repository"
)

// Seeder seeds the database with demo clients. Demo deployments point at
// the UAT broker environment, so the placeholder credentials below only
// ever produce failed authentications, never real orders.
type Seeder struct {
	clientRepo *repository.ClientRepository
	vault      *crypto.Vault
}

// NewSeeder creates a new demo data seeder.
func NewSeeder(db *database.DB, vault *crypto.Vault) *Seeder {
	return &Seeder{
		clientRepo: repository.NewClientRepository(db),
		vault:      vault,
	}
}

// SeedIfEmpty seeds demo clients if the database has none.
func (s *Seeder) SeedIfEmpty() error {
	clients, err := s.clientRepo.GetAll()
	if err != nil {
		return err
	}
	if len(clients) > 0 {
		log.Println("Database already has clients, skipping demo seed")
		return nil
	}

	log.Println("Seeding demo clients...")
	return s.Seed()
}

// Seed creates a handful of demo client accounts with placeholder
// interactive credentials.
func (s *Seeder) Seed() error {
	demoClients := []struct {
		code string
		name string
	}{
		{"DEMO001", "Asha Demo"},
		{"DEMO002", "Ravi Demo"},
		{"DEMO003", "Meera Demo"},
	}

	for _, dc := range demoClients {
		id, err := s.clientRepo.Create(&models.Client{
			ClientCode: dc.code,
			Name:       dc.name,
			Email:      dc.code + "@example.com",
			IsActive:   true,
		})
		if err != nil {
			return fmt.Errorf("seed client %s: %w", dc.code, err)
		}

		encrypted := make([]string, 4)
		for i, plaintext := range []string{
			"demo-api-key-" + dc.code,
			"demo-secret-" + dc.code,
			"demo-user-" + dc.code,
			"demo-password",
		} {
			ct, err := s.vault.Encrypt(plaintext)
			if err != nil {
				return fmt.Errorf("encrypt demo credentials: %w", err)
			}
			encrypted[i] = ct
		}
		if err := s.clientRepo.UpdateCredentials(id, models.SegmentInteractive,
			encrypted[0], encrypted[1], encrypted[2], encrypted[3], ""); err != nil {
			return fmt.Errorf("store demo credentials: %w", err)
		}
	}

	log.Printf("Seeded %d demo clients", len(demoClients))
	return nil
}
