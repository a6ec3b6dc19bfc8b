package memory

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"storepos/backend/internal/domain"
)

// Store is the in-memory repository used in dev mode and by tests. A single
// RWMutex guards every table; a sale unit of work holds the write lock for
// its whole duration.
type Store struct {
	mu           sync.RWMutex
	ids          map[string]int64
	stores       map[int64]domain.Store
	managers     map[uuid.UUID]domain.Manager
	cashiers     map[int64]domain.CashierAccount
	joinRequests map[int64]domain.JoinRequest
	products     map[int64]domain.Product
	batches      map[int64]domain.InventoryBatch
	sales        map[int64]domain.Sale
	saleItems    map[int64]domain.SaleItem
	payments     map[int64]domain.Payment
	partials     map[int64]domain.PartialPaymentCustomer
	expenses     map[int64]domain.Expense
	auditLogs    []domain.AuditLog
}

func New() *Store {
	return &Store{
		ids:          make(map[string]int64),
		stores:       make(map[int64]domain.Store),
		managers:     make(map[uuid.UUID]domain.Manager),
		cashiers:     make(map[int64]domain.CashierAccount),
		joinRequests: make(map[int64]domain.JoinRequest),
		products:     make(map[int64]domain.Product),
		batches:      make(map[int64]domain.InventoryBatch),
		sales:        make(map[int64]domain.Sale),
		saleItems:    make(map[int64]domain.SaleItem),
		payments:     make(map[int64]domain.Payment),
		partials:     make(map[int64]domain.PartialPaymentCustomer),
		expenses:     make(map[int64]domain.Expense),
		auditLogs:    make([]domain.AuditLog, 0, 128),
	}
}

// Seed credentials for dev mode. Passwords come from SEED_MANAGER_PASSWORD and
// SEED_CASHIER_PASSWORD; the fallbacks only exist so a fresh checkout can log in.
const (
	SeedStoreCode    = "DEMO01"
	SeedManagerEmail = "manager@demo.local"
	SeedManagerPhone = "03000000001"
	SeedCashierPhone = "03000000002"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("memory-store: failed to hash seed password")
	}
	return string(hash)
}

func NewSeeded() *Store {
	s := New()
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Msg("memory-store: using default dev credentials, set SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	storeID := s.nextID("stores")
	managerID := uuid.New()
	s.stores[storeID] = domain.Store{
		ID:        storeID,
		StoreCode: SeedStoreCode,
		StoreName: "Demo Mart",
		CreatedBy: managerID,
		CreatedAt: now,
	}
	s.managers[managerID] = domain.Manager{
		ID:           managerID,
		Email:        SeedManagerEmail,
		FullName:     "Demo Manager",
		PhoneNumber:  SeedManagerPhone,
		PasswordHash: mustHash(envOr("SEED_MANAGER_PASSWORD", "Manag3r!demo")),
		StoreID:      int64Ptr(storeID),
		StoreName:    "Demo Mart",
		CreatedAt:    now,
	}
	cashierID := s.nextID("cashiers")
	s.cashiers[cashierID] = domain.CashierAccount{
		ID:           cashierID,
		FullName:     "Demo Cashier",
		PhoneNumber:  SeedCashierPhone,
		PasswordHash: mustHash(envOr("SEED_CASHIER_PASSWORD", "Cash1er!demo")),
		StoreID:      int64Ptr(storeID),
		IsActive:     true,
		CreatedAt:    now,
	}

	catalog := []struct {
		name     string
		category string
		cost     string
		price    string
		qty      int
	}{
		{"Basmati Rice 5kg", "grocery", "1450.00", "1690.00", 40},
		{"Cooking Oil 1L", "grocery", "520.00", "590.00", 60},
		{"Black Tea 200g", "beverage", "310.00", "365.00", 80},
		{"Sugar 1kg", "grocery", "140.00", "160.00", 100},
		{"Mineral Water 1.5L", "beverage", "70.00", "90.00", 120},
		{"Biscuits Family Pack", "snack", "180.00", "220.00", 8},
	}
	for i, item := range catalog {
		productID := s.nextID("products")
		created := now.Add(-time.Duration(len(catalog)-i) * time.Hour)
		s.products[productID] = domain.Product{
			ID:        productID,
			StoreID:   storeID,
			SKU:       fmt.Sprintf("DEM-%04d", i+1),
			Name:      item.name,
			Category:  item.category,
			IsActive:  true,
			CreatedAt: created,
		}
		batchID := s.nextID("batches")
		s.batches[batchID] = domain.InventoryBatch{
			ID:                batchID,
			ProductID:         productID,
			StoreID:           storeID,
			CostPrice:         decimal.RequireFromString(item.cost),
			SellingPrice:      decimal.RequireFromString(item.price),
			QuantityAdded:     item.qty,
			QuantityRemaining: item.qty,
			LowStockThreshold: domain.DefaultLowStockThreshold,
			BatchNumber:       fmt.Sprintf("BATCH-SEED-%04d", i+1),
			RestockDate:       created,
		}
	}
	return s
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

// nextID must be called with the write lock held.
func (s *Store) nextID(table string) int64 {
	s.ids[table]++
	return s.ids[table]
}

func int64Ptr(v int64) *int64 {
	return &v
}

// newestFirst orders by time descending, then id descending.
func newestFirst(at time.Time, id int64, otherAt time.Time, otherID int64) int {
	if !at.Equal(otherAt) {
		if at.After(otherAt) {
			return -1
		}
		return 1
	}
	return cmp.Compare(otherID, id)
}

func containsFold(haystack string, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
