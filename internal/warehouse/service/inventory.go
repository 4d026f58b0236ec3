package service

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/settings"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// InventoryService answers read-side questions about the stock ledger
type InventoryService struct {
	batchRepo *repository.BatchRepository
	drugRepo  *repository.DrugRepository
	settings  *settings.Provider
	logger    *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	batchRepo *repository.BatchRepository,
	drugRepo *repository.DrugRepository,
	provider *settings.Provider,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		batchRepo: batchRepo,
		drugRepo:  drugRepo,
		settings:  provider,
		logger:    log,
	}
}

// Overview summarizes the ledger: total units on hand and the number of
// batches inside each near-expiry window.
type Overview struct {
	TotalQuantity      int64 `json:"total_quantity"`
	NearExpiryYellow   int64 `json:"near_expiry_yellow"`
	NearExpiryRed      int64 `json:"near_expiry_red"`
	ExpiryWarningDays  int   `json:"expiry_warning_days"`
	ExpiryCriticalDays int   `json:"expiry_critical_days"`
}

// GetOverview computes the ledger overview using the thresholds in effect
func (s *InventoryService) GetOverview(ctx context.Context) (*Overview, error) {
	total, err := s.batchRepo.TotalQuantity(ctx)
	if err != nil {
		return nil, err
	}

	warningDays, criticalDays := s.settings.ExpiryThresholds(ctx)
	counts, err := s.batchRepo.CountNearExpiry(ctx, warningDays, criticalDays)
	if err != nil {
		return nil, err
	}

	return &Overview{
		TotalQuantity:      total,
		NearExpiryYellow:   counts.Yellow,
		NearExpiryRed:      counts.Red,
		ExpiryWarningDays:  warningDays,
		ExpiryCriticalDays: criticalDays,
	}, nil
}

// ListBatches lists all batches of a drug, including empty ones
func (s *InventoryService) ListBatches(ctx context.Context, drugID string) ([]*repository.StockBatch, error) {
	if _, err := s.drugRepo.GetByID(ctx, drugID); err != nil {
		return nil, err
	}
	return s.batchRepo.ListByDrug(ctx, drugID)
}

// ListAvailableBatches lists the batches an allocation would draw from,
// in allocation order
func (s *InventoryService) ListAvailableBatches(ctx context.Context, drugID string) ([]*repository.StockBatch, error) {
	if _, err := s.drugRepo.GetByID(ctx, drugID); err != nil {
		return nil, err
	}
	return s.batchRepo.ListAvailable(ctx, drugID)
}

// ListDrugs lists the active drug catalog
func (s *InventoryService) ListDrugs(ctx context.Context) ([]*repository.Drug, error) {
	return s.drugRepo.List(ctx)
}
