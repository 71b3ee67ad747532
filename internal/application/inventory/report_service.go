package inventory

import (
	"context"
	"time"

	"github.com/erp/stocksync/internal/domain/catalog"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReportService answers read-only operational queries
type ReportService struct {
	stockRepo inventory.StockLevelRepository
	products  catalog.ProductRepository
	policy    inventory.AlertPolicy
	logger    *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	stockRepo inventory.StockLevelRepository,
	products catalog.ProductRepository,
	policy inventory.AlertPolicy,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		stockRepo: stockRepo,
		products:  products,
		policy:    policy,
		logger:    logger,
	}
}

// DefaultLowThreshold is the LOW alert threshold, used when a report names none
func (s *ReportService) DefaultLowThreshold() int {
	return s.policy.Low
}

// GetLowStockProducts lists stock levels with available <= threshold, lowest first.
// A zero threshold lists only what is out of stock.
func (s *ReportService) GetLowStockProducts(ctx context.Context, threshold, page, pageSize int) ([]LowStockItem, error) {
	if threshold < 0 {
		return nil, shared.Newf(shared.ErrInvalidInput, "threshold cannot be negative")
	}
	filter := shared.DefaultFilter()
	if page > 0 {
		filter.Page = page
	}
	if pageSize > 0 {
		filter.PageSize = pageSize
	}

	levels, err := s.stockRepo.FindAtOrBelow(ctx, threshold, filter)
	if err != nil {
		return nil, err
	}

	names := s.productsByID(ctx, levels)
	items := make([]LowStockItem, len(levels))
	for i, l := range levels {
		item := LowStockItem{
			ProductID:  l.ProductID,
			LocationID: l.LocationID,
			Available:  l.Available,
			Reserved:   l.Reserved,
			AlertLevel: string(s.policy.LevelFor(l.Available)),
		}
		if p, ok := names[l.ProductID]; ok {
			item.ProductCode = p.Code
			item.ProductName = p.Name
		}
		items[i] = item
	}
	return items, nil
}

// GetStockSummary counts stock levels per alert band and values on-hand units
// at the catalog selling price
func (s *ReportService) GetStockSummary(ctx context.Context) (*StockSummary, error) {
	bands, err := s.stockRepo.CountByBand(ctx, s.policy)
	if err != nil {
		return nil, err
	}
	totals, err := s.stockRepo.SummarizeByProduct(ctx)
	if err != nil {
		return nil, err
	}

	summary := &StockSummary{
		StockLevels: bands.Total(),
		Products:    len(totals),
		OutOfStock:  bands.OutOfStock,
		Critical:    bands.Critical,
		Low:         bands.Low,
		Healthy:     bands.Healthy,
		TotalValue:  decimal.Zero,
		GeneratedAt: time.Now(),
	}

	ids := make([]uuid.UUID, len(totals))
	for i, t := range totals {
		ids[i] = t.ProductID
		summary.TotalAvailable += t.Available
		summary.TotalReserved += t.Reserved
	}
	summary.TotalOnHand = summary.TotalAvailable + summary.TotalReserved

	prices := make(map[uuid.UUID]decimal.Decimal, len(ids))
	if s.products != nil && len(ids) > 0 {
		products, err := s.products.FindByIDs(ctx, ids)
		if err != nil {
			s.logger.Warn("Catalog lookup failed, stock summary value is partial", zap.Error(err))
		}
		for _, p := range products {
			prices[p.ID] = p.SellingPrice
		}
	}
	for _, t := range totals {
		if price, ok := prices[t.ProductID]; ok {
			summary.TotalValue = summary.TotalValue.Add(price.Mul(decimal.NewFromInt(t.Available + t.Reserved)))
		}
	}
	return summary, nil
}

func (s *ReportService) productsByID(ctx context.Context, levels []inventory.StockLevel) map[uuid.UUID]catalog.Product {
	out := make(map[uuid.UUID]catalog.Product)
	if s.products == nil || len(levels) == 0 {
		return out
	}
	seen := make(map[uuid.UUID]bool, len(levels))
	ids := make([]uuid.UUID, 0, len(levels))
	for _, l := range levels {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Catalog lookup failed for low stock report", zap.Error(err))
		return out
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}
