package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storepos/backend/internal/domain"
)

const (
	dashboardLowStockLimit    = 5
	dashboardRecentSalesLimit = 10
	dashboardTopProductsLimit = 5
	dashboardTrendDays        = 7
)

// DashboardStats returns the manager dashboard of the caller's store, served
// from the stats cache while it is fresh.
func (s *Service) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if cached, ok, err := s.stats.Get(ctx, p.StoreID); err != nil {
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "stats_cache.read_failed")
	} else if ok {
		return cached, nil
	}

	gen := s.statsGeneration(p.StoreID)
	seen := gen.Load()
	stats, err := s.computeDashboard(ctx, p.StoreID)
	if err != nil {
		return nil, err
	}
	// A write landed while computing; the snapshot may predate it.
	if gen.Load() != seen {
		return stats, nil
	}
	if err := s.stats.Set(ctx, p.StoreID, stats, s.statsTTL); err != nil {
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "stats_cache.write_failed")
	}
	return stats, nil
}

func (s *Service) computeDashboard(ctx context.Context, storeID int64) (*domain.DashboardStats, error) {
	now := s.now().In(s.loc)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	trendStart := todayStart.AddDate(0, 0, -(dashboardTrendDays - 1))
	from := monthStart
	if trendStart.Before(from) {
		from = trendStart
	}

	fromUTC := from.UTC()
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{StoreID: storeID, StartDate: &fromUTC})
	if err != nil {
		return nil, translate(err, "sales")
	}

	stats := &domain.DashboardStats{
		TodaySales:         domain.CountAmount{Revenue: decimal.Zero},
		MonthSales:         domain.CountAmount{Revenue: decimal.Zero},
		TodayExpenses:      decimal.Zero,
		MonthExpenses:      decimal.Zero,
		ExpensesByCategory: []domain.CategoryTotal{},
		LowStockProducts:   []domain.ProductDetail{},
		RecentSales:        []domain.Sale{},
		TopProducts:        []domain.TopProduct{},
		SalesTrend:         make([]domain.TrendPoint, 0, dashboardTrendDays),
		GeneratedAt:        now.UTC(),
	}

	trend := make(map[string]*domain.TrendPoint, dashboardTrendDays)
	for i := 0; i < dashboardTrendDays; i++ {
		day := trendStart.AddDate(0, 0, i).Format(dateLayout)
		stats.SalesTrend = append(stats.SalesTrend, domain.TrendPoint{Date: day, Revenue: decimal.Zero})
	}
	for i := range stats.SalesTrend {
		trend[stats.SalesTrend[i].Date] = &stats.SalesTrend[i]
	}

	top := make(map[string]*domain.TopProduct)
	for _, sale := range sales {
		at := sale.SaleDate.In(s.loc)
		if !at.Before(todayStart) {
			stats.TodaySales.Count++
			stats.TodaySales.Revenue = stats.TodaySales.Revenue.Add(sale.TotalAmount)
		}
		if point, ok := trend[at.Format(dateLayout)]; ok {
			point.Count++
			point.Revenue = point.Revenue.Add(sale.TotalAmount)
		}
		if at.Before(monthStart) {
			continue
		}
		stats.MonthSales.Count++
		stats.MonthSales.Revenue = stats.MonthSales.Revenue.Add(sale.TotalAmount)
		for _, item := range sale.Items {
			entry, ok := top[item.ProductName]
			if !ok {
				entry = &domain.TopProduct{ProductName: item.ProductName, Revenue: decimal.Zero}
				top[item.ProductName] = entry
			}
			entry.Quantity += item.Quantity
			entry.Revenue = entry.Revenue.Add(item.Subtotal)
		}
	}
	for _, entry := range top {
		stats.TopProducts = append(stats.TopProducts, *entry)
	}
	sort.Slice(stats.TopProducts, func(i, j int) bool {
		a, b := stats.TopProducts[i], stats.TopProducts[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.ProductName < b.ProductName
	})
	if len(stats.TopProducts) > dashboardTopProductsLimit {
		stats.TopProducts = stats.TopProducts[:dashboardTopProductsLimit]
	}

	// Expense dates carry no zone; compare them as calendar dates.
	monthDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	expenses, err := s.repo.ListExpenses(ctx, storeID, &monthDate, nil)
	if err != nil {
		return nil, translate(err, "expenses")
	}
	today := now.Format(dateLayout)
	month := now.Format("2006-01")
	byCategory := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		if e.ExpenseDate.Format("2006-01") != month {
			continue
		}
		stats.MonthExpenses = stats.MonthExpenses.Add(e.Amount)
		if e.ExpenseDate.Format(dateLayout) == today {
			stats.TodayExpenses = stats.TodayExpenses.Add(e.Amount)
		}
		category := strings.TrimSpace(e.Category)
		if category == "" {
			category = "Uncategorized"
		}
		byCategory[category] = byCategory[category].Add(e.Amount)
	}
	for category, amount := range byCategory {
		stats.ExpensesByCategory = append(stats.ExpensesByCategory, domain.CategoryTotal{Category: category, Amount: amount})
	}
	sort.Slice(stats.ExpensesByCategory, func(i, j int) bool {
		a, b := stats.ExpensesByCategory[i], stats.ExpensesByCategory[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})
	stats.NetProfit = stats.MonthSales.Revenue.Sub(stats.MonthExpenses)

	products, err := s.repo.ListProducts(ctx, storeID)
	if err != nil {
		return nil, translate(err, "products")
	}
	for _, product := range products {
		detail := withAggregates(product)
		if !detail.IsActive || !detail.IsLowStock {
			continue
		}
		stats.LowStockCount++
		detail.Batches = nil
		stats.LowStockProducts = append(stats.LowStockProducts, detail)
	}
	sort.SliceStable(stats.LowStockProducts, func(i, j int) bool {
		return stats.LowStockProducts[i].Stock < stats.LowStockProducts[j].Stock
	})
	if len(stats.LowStockProducts) > dashboardLowStockLimit {
		stats.LowStockProducts = stats.LowStockProducts[:dashboardLowStockLimit]
	}

	recent, err := s.repo.ListSales(ctx, domain.SaleFilter{StoreID: storeID, Limit: dashboardRecentSalesLimit})
	if err != nil {
		return nil, translate(err, "sales")
	}
	refs := make([]*domain.Sale, len(recent))
	for i := range recent {
		refs[i] = &recent[i]
	}
	s.enrichSales(ctx, refs)
	stats.RecentSales = recent

	return stats, nil
}
