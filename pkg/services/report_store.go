package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	// DefaultPredictionLimit is the number of records listed when no limit is given.
	DefaultPredictionLimit = 500
	// RawRowLimit caps the rows returned by a raw sales filter.
	RawRowLimit = 2000
	// DistinctLimit caps dropdown values.
	DistinctLimit = 200
	insertBatch   = 500
)

// ReportStore is the SQLite reporting database. A connection is opened for
// each call and closed before it returns.
type ReportStore struct {
	path string
	log  *logger.Logger
}

// NewReportStore 新しいレポートストアを作成
func NewReportStore(path string, log *logger.Logger) *ReportStore {
	return &ReportStore{path: path, log: log.With("service", "ReportStore")}
}

// Path returns the database file path.
func (s *ReportStore) Path() string { return s.path }

// Session opens the database, runs fn and closes the connection.
func (s *ReportStore) Session(ctx context.Context, fn func(db *gorm.DB) error) error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open report store %s: %w", s.path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("open report store %s: %w", s.path, err)
	}
	defer sqlDB.Close()
	return fn(db.WithContext(ctx))
}

// Migrate creates or updates the reporting tables.
func (s *ReportStore) Migrate(ctx context.Context) error {
	return s.Session(ctx, func(db *gorm.DB) error {
		return db.AutoMigrate(&models.PredictionRecord{}, &models.RawSale{}, &models.MonthlySales{})
	})
}

// SavePrediction inserts one record. Any failure is reported as ErrSaveFailed.
func (s *ReportStore) SavePrediction(ctx context.Context, rec *models.PredictionRecord) error {
	err := s.Session(ctx, func(db *gorm.DB) error {
		if err := db.AutoMigrate(&models.PredictionRecord{}); err != nil {
			return err
		}
		return db.Create(rec).Error
	})
	if err != nil {
		s.log.Error("save prediction failed", "error", err)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	s.log.Info("prediction saved", "id", rec.ID, "product", rec.Product, "store", rec.StoreLocation, "predicted_total", rec.PredictedTotal)
	return nil
}

func predictionScope(f models.PredictionFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Year != "" {
			if y, err := strconv.Atoi(f.Year); err == nil {
				db = db.Where("year = ?", y)
			} else {
				db = db.Where("1 = 0")
			}
		}
		if f.Product != "" {
			db = db.Where("product = ?", f.Product)
		}
		if f.Store != "" {
			db = db.Where("store_location = ?", f.Store)
		}
		return db
	}
}

type kpiRow struct {
	TotalSales   *float64
	TotalItems   *float64
	Transactions int64
	AvgBill      *float64
}

func (r kpiRow) kpis() models.KPIs {
	deref := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return round2(*p)
	}
	return models.KPIs{
		TotalSales:   deref(r.TotalSales),
		TotalItems:   deref(r.TotalItems),
		Transactions: r.Transactions,
		AvgBill:      deref(r.AvgBill),
	}
}

// ListPredictions returns the newest matching records and KPIs over every
// matching record (not only the listed ones).
func (s *ReportStore) ListPredictions(ctx context.Context, f models.PredictionFilter) ([]models.PredictionRecord, models.KPIs, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPredictionLimit
	}
	var rows []models.PredictionRecord
	var k kpiRow
	err := s.Session(ctx, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&models.PredictionRecord{}) {
			return nil
		}
		if err := db.Scopes(predictionScope(f)).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
			return err
		}
		return db.Model(&models.PredictionRecord{}).Scopes(predictionScope(f)).
			Select("SUM(predicted_total) AS total_sales, SUM(quantity) AS total_items, COUNT(*) AS transactions, AVG(predicted_total) AS avg_bill").
			Scan(&k).Error
	})
	if err != nil {
		return nil, models.KPIs{}, fmt.Errorf("list predictions: %w", err)
	}
	return rows, k.kpis(), nil
}

// AllPredictions returns every record, newest first.
func (s *ReportStore) AllPredictions(ctx context.Context) ([]models.PredictionRecord, error) {
	var rows []models.PredictionRecord
	err := s.Session(ctx, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&models.PredictionRecord{}) {
			return nil
		}
		return db.Order("id DESC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("all predictions: %w", err)
	}
	return rows, nil
}

func rawScope(f models.RawFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Year != "" {
			db = db.Where("strftime('%Y', date) = ?", f.Year)
		}
		if f.Product != "" {
			db = db.Where("product = ?", f.Product)
		}
		if f.Store != "" {
			db = db.Where("store_location = ?", f.Store)
		}
		return db
	}
}

// FilterRaw returns up to RawRowLimit matching sales rows and KPIs over all matches.
func (s *ReportStore) FilterRaw(ctx context.Context, f models.RawFilter) ([]models.RawSale, models.KPIs, error) {
	var rows []models.RawSale
	var k kpiRow
	err := s.Session(ctx, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&models.RawSale{}) {
			return nil
		}
		if err := db.Scopes(rawScope(f)).Order("id ASC").Limit(RawRowLimit).Find(&rows).Error; err != nil {
			return err
		}
		return db.Model(&models.RawSale{}).Scopes(rawScope(f)).
			Select("SUM(total) AS total_sales, SUM(quantity) AS total_items, COUNT(*) AS transactions, AVG(total) AS avg_bill").
			Scan(&k).Error
	})
	if err != nil {
		return nil, models.KPIs{}, fmt.Errorf("filter raw sales: %w", err)
	}
	return rows, k.kpis(), nil
}

var distinctColumns = map[string]bool{"store_location": true, "product": true, "category": true}

// Distinct lists up to DistinctLimit non-empty values of a categorical column.
func (s *ReportStore) Distinct(ctx context.Context, column string) ([]string, error) {
	if !distinctColumns[column] {
		return nil, fmt.Errorf("distinct: unsupported column %q", column)
	}
	var values []string
	err := s.Session(ctx, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&models.RawSale{}) {
			return nil
		}
		return db.Model(&models.RawSale{}).
			Where(column+" IS NOT NULL AND "+column+" <> ''").
			Distinct(column).Order(column).Limit(DistinctLimit).
			Pluck(column, &values).Error
	})
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	return values, nil
}

// CountRaw returns the number of ingested sales rows (0 when the table is absent).
func (s *ReportStore) CountRaw(ctx context.Context) (int64, error) {
	var n int64
	err := s.Session(ctx, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&models.RawSale{}) {
			return nil
		}
		return db.Model(&models.RawSale{}).Count(&n).Error
	})
	return n, err
}

// TopStores 店舗別売上トップ20
func (s *ReportStore) TopStores(ctx context.Context) ([]models.StoreSales, error) {
	var out []models.StoreSales
	err := s.Session(ctx, func(db *gorm.DB) error {
		return db.Model(&models.RawSale{}).
			Select("store_location AS store, ROUND(SUM(total), 2) AS total_sales").
			Group("store_location").Order("total_sales DESC").Limit(20).
			Scan(&out).Error
	})
	return out, err
}

// MonthlySales 年月別売上（年降順、月昇順）
func (s *ReportStore) MonthlySales(ctx context.Context) ([]models.MonthSales, error) {
	var out []models.MonthSales
	err := s.Session(ctx, func(db *gorm.DB) error {
		return db.Model(&models.RawSale{}).
			Select("strftime('%Y', date) AS year, strftime('%m', date) AS month, ROUND(SUM(total), 2) AS total_sales").
			Where("date IS NOT NULL").
			Group("year, month").Order("year DESC, month ASC").
			Scan(&out).Error
	})
	return out, err
}

// TopProducts 商品別売上トップ15
func (s *ReportStore) TopProducts(ctx context.Context) ([]models.ProductSales, error) {
	var out []models.ProductSales
	err := s.Session(ctx, func(db *gorm.DB) error {
		return db.Model(&models.RawSale{}).
			Select("product, ROUND(SUM(total), 2) AS total_sales, SUM(quantity) AS total_quantity").
			Group("product").Order("total_sales DESC").Limit(15).
			Scan(&out).Error
	})
	return out, err
}

// AvgUnitPriceByStore 店舗別平均単価トップ15
func (s *ReportStore) AvgUnitPriceByStore(ctx context.Context) ([]models.StorePrice, error) {
	var out []models.StorePrice
	err := s.Session(ctx, func(db *gorm.DB) error {
		return db.Model(&models.RawSale{}).
			Select("store_location AS store, ROUND(AVG(unit_price), 2) AS avg_unit_price").
			Group("store_location").Order("avg_unit_price DESC").Limit(15).
			Scan(&out).Error
	})
	return out, err
}

// MonthlyTrend reads the monthly aggregate table, oldest month first.
func (s *ReportStore) MonthlyTrend(ctx context.Context) ([]models.ChartPoint, error) {
	var months []models.MonthlySales
	err := s.Session(ctx, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&models.MonthlySales{}) {
			return nil
		}
		return db.Order("month ASC").Find(&months).Error
	})
	if err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	points := make([]models.ChartPoint, len(months))
	for i, m := range months {
		points[i] = models.ChartPoint{Label: m.Month, Value: m.Total}
	}
	return points, nil
}

// Overview runs the four explorer aggregates. A failing aggregate is logged
// and left empty so the others still render.
func (s *ReportStore) Overview(ctx context.Context) models.SQLOverview {
	var ov models.SQLOverview
	var err error
	if ov.TopStores, err = s.TopStores(ctx); err != nil {
		s.log.Warn("top stores query failed", "error", err)
	}
	if ov.MonthlySales, err = s.MonthlySales(ctx); err != nil {
		s.log.Warn("monthly sales query failed", "error", err)
	}
	if ov.TopProducts, err = s.TopProducts(ctx); err != nil {
		s.log.Warn("top products query failed", "error", err)
	}
	if ov.AvgPriceStores, err = s.AvgUnitPriceByStore(ctx); err != nil {
		s.log.Warn("avg unit price query failed", "error", err)
	}
	return ov
}

// ReplaceRaw replaces the sales table with records and rebuilds the monthly
// aggregate, in a single transaction.
func (s *ReportStore) ReplaceRaw(ctx context.Context, records []models.RawRecord) error {
	sales := make([]models.RawSale, len(records))
	monthly := map[string]*models.MonthlySales{}
	for i, r := range records {
		sale := models.RawSale{
			StoreLocation: r.StoreLocation,
			Product:       r.Product,
			Category:      r.Category,
			Quantity:      nullable(r.Quantity),
			UnitPrice:     nullable(r.UnitPrice),
			Total:         nullable(r.Total),
		}
		if !r.Date.IsZero() {
			d := r.Date.Format(models.DateLayout)
			sale.Date = &d
			key := r.Date.Format("2006-01")
			m, ok := monthly[key]
			if !ok {
				m = &models.MonthlySales{Month: key}
				monthly[key] = m
			}
			if !math.IsNaN(r.Total) {
				m.Total += r.Total
			}
			if !math.IsNaN(r.Quantity) {
				m.Quantity += r.Quantity
			}
		}
		sales[i] = sale
	}
	months := make([]models.MonthlySales, 0, len(monthly))
	for _, m := range monthly {
		months = append(months, *m)
	}

	start := time.Now()
	err := s.Session(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			m := tx.Migrator()
			for _, model := range []interface{}{&models.RawSale{}, &models.MonthlySales{}} {
				if m.HasTable(model) {
					if err := m.DropTable(model); err != nil {
						return err
					}
				}
			}
			if err := tx.AutoMigrate(&models.RawSale{}, &models.MonthlySales{}, &models.PredictionRecord{}); err != nil {
				return err
			}
			if len(sales) > 0 {
				if err := tx.CreateInBatches(sales, insertBatch).Error; err != nil {
					return err
				}
			}
			if len(months) > 0 {
				if err := tx.CreateInBatches(months, insertBatch).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("replace raw sales: %w", err)
	}
	s.log.Info("reporting store rebuilt", "path", s.path, "rows", len(sales), "months", len(months), "elapsed", time.Since(start))
	return nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// predictionHeader is the column order of the predictions export.
var predictionHeader = []string{"id", "timestamp", "product", "store_location", "date", "year", "quantity", "unit_price", "predicted_total"}

// WritePredictionsCSV writes records with a header row.
func WritePredictionsCSV(w io.Writer, records []models.PredictionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionHeader); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range records {
		row := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.Timestamp,
			r.Product,
			r.StoreLocation,
			r.Date,
			strconv.Itoa(r.Year),
			ff(r.Quantity),
			ff(r.UnitPrice),
			ff(r.PredictedTotal),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
