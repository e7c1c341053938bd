package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"supermart-analytics/pkg/models"
)

// GeneratorConfig 合成データセットの生成設定
type GeneratorConfig struct {
	Start          time.Time
	End            time.Time
	Stores         []string
	Products       []string
	ProductsPerDay int
	MinQuantity    int
	MaxQuantity    int
	MinPrice       float64
	MaxPrice       float64
	Seed           int64
}

// DefaultStores and DefaultProducts are the synthetic dataset vocabulary.
var (
	DefaultStores   = []string{"Downtown", "Mall", "Uptown", "Suburb", "Airport"}
	DefaultProducts = []string{"Milk", "Bread", "Eggs", "Butter", "Apples", "Bananas", "Rice", "Sugar", "Soap", "Toothpaste", "Shampoo"}
)

// DefaultGeneratorConfig covers 2022-01-01 through 2023-12-31.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Start:          time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		Stores:         DefaultStores,
		Products:       DefaultProducts,
		ProductsPerDay: 5,
		MinQuantity:    1,
		MaxQuantity:    30,
		MinPrice:       0.5,
		MaxPrice:       10.0,
		Seed:           42,
	}
}

// GenerateDataset produces one sale per (day, store, sampled product).
// Products are sampled without replacement per store-day.
func GenerateDataset(cfg GeneratorConfig) ([]models.RawRecord, error) {
	if len(cfg.Stores) == 0 || len(cfg.Products) == 0 {
		return nil, fmt.Errorf("generator: stores and products must not be empty")
	}
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("generator: end %s before start %s", cfg.End.Format(models.DateLayout), cfg.Start.Format(models.DateLayout))
	}
	k := cfg.ProductsPerDay
	if k <= 0 || k > len(cfg.Products) {
		k = len(cfg.Products)
	}
	if cfg.MaxQuantity < cfg.MinQuantity || cfg.MaxPrice < cfg.MinPrice {
		return nil, fmt.Errorf("generator: invalid quantity or price range")
	}

	rnd := rand.New(rand.NewSource(cfg.Seed))
	var out []models.RawRecord
	for d := cfg.Start; !d.After(cfg.End); d = d.AddDate(0, 0, 1) {
		for _, store := range cfg.Stores {
			for _, i := range rnd.Perm(len(cfg.Products))[:k] {
				qty := float64(cfg.MinQuantity + rnd.Intn(cfg.MaxQuantity-cfg.MinQuantity+1))
				price := math.Round((cfg.MinPrice+rnd.Float64()*(cfg.MaxPrice-cfg.MinPrice))*100) / 100
				out = append(out, models.RawRecord{
					Date:          d,
					StoreLocation: store,
					Product:       cfg.Products[i],
					Quantity:      qty,
					UnitPrice:     price,
					Total:         qty * price,
				})
			}
		}
	}
	return out, nil
}

// WriteRecordsCSV writes records in the dataset file layout.
func WriteRecordsCSV(w io.Writer, records []models.RawRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "store_location", "product", "quantity", "unit_price", "total"}); err != nil {
		return err
	}
	ff := func(v float64) string {
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	for _, r := range records {
		date := ""
		if !r.Date.IsZero() {
			date = r.Date.Format(models.DateLayout)
		}
		if err := cw.Write([]string{date, r.StoreLocation, r.Product, ff(r.Quantity), ff(r.UnitPrice), ff(r.Total)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
