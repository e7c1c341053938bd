package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RawRecord 取り込んだデータセットの1行
type RawRecord struct {
	Date          time.Time `json:"date"` // zero value = unparseable date
	StoreLocation string    `json:"store_location"`
	Product       string    `json:"product"`
	Category      string    `json:"category,omitempty"`
	Quantity      float64   `json:"quantity"`   // NaN = missing
	UnitPrice     float64   `json:"unit_price"` // NaN = missing
	Total         float64   `json:"total"`      // NaN = missing
}

// RawSale is the persisted form of a RawRecord in the reporting store.
type RawSale struct {
	ID            uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	Date          *string  `gorm:"index" json:"date"`
	StoreLocation string   `gorm:"index" json:"store_location"`
	Product       string   `gorm:"index" json:"product"`
	Category      string   `json:"category"`
	Quantity      *float64 `json:"quantity"`
	UnitPrice     *float64 `json:"unit_price"`
	Total         *float64 `json:"total"`
}

func (RawSale) TableName() string { return "supermart_raw" }

// MonthlySales 月次集計テーブル
type MonthlySales struct {
	Month    string  `gorm:"primaryKey" json:"month"`
	Total    float64 `json:"total"`
	Quantity float64 `json:"quantity"`
}

func (MonthlySales) TableName() string { return "sales_by_month" }

// PredictionRecord 推論結果の永続化レコード（作成後は変更しない）
type PredictionRecord struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp      string  `json:"timestamp"`
	Product        string  `json:"product"`
	StoreLocation  string  `json:"store_location"`
	Date           string  `json:"date"`
	Year           int     `json:"year"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	PredictedTotal float64 `json:"predicted_total"`
}

func (PredictionRecord) TableName() string { return "predictions" }

// PredictionRequest is the body of a "submit prediction" call.
type PredictionRequest struct {
	Product       string   `json:"product" form:"product"`
	StoreLocation string   `json:"store_location" form:"store_location"`
	Category      string   `json:"category,omitempty" form:"category"`
	Date          string   `json:"date" form:"date"`
	Quantity      FreeForm `json:"quantity" form:"quantity"`
	UnitPrice     FreeForm `json:"unit_price" form:"unit_price"`
}

// FreeForm holds a raw request value that may arrive as a JSON number,
// a JSON string or a form field. Interpretation is left to the caller.
type FreeForm string

func (f *FreeForm) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FreeForm(s)
		return nil
	}
	*f = FreeForm(raw)
	return nil
}

func (f FreeForm) String() string { return string(f) }

// PredictionFilter 推論履歴の絞り込み条件
type PredictionFilter struct {
	Year    string `json:"year" form:"year"`
	Product string `json:"product" form:"product"`
	Store   string `json:"store" form:"store"`
	Limit   int    `json:"limit" form:"limit"`
}

// RawFilter 売上データの絞り込み条件
type RawFilter struct {
	Year    string `json:"year" form:"year"`
	Product string `json:"product" form:"product"`
	Store   string `json:"store" form:"store"`
}

// KPIs summary figures over a filtered set of rows.
type KPIs struct {
	TotalSales   float64 `json:"total_sales"`
	TotalItems   float64 `json:"total_items"`
	Transactions int64   `json:"transactions"`
	AvgBill      float64 `json:"avg_bill"`
}

// StoreSales 店舗別売上
type StoreSales struct {
	Store      string  `json:"store"`
	TotalSales float64 `json:"total_sales"`
}

// MonthSales 年月別売上
type MonthSales struct {
	Year       string  `json:"year"`
	Month      string  `json:"month"`
	TotalSales float64 `json:"total_sales"`
}

// ProductSales 商品別売上と数量
type ProductSales struct {
	Product       string  `json:"product"`
	TotalSales    float64 `json:"total_sales"`
	TotalQuantity float64 `json:"total_quantity"`
}

// StorePrice 店舗別平均単価
type StorePrice struct {
	Store        string  `json:"store"`
	AvgUnitPrice float64 `json:"avg_unit_price"`
}

// SQLOverview bundles the aggregate tables shown on the SQL explorer page.
type SQLOverview struct {
	TopStores      []StoreSales   `json:"top_stores"`
	MonthlySales   []MonthSales   `json:"monthly_sales"`
	TopProducts    []ProductSales `json:"top_products"`
	AvgPriceStores []StorePrice   `json:"avg_unit_price_by_store"`
}

// ChartPoint グラフ描画用のラベルと値
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ColumnSummary 列ごとの基本統計量
type ColumnSummary struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Count  int     `json:"count"`
	Nulls  int     `json:"nulls"`
	Mean   float64 `json:"mean,omitempty"`
	Std    float64 `json:"std,omitempty"`
	Median float64 `json:"median,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Unique int     `json:"unique,omitempty"`
}

// CorrelationPair 2つの数値列間の相関
type CorrelationPair struct {
	X              string  `json:"x"`
	Y              string  `json:"y"`
	Coefficient    float64 `json:"coefficient"`
	PValue         float64 `json:"p_value"`
	SampleSize     int     `json:"sample_size"`
	Interpretation string  `json:"interpretation"`
}

// TrainingReport is the informational outcome of a training run.
type TrainingReport struct {
	RunID      string    `json:"run_id"`
	Target     string    `json:"target"`
	Columns    []string  `json:"columns"`
	TotalRows  int       `json:"total_rows"`
	UsableRows int       `json:"usable_rows"`
	TrainRows  int       `json:"train_rows"`
	TestRows   int       `json:"test_rows"`
	MAE        float64   `json:"mae"`
	TrainedAt  time.Time `json:"trained_at"`
}
