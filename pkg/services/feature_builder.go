package services

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"supermart-analytics/pkg/models"
)

const (
	// OtherCategory collects every categorical value outside the top-N set.
	OtherCategory = "other"
	// DefaultTopN is the number of most frequent values kept per categorical column.
	DefaultTopN = 20
	topSep      = "_top_"
)

// CategoricalFields are one-hot encoded, in this order, when present.
var CategoricalFields = []string{"product", "store_location", "category"}

// FallbackColumns is the vector layout used when no trained column list exists.
var FallbackColumns = []string{"year", "month", "quantity", "unit_price"}

// FeatureInput carries the free-form values of one record or request.
type FeatureInput struct {
	Product       string
	StoreLocation string
	Category      string
	Date          string
	Quantity      string
	UnitPrice     string
}

// FromRequest converts a prediction request into feature input.
func FromRequest(req models.PredictionRequest) FeatureInput {
	return FeatureInput{
		Product:       req.Product,
		StoreLocation: req.StoreLocation,
		Category:      req.Category,
		Date:          req.Date,
		Quantity:      req.Quantity.String(),
		UnitPrice:     req.UnitPrice.String(),
	}
}

// Resolution is the outcome of resolving one input field: either a resolved
// value or a fallback with the reason it was taken. Fallbacks contribute 0.
type Resolution struct {
	Field    string  `json:"field"`
	Value    float64 `json:"value"`
	Fallback bool    `json:"fallback"`
	Reason   string  `json:"reason,omitempty"`
}

func resolved(field string, v float64) Resolution {
	return Resolution{Field: field, Value: v}
}

func fallback(field, reason string) Resolution {
	return Resolution{Field: field, Fallback: true, Reason: reason}
}

// FeatureVector is a numeric vector aligned with Columns.
type FeatureVector struct {
	Columns   []string     `json:"columns"`
	Values    []float64    `json:"values"`
	Fallbacks []Resolution `json:"fallbacks,omitempty"`
}

// Get returns the value of a named column and whether it exists.
func (v FeatureVector) Get(name string) (float64, bool) {
	for i, c := range v.Columns {
		if c == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// FeatureBuilder derives fixed-order feature vectors from records and requests.
type FeatureBuilder struct {
	dateLayouts []string
}

// NewFeatureBuilder 特徴量ビルダーを作成
func NewFeatureBuilder() *FeatureBuilder {
	return &FeatureBuilder{dateLayouts: DateLayouts}
}

// OneHotName is the column name for a categorical value.
func OneHotName(field, value string) string {
	return field + topSep + value
}

// Build produces a vector with exactly the given columns in their order.
// Unknown categories, unparseable dates and invalid numbers resolve to 0.
// With no columns the four-field fallback layout is used.
func (b *FeatureBuilder) Build(in FeatureInput, columns []string) FeatureVector {
	year, month := b.resolveDate(in.Date)
	qty := resolveNumber("quantity", in.Quantity)
	price := resolveNumber("unit_price", in.UnitPrice)

	vec := FeatureVector{}
	for _, r := range []Resolution{year, month, qty, price} {
		if r.Fallback {
			vec.Fallbacks = append(vec.Fallbacks, r)
		}
	}

	if len(columns) == 0 {
		vec.Columns = append([]string(nil), FallbackColumns...)
		vec.Values = []float64{year.Value, month.Value, qty.Value, price.Value}
		return vec
	}

	vec.Columns = append([]string(nil), columns...)
	vec.Values = make([]float64, len(columns))
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	set := func(name string, v float64) {
		if i, ok := index[name]; ok {
			vec.Values[i] = v
		}
	}
	set("year", year.Value)
	set("month", month.Value)
	set("quantity", qty.Value)
	set("unit_price", price.Value)

	categories := map[string]string{
		"product":        in.Product,
		"store_location": in.StoreLocation,
		"category":       in.Category,
	}
	for _, field := range CategoricalFields {
		r := resolveCategory(field, categories[field], index)
		if r.Fallback {
			if hasGroup(field, columns) {
				vec.Fallbacks = append(vec.Fallbacks, r)
			}
			continue
		}
		vec.Values[index[OneHotName(field, categories[field])]] = 1.0
	}
	return vec
}

// Year is the calendar year of a date string, 0 when it cannot be parsed.
func (b *FeatureBuilder) Year(date string) int {
	y, _ := b.resolveDate(date)
	return int(y.Value)
}

func (b *FeatureBuilder) resolveDate(date string) (year, month Resolution) {
	t, ok := ParseDate(date, b.dateLayouts)
	if !ok {
		reason := "unparseable date"
		if strings.TrimSpace(date) == "" {
			reason = "missing date"
		}
		return fallback("year", reason), fallback("month", reason)
	}
	return resolved("year", float64(t.Year())), resolved("month", float64(t.Month()))
}

func resolveNumber(field, raw string) Resolution {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback(field, "missing value")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback(field, "invalid number")
	}
	return resolved(field, v)
}

// NumberOrZero parses a free-form request number. Missing or invalid values are 0.
func NumberOrZero(raw string) float64 {
	return resolveNumber("", raw).Value
}

func resolveCategory(field, value string, index map[string]int) Resolution {
	if value == "" {
		return fallback(field, "missing category")
	}
	if _, ok := index[OneHotName(field, value)]; !ok {
		return fallback(field, "category outside trained set")
	}
	return resolved(field, 1.0)
}

func hasGroup(field string, columns []string) bool {
	prefix := field + topSep
	for _, c := range columns {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// EncodedMatrix is the bulk training-time encoding of a dataset.
// Null dates encode as year/month 0; NaN marks a missing quantity or unit_price.
type EncodedMatrix struct {
	Columns []string
	Rows    [][]float64
}

// BulkEncode derives the training feature matrix. Layout: year, month (when a
// date column exists), quantity, unit_price, then per categorical field the
// sorted dummy levels of its top-N-or-other values with the first level dropped.
func (b *FeatureBuilder) BulkEncode(ds *models.Dataset, topN int) EncodedMatrix {
	if topN <= 0 {
		topN = DefaultTopN
	}
	n := ds.Len()
	var columns []string
	var numeric [][]float64

	if dateCol := DateColumn(ds); dateCol != nil {
		years := make([]float64, n)
		months := make([]float64, n)
		for i, t := range dateCol.Dates {
			if !t.IsZero() {
				years[i] = float64(t.Year())
				months[i] = float64(t.Month())
			}
		}
		columns = append(columns, "year", "month")
		numeric = append(numeric, years, months)
	}
	for _, name := range []string{"quantity", "unit_price"} {
		if !ds.HasColumn(name) {
			continue
		}
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = ds.NumberAt(name, i)
		}
		columns = append(columns, name)
		numeric = append(numeric, vals)
	}

	type dummyGroup struct {
		field     string
		collapsed []string
		levels    []string
	}
	var groups []dummyGroup
	for _, field := range CategoricalFields {
		if !ds.HasColumn(field) {
			continue
		}
		values := make([]string, n)
		for i := range values {
			values[i] = ds.TextAt(field, i)
		}
		top := TopCategories(values, topN)
		collapsed := make([]string, n)
		levelSet := map[string]bool{}
		for i, v := range values {
			if v == "" || !top[v] {
				v = OtherCategory
			}
			collapsed[i] = v
			levelSet[v] = true
		}
		levels := make([]string, 0, len(levelSet))
		for l := range levelSet {
			levels = append(levels, l)
		}
		sort.Strings(levels)
		if len(levels) > 0 {
			levels = levels[1:]
		}
		for _, l := range levels {
			columns = append(columns, OneHotName(field, l))
		}
		groups = append(groups, dummyGroup{field: field, collapsed: collapsed, levels: levels})
	}

	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, 0, len(columns))
		for _, col := range numeric {
			row = append(row, col[i])
		}
		for _, g := range groups {
			for _, l := range g.levels {
				if g.collapsed[i] == l {
					row = append(row, 1)
				} else {
					row = append(row, 0)
				}
			}
		}
		rows[i] = row
	}
	return EncodedMatrix{Columns: columns, Rows: rows}
}

// TopCategories returns the n most frequent non-empty values.
// Ties are broken lexicographically so the set is deterministic.
func TopCategories(values []string, n int) map[string]bool {
	counts := map[string]int{}
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	top := make(map[string]bool, len(keys))
	for _, k := range keys {
		top[k] = true
	}
	return top
}
