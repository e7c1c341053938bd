package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/models"

	"github.com/xuri/excelize/v2"
)

// numericColumns are always coerced to numbers, whatever their content looks like.
var numericColumns = map[string]bool{"quantity": true, "unit_price": true, "total": true}

// nullMarkers are cell values treated as missing rather than as text.
var nullMarkers = map[string]bool{"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true, "-": true}

// DateLayouts are tried in order when parsing a date cell or request field.
var DateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"02-Jan-2006",
	"20060102",
}

// IngestionService reads sales datasets from CSV/XLSX and cleans them into typed columns.
type IngestionService struct {
	log         *logger.Logger
	dateLayouts []string
}

// NewIngestionService 新しいデータ取り込みサービスを作成
func NewIngestionService(log *logger.Logger) *IngestionService {
	return &IngestionService{
		log:         log.With("service", "IngestionService"),
		dateLayouts: DateLayouts,
	}
}

// Load reads the file at path without cleaning it.
// A missing or unreadable file yields ErrDataUnavailable.
func (s *IngestionService) Load(path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, path, err)
	}
	defer f.Close()
	return s.LoadReader(filepath.Base(path), f)
}

// LoadReader reads CSV or XLSX content; name decides the format by extension.
func (s *IngestionService) LoadReader(name string, r io.Reader) (*models.Dataset, error) {
	var rows [][]string
	var err error
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		rows, err = readXLSX(r)
	} else {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		rows, err = cr.ReadAll()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrDataUnavailable, name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", ErrDataUnavailable, name)
	}
	s.log.Info("dataset loaded", "name", name, "rows", len(rows)-1, "columns", len(rows[0]))
	return models.NewTextDataset(name, rows[0], rows[1:]), nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(0))
}

// LoadCleaned is Load followed by Clean.
func (s *IngestionService) LoadCleaned(path string) (*models.Dataset, error) {
	ds, err := s.Load(path)
	if err != nil {
		return nil, err
	}
	return s.Clean(ds), nil
}

// Clean normalises column names, types date and numeric columns, back-fills
// total and drops exact duplicate rows. The dataset is modified in place.
func (s *IngestionService) Clean(ds *models.Dataset) *models.Dataset {
	for _, col := range ds.Columns {
		col.Name = NormalizeColumnName(col.Name)
	}

	for _, col := range ds.Columns {
		if col.Kind != models.KindText {
			continue
		}
		switch {
		case strings.Contains(col.Name, "date"):
			s.toDates(col)
		case numericColumns[col.Name] || looksNumeric(col.Text):
			toNumbers(col)
		default:
			for i, v := range col.Text {
				col.Text[i] = strings.TrimSpace(v)
			}
		}
	}

	filled := backfillTotal(ds)
	dropped := dropDuplicates(ds)
	s.log.Info("dataset cleaned", "name", ds.Name, "rows", ds.Len(), "total_backfilled", filled, "duplicates_dropped", dropped)
	return ds
}

// NormalizeColumnName trims, lower-cases and replaces spaces with underscores.
func NormalizeColumnName(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func (s *IngestionService) toDates(col *models.Column) {
	col.Dates = make([]time.Time, len(col.Text))
	invalid := 0
	for i, v := range col.Text {
		if t, ok := ParseDate(v, s.dateLayouts); ok {
			col.Dates[i] = t
		} else if strings.TrimSpace(v) != "" {
			invalid++
		}
	}
	col.Kind = models.KindDate
	col.Text = nil
	if invalid > 0 {
		s.log.Warn("unparseable dates set to null", "column", col.Name, "count", invalid)
	}
}

func toNumbers(col *models.Column) {
	col.Numbers = make([]float64, len(col.Text))
	for i, v := range col.Text {
		if n, ok := parseNumber(v); ok {
			col.Numbers[i] = n
		} else {
			col.Numbers[i] = math.NaN()
		}
	}
	col.Kind = models.KindNumber
	col.Text = nil
}

// looksNumeric is true when the column has at least one value and every
// non-null value parses as a number.
func looksNumeric(values []string) bool {
	seen := false
	for _, v := range values {
		if isNullMarker(v) {
			continue
		}
		if _, ok := parseNumber(v); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func isNullMarker(v string) bool {
	return nullMarkers[strings.ToLower(strings.TrimSpace(v))]
}

// parseNumber accepts thousands separators; null markers and words like
// "Inf" are rejected.
func parseNumber(v string) (float64, bool) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if isNullMarker(v) {
		return 0, false
	}
	for _, r := range v {
		if !(r >= '0' && r <= '9') && r != '.' && r != '-' && r != '+' && r != 'e' && r != 'E' {
			return 0, false
		}
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// ParseDate tries each layout, then the date part of a value carrying a time.
func ParseDate(v string, layouts []string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return day(t), true
		}
	}
	if i := strings.IndexAny(v, " T"); i > 0 {
		part := v[:i]
		for _, layout := range layouts {
			if t, err := time.Parse(layout, part); err == nil {
				return day(t), true
			}
		}
	}
	return time.Time{}, false
}

func day(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC) }

// backfillTotal sets total = quantity * unit_price wherever total is missing.
func backfillTotal(ds *models.Dataset) int {
	qty, okQ := ds.Column("quantity")
	price, okP := ds.Column("unit_price")
	total, okT := ds.Column("total")
	if !okT {
		total = &models.Column{Name: "total", Kind: models.KindNumber, Numbers: make([]float64, ds.Len())}
		for i := range total.Numbers {
			total.Numbers[i] = math.NaN()
		}
		if !okQ || !okP {
			return 0
		}
		ds.AddColumn(total)
	}
	if !okQ || !okP || qty.Kind != models.KindNumber || price.Kind != models.KindNumber {
		return 0
	}
	filled := 0
	for i := range total.Numbers {
		if math.IsNaN(total.Numbers[i]) {
			total.Numbers[i] = qty.Numbers[i] * price.Numbers[i]
			filled++
		}
	}
	return filled
}

func dropDuplicates(ds *models.Dataset) int {
	seen := make(map[string]bool, ds.Len())
	keep := make([]bool, ds.Len())
	dropped := 0
	for i := 0; i < ds.Len(); i++ {
		key := strings.Join(ds.Row(i), "\x1f")
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		keep[i] = true
	}
	if dropped > 0 {
		ds.Filter(keep)
	}
	return dropped
}

// Records projects a cleaned dataset onto the fixed sales record shape.
func (s *IngestionService) Records(ds *models.Dataset) []models.RawRecord {
	dateCol := DateColumn(ds)
	out := make([]models.RawRecord, ds.Len())
	for i := range out {
		rec := models.RawRecord{
			StoreLocation: ds.TextAt("store_location", i),
			Product:       ds.TextAt("product", i),
			Category:      ds.TextAt("category", i),
			Quantity:      ds.NumberAt("quantity", i),
			UnitPrice:     ds.NumberAt("unit_price", i),
			Total:         ds.NumberAt("total", i),
		}
		if dateCol != nil {
			rec.Date = dateCol.Dates[i]
		}
		out[i] = rec
	}
	return out
}

// DateColumn returns the "date" column when typed as a date, else the first
// date-typed column, else nil.
func DateColumn(ds *models.Dataset) *models.Column {
	if c, ok := ds.Column("date"); ok && c.Kind == models.KindDate {
		return c
	}
	for _, c := range ds.Columns {
		if c.Kind == models.KindDate {
			return c
		}
	}
	return nil
}

// WriteCSV writes the cleaned dataset with a header row.
func (s *IngestionService) WriteCSV(path string, ds *models.Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(ds.Header()); err != nil {
		f.Close()
		return err
	}
	for i := 0; i < ds.Len(); i++ {
		if err := w.Write(ds.Row(i)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.log.Info("cleaned dataset written", "path", path, "rows", ds.Len())
	return nil
}
