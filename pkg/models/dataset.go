package models

import (
	"math"
	"strconv"
	"time"
)

// ColumnKind is the inferred type of a dataset column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumber
	KindDate
)

func (k ColumnKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// DateLayout is the canonical calendar-day format used for output and storage.
const DateLayout = "2006-01-02"

// Column holds one typed column. Only the slice matching Kind is populated.
// Nulls are "" for text, NaN for numbers and the zero time for dates.
type Column struct {
	Name    string
	Kind    ColumnKind
	Text    []string
	Numbers []float64
	Dates   []time.Time
}

// IsNull reports whether row i holds no value.
func (c *Column) IsNull(i int) bool {
	switch c.Kind {
	case KindNumber:
		return math.IsNaN(c.Numbers[i])
	case KindDate:
		return c.Dates[i].IsZero()
	default:
		return c.Text[i] == ""
	}
}

// Format renders row i the way it is written to a cleaned CSV.
func (c *Column) Format(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Kind {
	case KindNumber:
		return strconv.FormatFloat(c.Numbers[i], 'f', -1, 64)
	case KindDate:
		return c.Dates[i].Format(DateLayout)
	default:
		return c.Text[i]
	}
}

// Dataset 列指向の表形式データ
type Dataset struct {
	Name    string
	Columns []*Column
	rows    int
}

// NewTextDataset builds an all-text dataset from a header and data rows.
// Short rows are padded with empty cells, extra cells are ignored.
func NewTextDataset(name string, header []string, rows [][]string) *Dataset {
	ds := &Dataset{Name: name, rows: len(rows)}
	for j, h := range header {
		col := &Column{Name: h, Kind: KindText, Text: make([]string, len(rows))}
		for i, r := range rows {
			if j < len(r) {
				col.Text[i] = r[j]
			}
		}
		ds.Columns = append(ds.Columns, col)
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.rows }

// SetLen is used by transforms that rebuild columns in place.
func (d *Dataset) SetLen(n int) { d.rows = n }

// Header returns the column names in order.
func (d *Dataset) Header() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// AddColumn appends a column; it must have Len() entries.
func (d *Dataset) AddColumn(c *Column) {
	d.Columns = append(d.Columns, c)
}

// Row renders row i as strings in column order.
func (d *Dataset) Row(i int) []string {
	out := make([]string, len(d.Columns))
	for j, c := range d.Columns {
		out[j] = c.Format(i)
	}
	return out
}

// Filter keeps only the rows where keep[i] is true.
func (d *Dataset) Filter(keep []bool) {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	for _, c := range d.Columns {
		switch c.Kind {
		case KindNumber:
			out := make([]float64, 0, n)
			for i, v := range c.Numbers {
				if keep[i] {
					out = append(out, v)
				}
			}
			c.Numbers = out
		case KindDate:
			out := make([]time.Time, 0, n)
			for i, v := range c.Dates {
				if keep[i] {
					out = append(out, v)
				}
			}
			c.Dates = out
		default:
			out := make([]string, 0, n)
			for i, v := range c.Text {
				if keep[i] {
					out = append(out, v)
				}
			}
			c.Text = out
		}
	}
	d.rows = n
}

// NumberAt returns the numeric value of a column at row i, or NaN when the
// column is absent or not numeric.
func (d *Dataset) NumberAt(name string, i int) float64 {
	c, ok := d.Column(name)
	if !ok || c.Kind != KindNumber {
		return math.NaN()
	}
	return c.Numbers[i]
}

// TextAt returns the text value of a column at row i ("" when absent).
func (d *Dataset) TextAt(name string, i int) string {
	c, ok := d.Column(name)
	if !ok {
		return ""
	}
	if c.Kind == KindText {
		return c.Text[i]
	}
	return c.Format(i)
}
