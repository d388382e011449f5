package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldSchema is the ordered list of field names to extract. Names are
// compared exactly; case and whitespace matter.
type FieldSchema []string

// DefaultFieldSchema returns the fields used when no mapsheet or schema file
// is supplied.
func DefaultFieldSchema() FieldSchema {
	return FieldSchema{
		"Issuer",
		"ISIN",
		"Series",
		"Tranche number",
		"Issue Currency",
		"Settlement Currency",
		"Aggregate Nominal Amount",
		"Specified Denomination",
		"Calculation Amount",
		"Issue Price",
		"Trade Date",
		"Issue Date",
		"Maturity Date",
		"Redeemable Certificates",
		"Interest Type",
		"Day Count Fraction",
		"Type of Security",
	}
}

// Contains reports whether name is one of the schema fields.
func (s FieldSchema) Contains(name string) bool {
	for _, f := range s {
		if f == name {
			return true
		}
	}
	return false
}

// StructuredRecord maps every schema field to a value or nil (null).
// Iteration and encoding follow schema order.
type StructuredRecord struct {
	Schema FieldSchema
	Values map[string]any
}

// NewStructuredRecord returns a record with every field set to null.
func NewStructuredRecord(schema FieldSchema) *StructuredRecord {
	r := &StructuredRecord{Schema: schema, Values: make(map[string]any, len(schema))}
	for _, f := range schema {
		r.Values[f] = nil
	}
	return r
}

// Get returns the value of field, or nil.
func (r *StructuredRecord) Get(field string) any {
	return r.Values[field]
}

// Set assigns a value to a schema field. Unknown fields are ignored.
func (r *StructuredRecord) Set(field string, v any) {
	if r.Schema.Contains(field) {
		r.Values[field] = v
	}
}

// Filled counts non-null fields.
func (r *StructuredRecord) Filled() int {
	n := 0
	for _, f := range r.Schema {
		if r.Values[f] != nil {
			n++
		}
	}
	return n
}

// Row renders the record as spreadsheet cells in schema order, writing na for null.
func (r *StructuredRecord) Row(na string) []string {
	row := make([]string, len(r.Schema))
	for i, f := range r.Schema {
		v := r.Values[f]
		if v == nil {
			row[i] = na
			continue
		}
		row[i] = fmt.Sprint(v)
	}
	return row
}

// Table returns the record as a one-row table.
func (r *StructuredRecord) Table() Table {
	return Table{Header: append([]string(nil), r.Schema...), Rows: [][]string{r.Row("null")}}
}

// MarshalJSON encodes the record as an object with keys in schema order.
func (r *StructuredRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Schema {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[f])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Table is a header plus string rows, as read from CSV or XLSX.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}
