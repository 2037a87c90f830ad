package model

// Field positions of a RawRow.
const (
	FieldName = iota
	FieldClose
	FieldDateTime
	FieldVolume
	FieldExchange
	RowFields
)

// RawRow is one table row as the extractor found it: display name, closing
// price, combined date/time, volume and the exchange label, in that order.
type RawRow []string

// Field returns the i-th field or "" when the row is shorter.
func (r RawRow) Field(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

func (r RawRow) Name() string     { return r.Field(FieldName) }
func (r RawRow) Close() string    { return r.Field(FieldClose) }
func (r RawRow) DateTime() string { return r.Field(FieldDateTime) }
func (r RawRow) Volume() string   { return r.Field(FieldVolume) }
func (r RawRow) Exchange() string { return r.Field(FieldExchange) }
