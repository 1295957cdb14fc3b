package record

// Table is the result of a read query: ordered columns plus rows.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// NewTable builds a table from records, deriving the column order.
func NewTable(rows []Record) *Table {
	return &Table{Columns: Columns(rows), Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Values returns the rows as string cells in column order, for rendering.
// Missing cells render as empty strings.
func (t *Table) Values(format func(any) string) [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			if v, ok := row[col]; ok && v != nil {
				cells[i] = format(v)
			}
		}
		out = append(out, cells)
	}
	return out
}
