package processor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Frame is a small column-ordered table of float64 values. Missing values are
// represented as NaN. It is the unit of exchange between raw records, feature
// engineering and the fitted imputer/scaler pipeline.
type Frame struct {
	cols []string
	data map[string][]float64
	rows int
}

// NewFrame creates an empty frame with the given number of rows.
func NewFrame(rows int) *Frame {
	return &Frame{
		data: make(map[string][]float64),
		rows: rows,
	}
}

// FrameFromRecords builds a frame from flat field maps, one row per record.
// The column set is the union of all field names, in first-seen order. Fields
// absent from a record are NaN in that row.
func FrameFromRecords(records []map[string]float64) *Frame {
	f := NewFrame(len(records))
	for _, record := range records {
		for name := range record {
			if !f.Has(name) {
				col := make([]float64, len(records))
				for i := range col {
					col[i] = math.NaN()
				}
				f.setColumn(name, col)
			}
		}
	}
	// Second pass so every column exists before values land.
	for i, record := range records {
		for name, value := range record {
			f.data[name][i] = value
		}
	}
	return f
}

// Rows returns the number of rows.
func (f *Frame) Rows() int { return f.rows }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns the values of the named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.data[name]
	return col, ok
}

// SetColumn adds or replaces a column. The length must match the frame's row
// count.
func (f *Frame) SetColumn(name string, values []float64) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), f.rows)
	}
	f.setColumn(name, values)
	return nil
}

func (f *Frame) setColumn(name string, values []float64) {
	if !f.Has(name) {
		f.cols = append(f.cols, name)
	}
	f.data[name] = values
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {
	out := NewFrame(f.rows)
	for _, name := range f.cols {
		col := make([]float64, f.rows)
		copy(col, f.data[name])
		out.setColumn(name, col)
	}
	return out
}

// Matrix materializes the frame as a dense matrix with columns laid out in the
// given order. Every requested column must exist.
func (f *Frame) Matrix(order []string) (*mat.Dense, error) {
	if f.rows == 0 {
		return nil, fmt.Errorf("frame has no rows")
	}
	m := mat.NewDense(f.rows, len(order), nil)
	for j, name := range order {
		col, ok := f.data[name]
		if !ok {
			return nil, fmt.Errorf("column %s not present in frame", name)
		}
		for i := 0; i < f.rows; i++ {
			m.Set(i, j, col[i])
		}
	}
	return m, nil
}
