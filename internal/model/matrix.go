package model

// Matrix is a dense row-major float32 matrix. Rows are frames.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

func (m *Matrix) At(r, c int) float32 {
	return m.Data[r*m.Cols+c]
}

func (m *Matrix) Set(r, c int, v float32) {
	m.Data[r*m.Cols+c] = v
}

// Row returns a view of row r; writes go through to m.
func (m *Matrix) Row(r int) []float32 {
	return m.Data[r*m.Cols : (r+1)*m.Cols]
}

// PadOrTruncate returns a copy with exactly rows rows: extra rows are
// dropped, missing rows are zero.
func (m *Matrix) PadOrTruncate(rows int) *Matrix {
	out := NewMatrix(rows, m.Cols)
	copy(out.Data, m.Data[:min(rows, m.Rows)*m.Cols])
	return out
}

// Equal reports whether both matrices have the same shape and identical
// contents.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols || len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// Sum adds up every cell.
func (m *Matrix) Sum() float64 {
	var s float64
	for _, v := range m.Data {
		s += float64(v)
	}
	return s
}
