package vm

import "math"

// Cell is the machine's atomic value: a 32-bit signed integer that doubles as
// an IEEE 754 single-precision float under bit reinterpretation.
//
// Encoding rules:
//   - Integers: the cell holds the value directly
//   - Floats: the cell holds math.Float32bits of the value (never a numeric cast)
//   - Addresses: the cell holds a byte offset into the machine's data segment
type Cell int32

// CellWidth is the size of one cell in bytes.
const CellWidth = 4

// Event return codes understood by the machine's public dispatcher.
const (
	Stop     Cell = 0
	Continue Cell = 1
)

// ---------------------------------------------------------------------------
// Float reinterpretation
// ---------------------------------------------------------------------------

// FloatCell stores f in a cell by reinterpreting its bits.
func FloatCell(f float32) Cell {
	return Cell(int32(math.Float32bits(f)))
}

// Float returns the cell reinterpreted as a float32.
func (c Cell) Float() float32 {
	return math.Float32frombits(uint32(c))
}

// Bool reports whether the cell is nonzero.
func (c Cell) Bool() bool {
	return c != 0
}

// BoolCell returns 1 for true and 0 for false.
func BoolCell(b bool) Cell {
	if b {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Addressing
// ---------------------------------------------------------------------------

// Cells returns the number of cells needed to hold n bytes.
func Cells(n int) int {
	return (n + CellWidth - 1) / CellWidth
}
