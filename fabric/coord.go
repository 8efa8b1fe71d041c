package fabric

import "fmt"

// CoreCoord maps a linear core index to its (row, col) position in a grid
// with the given number of columns.
func CoreCoord(index, cols int) (row, col int) {
	return index / cols, index % cols
}

// CoreIndex maps a (row, col) position back to a linear core index.
func CoreIndex(row, col, cols int) int {
	return row*cols + col
}

// CoordName returns a printable name of a core position.
func CoordName(row, col int) string {
	return fmt.Sprintf("(%d,%d)", row, col)
}
