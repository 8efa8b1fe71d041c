package ctrl

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Grid renders a status array as a table with one line per row of cores.
func Grid(statuses []Status, cols int) string {
	if cols <= 0 {
		cols = len(statuses)
	}

	t := table.NewWriter()
	t.SetTitle("Core status")

	header := table.Row{"Row"}
	for c := 0; c < cols; c++ {
		header = append(header, fmt.Sprintf("C%d", c))
	}
	t.AppendHeader(header)

	for start := 0; start < len(statuses); start += cols {
		row := table.Row{fmt.Sprintf("R%d", start/cols)}
		for i := start; i < start+cols && i < len(statuses); i++ {
			row = append(row, statuses[i].String())
		}
		t.AppendRow(row)
	}

	return t.Render()
}

// Count returns how many statuses are in each state.
func Count(statuses []Status) map[Status]int {
	counts := make(map[Status]int)
	for _, s := range statuses {
		counts[s]++
	}
	return counts
}
