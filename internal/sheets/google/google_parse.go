package google

import (
	"fmt"
	"strconv"
	"strings"

	ports "expensetracker/internal/sheets"
)

// findTransactionRow returns the zero-based index of the row whose first cell
// holds id, or -1.
func findTransactionRow(values [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i
		}
	}
	return -1
}

func hasHeader(values [][]any) bool {
	if len(values) == 0 || len(values[0]) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(fmt.Sprint(values[0][0])), ports.Header[0])
}
