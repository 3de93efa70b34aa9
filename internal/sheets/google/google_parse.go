package google

import (
	"fmt"
	"strconv"
	"strings"
)

// findRowIndex scans a single-column values matrix (as returned by the
// Sheets API for A:A) and returns the 1-based row whose cell equals id.
// Header and blank rows never match. Returns 0 when absent.
func findRowIndex(values [][]interface{}, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

// rowRange addresses columns A..G of one sheet row.
func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:G%d", sheet, row, row)
}
