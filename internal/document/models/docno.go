package models

import "fmt"

// FormatDocNo renders a sequence number as PREFIX-NNN/YEAR. Numbers past 999
// keep all their digits.
func FormatDocNo(t DocType, number int64, year int) string {
	return fmt.Sprintf("%s-%03d/%d", t.Prefix(), number, year)
}
