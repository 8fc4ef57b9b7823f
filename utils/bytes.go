package utils

import (
	"math"
	"strconv"
)

var byteUnits = [...]string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count in base-1024 units, picking the largest
// unit whose scaled value is at least 1, rounded to two decimals with
// trailing zeros dropped. Zero renders as "0 Bytes".
func FormatBytes(n int64) string {
	if n == 0 {
		return "0 Bytes"
	}

	sign := ""
	value := float64(n)
	if n < 0 {
		sign = "-"
		value = -value
	}

	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	rounded := math.Round(value*100) / 100
	return sign + strconv.FormatFloat(rounded, 'f', -1, 64) + " " + byteUnits[unit]
}
