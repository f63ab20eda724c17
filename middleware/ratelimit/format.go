package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// sem notação científica para valores comuns
func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// formatSeconds arredonda para cima: Retry-After 0 faria o cliente repetir na hora.
func formatSeconds(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return formatInt(s)
}
