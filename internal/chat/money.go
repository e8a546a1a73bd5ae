package chat

import (
	"math"

	"github.com/dustin/go-humanize"
)

// FormatRand renders an absolute amount as R1,234.56.
func FormatRand(amount float64) string {
	return "R" + humanize.FormatFloat("#,###.##", math.Abs(amount))
}
