package service

import (
	"fmt"
	"math"
)

// FormatDuration 分钟数格式化为 m:ss
func FormatDuration(minutes float64) string {
	if minutes < 0 || math.IsNaN(minutes) {
		minutes = 0
	}
	total := int(math.Round(minutes * 60))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
