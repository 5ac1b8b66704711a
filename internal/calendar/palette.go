package calendar

import (
	"sort"
	"strings"
)

// FallbackColor is used for shifts whose owner has no usable handle.
const FallbackColor = "#cccccc"

var palette = [...]string{
	"#4caf50",
	"#2196f3",
	"#ff9800",
	"#9c27b0",
	"#f44336",
	"#00bcd4",
	"#8bc34a",
	"#e91e63",
	"#ffc107",
	"#607d8b",
}

// Palette returns a copy of the display palette in assignment order.
func Palette() []string { return append([]string(nil), palette[:]...) }

// AssignColors maps each distinct non-blank handle to a palette color. Handles
// are trimmed and sorted first, so the result depends only on the set.
func AssignColors(handles []string) map[string]string {
	seen := make(map[string]struct{}, len(handles))
	distinct := make([]string, 0, len(handles))
	for _, h := range handles {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		distinct = append(distinct, h)
	}
	sort.Strings(distinct)

	out := make(map[string]string, len(distinct))
	for i, h := range distinct {
		out[h] = palette[i%len(palette)]
	}
	return out
}
