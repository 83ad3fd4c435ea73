package validation

import (
	"fmt"
	"strconv"
)

func outsideLength(n int, min, max *int) bool {
	return (min != nil && n < *min) || (max != nil && n > *max)
}

func intRange(min, max *int64) string {
	lo, hi := "-inf", "+inf"
	if min != nil {
		lo = strconv.FormatInt(*min, 10)
	}
	if max != nil {
		hi = strconv.FormatInt(*max, 10)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}

func floatRange(min, max *float64) string {
	lo, hi := "-inf", "+inf"
	if min != nil {
		lo = strconv.FormatFloat(*min, 'g', -1, 64)
	}
	if max != nil {
		hi = strconv.FormatFloat(*max, 'g', -1, 64)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}

func lengthRange(min, max *int) string {
	lo, hi := "0", "unbounded"
	if min != nil {
		lo = strconv.Itoa(*min)
	}
	if max != nil {
		hi = strconv.Itoa(*max)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}
