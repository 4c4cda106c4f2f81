package services

import "math"

// Score sums every answer value. Values are not range-checked; negative or
// out-of-scale numbers count as given. A sum that does not fit in an int is
// rejected instead of wrapping.
func Score(answers map[string]int) (int, error) {
	total := 0
	for _, v := range answers {
		if (v > 0 && total > math.MaxInt-v) || (v < 0 && total < math.MinInt-v) {
			return 0, NewInvalidError("answers sum overflows the score range")
		}
		total += v
	}
	return total, nil
}
