package services

import (
	"regexp"
	"sort"
)

// wordRegexp matches a maximal run of ASCII word characters. Anything else
// (whitespace, punctuation, apostrophes, symbols) separates words.
var wordRegexp = regexp.MustCompile(`\w+`)

// ExtractWords splits a title into its word tokens, preserving case and
// order. "Cat & Dog's Toy!" yields Cat, Dog, s, Toy.
func ExtractWords(title string) []string {
	return wordRegexp.FindAllString(title, -1)
}

// Median returns the middle value of values after sorting a copy ascending.
// For an even count it is the floor of the mean of the two middle values.
// An empty input yields 0.
func Median(values []int64) int64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]int64, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	middle := n / 2
	if n%2 == 1 {
		return sorted[middle]
	}
	return floorDiv2(sorted[middle-1] + sorted[middle])
}

func floorDiv2(sum int64) int64 {
	q := sum / 2
	if sum < 0 && sum%2 != 0 {
		q--
	}
	return q
}
