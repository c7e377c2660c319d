package services

import (
	"reflect"
	"testing"
)

func TestExtractWords(t *testing.T) {
	tests := []struct {
		title string
		want  []string
	}{
		{"Cat & Dog's Toy!", []string{"Cat", "Dog", "s", "Toy"}},
		{"Red Car", []string{"Red", "Car"}},
		{"  handmade   mug, 12oz  ", []string{"handmade", "mug", "12oz"}},
		{"snake_case-and-kebab", []string{"snake_case", "and", "kebab"}},
		{"Café Crème", []string{"Caf", "Cr", "me"}},
		{"!!!", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := ExtractWords(tt.title)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractWords(%q) = %q; want %q", tt.title, got, tt.want)
		}
	}
}

func TestExtractWordsCaseSensitive(t *testing.T) {
	got := ExtractWords("Cat cat CAT")
	want := []string{"Cat", "cat", "CAT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q; want %q", got, want)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		values []int64
		want   int64
	}{
		{[]int64{5, 1, 3}, 3},
		{[]int64{4, 2, 8, 6}, 5},
		{[]int64{10, 20}, 15},
		{[]int64{1, 2}, 1},
		{[]int64{7}, 7},
		{[]int64{-3, 0}, -2},
		{nil, 0},
	}

	for _, tt := range tests {
		got := Median(tt.values)
		if got != tt.want {
			t.Errorf("Median(%v) = %d; want %d", tt.values, got, tt.want)
		}
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	values := []int64{5, 1, 3}
	Median(values)
	if !reflect.DeepEqual(values, []int64{5, 1, 3}) {
		t.Errorf("input was mutated: %v", values)
	}
}
