package services

import (
	"math"
	"strconv"
	"testing"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name    string
		answers map[string]int
		want    int
	}{
		{"nil", nil, 0},
		{"empty", map[string]int{}, 0},
		{"single", map[string]int{"q1": 4}, 4},
		{"sum", map[string]int{"a": 1, "b": 2, "c": 3}, 6},
		{"negative kept", map[string]int{"a": -5, "b": 2}, -3},
		{"out of range kept", map[string]int{"a": 1000, "b": 7}, 1007},
		{"max int", map[string]int{"a": math.MaxInt}, math.MaxInt},
		{"extremes cancel", map[string]int{"a": math.MaxInt, "b": math.MinInt}, -1},
	}
	for _, c := range cases {
		got, err := Score(c.answers)
		if err != nil {
			t.Fatalf("%s: Score(%v) returned error: %v", c.name, c.answers, err)
		}
		if got != c.want {
			t.Fatalf("%s: Score(%v)=%d, want %d", c.name, c.answers, got, c.want)
		}
	}
}

func TestScoreRejectsOverflow(t *testing.T) {
	for _, answers := range []map[string]int{
		{"a": math.MaxInt, "b": 1},
		{"a": math.MinInt, "b": -1},
		{"a": math.MaxInt / 2, "b": math.MaxInt / 2, "c": 2},
	} {
		if _, err := Score(answers); !HasCode(err, ErrorInvalid) {
			t.Fatalf("Score(%v): expected validation error, got %v", answers, err)
		}
	}
}

func TestScoreMatchesSumOfValues(t *testing.T) {
	answers := map[string]int{}
	want := 0
	for i := 0; i < 50; i++ {
		v := (i*7)%11 - 3
		answers[string(rune('A'+i%26))+strconv.Itoa(i)] = v
		want += v
	}
	if got, err := Score(answers); err != nil || got != want {
		t.Fatalf("Score=%d (%v), want %d", got, err, want)
	}
}
