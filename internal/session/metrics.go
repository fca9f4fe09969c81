package session

import (
	"math"
	"strings"
	"time"
)

const (
	AltitudeStart = 50.0
	AltitudeMin   = 10.0
	AltitudeMax   = 90.0

	altitudeClimb = 0.5
	altitudeDrop  = 2.0
	altitudeDecay = 0.2

	// minMinutes keeps WPM finite on the very first keystroke.
	minMinutes = 0.01
)

// Accuracy is the rounded percentage of input runes that match the text at
// the same index. Empty input is 100.
func Accuracy(input, text string) int {
	in := []rune(input)
	if len(in) == 0 {
		return 100
	}
	ref := []rune(text)
	correct := 0
	for i, r := range in {
		if i < len(ref) && ref[i] == r {
			correct++
		}
	}
	return int(math.Round(float64(correct) / float64(len(in)) * 100))
}

// WordCount counts whitespace-delimited non-empty tokens.
func WordCount(input string) int {
	return len(strings.Fields(input))
}

// WPM is words per elapsed minute, rounded.
func WPM(words int, elapsed time.Duration) int {
	minutes := elapsed.Minutes()
	if minutes < minMinutes {
		minutes = minMinutes
	}
	return int(math.Round(float64(words) / minutes))
}

// IsCorrectPrefix reports whether input matches the start of text exactly.
func IsCorrectPrefix(input, text string) bool {
	return strings.HasPrefix(text, input)
}

// Progress is input length over text length as a percentage, capped at 100.
func Progress(input, text string) float64 {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	p := float64(len([]rune(input))) / float64(n) * 100
	return math.Min(p, 100)
}

func clampAltitude(a float64) float64 {
	return math.Max(AltitudeMin, math.Min(AltitudeMax, a))
}
