package gamestore

import (
	"math"
	"time"
)

const (
	DefaultQuestionPoints = 1000
	DefaultTimeLimit      = 20 * time.Second
)

// Score awards a correct answer its full points at 0ms, decaying linearly to
// half at the time limit. Wrong answers score zero.
func Score(correct bool, points int, timeLimit time.Duration, timeToAnswerMs int64) int {
	if !correct || points <= 0 {
		return 0
	}
	if timeLimit <= 0 {
		return points
	}
	limitMs := float64(timeLimit.Milliseconds())
	elapsed := math.Min(math.Max(float64(timeToAnswerMs), 0), limitMs)
	factor := 1 - 0.5*(elapsed/limitMs)
	return int(math.Round(float64(points) * factor))
}
