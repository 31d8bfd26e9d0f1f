package placement

import "math"

const (
	// defaultConfidence applies when only one level produced evidence.
	defaultConfidence = 0.7
	// noDataConfidence applies when no answers could be scored.
	noDataConfidence = 0.5

	confidenceAdjust = 0.2
	confidenceFloor  = 0.3

	strongAccuracy = 80.0
	weakAccuracy   = 50.0
)

// LevelScore is accuracy plus a bonus of five per point of level weight,
// which favours the harder level when accuracies are close.
func LevelScore(level Level, t Tally) float64 {
	return t.Accuracy() + float64(level.Points()*5)
}

// Determine recommends a level and a confidence in [0, 1] from per-level
// tallies and the overall accuracy percentage.
//
// Exact score ties go to the higher level. A test with no correct answer
// at all places the user at A1 regardless of score bonuses.
func Determine(tallies map[Level]Tally, overallAccuracy float64) (Level, float64) {
	var (
		best                     Level
		bestScore                = math.Inf(-1)
		minScore, maxScore       = math.Inf(1), math.Inf(-1)
		levelsWithData, anyRight int
	)

	for _, level := range Ladder {
		t := tallies[level]
		if t.Total == 0 {
			continue
		}
		levelsWithData++
		anyRight += t.Correct

		score := LevelScore(level, t)
		if score >= bestScore {
			best, bestScore = level, score
		}
		minScore = math.Min(minScore, score)
		maxScore = math.Max(maxScore, score)
	}

	if levelsWithData == 0 {
		return DefaultLevel, noDataConfidence
	}
	if anyRight == 0 {
		best = DefaultLevel
	}

	confidence := defaultConfidence
	if levelsWithData > 1 {
		confidence = 1 - (maxScore-minScore)/maxScore
	}

	switch {
	case overallAccuracy >= strongAccuracy:
		confidence = math.Min(confidence+confidenceAdjust, 1)
	case overallAccuracy < weakAccuracy:
		confidence = math.Max(confidence-confidenceAdjust, confidenceFloor)
	}

	return best, math.Max(0, math.Min(confidence, 1))
}

// Areas labels each level with data as weak (accuracy below 50%) or strong
// (80% or above). Both lists follow ladder order.
func Areas(tallies map[Level]Tally) (weak, strong []Level) {
	weak, strong = []Level{}, []Level{}
	for _, level := range Ladder {
		t := tallies[level]
		if t.Total == 0 {
			continue
		}
		switch acc := t.Accuracy(); {
		case acc >= strongAccuracy:
			strong = append(strong, level)
		case acc < weakAccuracy:
			weak = append(weak, level)
		}
	}
	return weak, strong
}
