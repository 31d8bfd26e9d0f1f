package placement

import (
	"math"
	"slices"
	"testing"
)

func TestDetermine_NoData(t *testing.T) {
	level, conf := Determine(map[Level]Tally{}, 0)
	if level != LevelA1 || conf != 0.5 {
		t.Errorf("Determine(empty) = %s, %v; want A1, 0.5", level, conf)
	}
}

func TestDetermine_SingleLevel(t *testing.T) {
	tests := []struct {
		name     string
		tally    Tally
		accuracy float64
		wantConf float64
	}{
		{"middling", Tally{Correct: 3, Total: 5}, 60, 0.7},
		{"strong", Tally{Correct: 5, Total: 5}, 100, 0.9},
		{"weak", Tally{Correct: 1, Total: 5}, 20, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, conf := Determine(map[Level]Tally{LevelA2: tt.tally}, tt.accuracy)
			if level != LevelA2 {
				t.Errorf("level = %s, want A2", level)
			}
			if math.Abs(conf-tt.wantConf) > 1e-9 {
				t.Errorf("confidence = %v, want %v", conf, tt.wantConf)
			}
		})
	}
}

func TestDetermine_PrefersHarderLevelAtSimilarAccuracy(t *testing.T) {
	tallies := map[Level]Tally{
		LevelA1: {Correct: 7, Total: 10},
		LevelB1: {Correct: 7, Total: 10},
	}
	level, conf := Determine(tallies, 70)

	if level != LevelB1 {
		t.Errorf("level = %s, want B1", level)
	}
	// Scores 75 and 85: 1 - 10/85.
	want := 1 - 10.0/85.0
	if math.Abs(conf-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", conf, want)
	}
}

func TestDetermine_TieGoesToHigherLevel(t *testing.T) {
	// A1 at 100% scores 105; A2 at 95% scores 105.
	tallies := map[Level]Tally{
		LevelA1: {Correct: 20, Total: 20},
		LevelA2: {Correct: 19, Total: 20},
	}
	if got := LevelScore(LevelA1, tallies[LevelA1]); got != LevelScore(LevelA2, tallies[LevelA2]) {
		t.Fatalf("test setup: scores differ (%v)", got)
	}
	level, _ := Determine(tallies, 97.5)
	if level != LevelA2 {
		t.Errorf("level = %s, want A2 on a tie", level)
	}
}

func TestDetermine_AllWrongFallsBackToA1(t *testing.T) {
	tallies := map[Level]Tally{
		LevelA1: {Correct: 0, Total: 3},
		LevelA2: {Correct: 0, Total: 3},
		LevelB2: {Correct: 0, Total: 2},
	}
	level, conf := Determine(tallies, 0)
	if level != LevelA1 {
		t.Errorf("level = %s, want A1", level)
	}
	if conf < confidenceFloor || conf > 1 {
		t.Errorf("confidence = %v, want within [0.3, 1]", conf)
	}
}

func TestDetermine_ConfidenceBounded(t *testing.T) {
	for a1 := 0; a1 <= 4; a1++ {
		for a2 := 0; a2 <= 4; a2++ {
			for b2 := 0; b2 <= 4; b2++ {
				tallies := map[Level]Tally{
					LevelA1: {Correct: a1, Total: 4},
					LevelA2: {Correct: a2, Total: 4},
					LevelB2: {Correct: b2, Total: 4},
				}
				overall := float64(a1+a2+b2) / 12 * 100
				_, conf := Determine(tallies, overall)
				if conf < 0 || conf > 1 {
					t.Fatalf("Determine(%v) confidence = %v, out of [0,1]", tallies, conf)
				}
			}
		}
	}
}

func TestAreas(t *testing.T) {
	tallies := map[Level]Tally{
		LevelA1: {Correct: 4, Total: 5}, // 80: strong
		LevelA2: {Correct: 3, Total: 5}, // 60: unlabeled
		LevelB1: {Correct: 2, Total: 5}, // 40: weak
		LevelB2: {Correct: 0, Total: 0}, // no data
	}
	weak, strong := Areas(tallies)
	if !slices.Equal(weak, []Level{LevelB1}) {
		t.Errorf("weak = %v, want [B1]", weak)
	}
	if !slices.Equal(strong, []Level{LevelA1}) {
		t.Errorf("strong = %v, want [A1]", strong)
	}
}
