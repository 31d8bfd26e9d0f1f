package placement

import (
	"fmt"
	"strings"
)

// Level is a CEFR proficiency tier on the placement ladder.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
)

// Ladder is the ordered difficulty progression, easiest first.
var Ladder = []Level{LevelA1, LevelA2, LevelB1, LevelB2}

// DefaultLevel is the level every unplaced user implicitly holds.
const DefaultLevel = LevelA1

// ParseLevel accepts "b1", " B1 " and the curriculum form "LEVEL_B1".
func ParseLevel(s string) (Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "LEVEL_")
	for _, l := range Ladder {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// Valid reports whether l is on the ladder.
func (l Level) Valid() bool { return l.index() >= 0 }

// Points is the question weight for the level: 1 for A1 up to 4 for B2.
func (l Level) Points() int { return l.index() + 1 }

// TimeLimitSeconds is the advisory answer time for a question at this level.
func (l Level) TimeLimitSeconds() int {
	switch l {
	case LevelA1:
		return 30
	case LevelA2:
		return 45
	case LevelB1:
		return 60
	case LevelB2:
		return 90
	}
	return 0
}

// Next returns the level after l and false when l is the top of the ladder.
func (l Level) Next() (Level, bool) {
	i := l.index()
	if i < 0 || i == len(Ladder)-1 {
		return "", false
	}
	return Ladder[i+1], true
}

func (l Level) index() int {
	for i, x := range Ladder {
		if x == l {
			return i
		}
	}
	return -1
}
