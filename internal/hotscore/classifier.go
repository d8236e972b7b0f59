// Package hotscore maps a meme's hot score onto a popularity level.
package hotscore

import "sort"

type Level string

const (
	LevelNormal   Level = "normal"
	LevelPopular  Level = "popular"
	LevelHot      Level = "hot"
	LevelTrending Level = "trending"
	LevelViral    Level = "viral"
)

// Thresholds is the minimum hot score of each level above normal.
type Thresholds struct {
	Popular  float64 `koanf:"popular"`
	Hot      float64 `koanf:"hot"`
	Trending float64 `koanf:"trending"`
	Viral    float64 `koanf:"viral"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Popular: 50, Hot: 100, Trending: 500, Viral: 1000}
}

type Classifier struct {
	// ordered from the highest threshold down
	bands []band
}

type band struct {
	level Level
	min   float64
}

func NewClassifier(t Thresholds) *Classifier {
	bands := []band{
		{LevelPopular, t.Popular},
		{LevelHot, t.Hot},
		{LevelTrending, t.Trending},
		{LevelViral, t.Viral},
	}
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].min > bands[j].min })
	return &Classifier{bands: bands}
}

// Level returns the highest level whose threshold score reaches.
func (c *Classifier) Level(score float64) Level {
	for _, b := range c.bands {
		if score >= b.min {
			return b.level
		}
	}
	return LevelNormal
}

// MinScore returns the threshold of a level; normal and unknown levels are 0.
func (c *Classifier) MinScore(level Level) float64 {
	for _, b := range c.bands {
		if b.level == level {
			return b.min
		}
	}
	return 0
}
