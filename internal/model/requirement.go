package model

import "fmt"

// Upper bounds on requested item counts.
const (
	MaxRequirementCount = 1000
	MaxTestItems        = 10000
)

// CognitiveLevel is a Bloom's taxonomy level.
type CognitiveLevel string

const (
	LevelRemembering   CognitiveLevel = "remembering"
	LevelUnderstanding CognitiveLevel = "understanding"
	LevelApplying      CognitiveLevel = "applying"
	LevelAnalyzing     CognitiveLevel = "analyzing"
	LevelEvaluating    CognitiveLevel = "evaluating"
	LevelCreating      CognitiveLevel = "creating"
)

// CognitiveLevels lists the six levels in taxonomy order.
var CognitiveLevels = []CognitiveLevel{
	LevelRemembering,
	LevelUnderstanding,
	LevelApplying,
	LevelAnalyzing,
	LevelEvaluating,
	LevelCreating,
}

// Valid reports whether l is one of the six Bloom's levels.
func (l CognitiveLevel) Valid() bool {
	for _, v := range CognitiveLevels {
		if v == l {
			return true
		}
	}
	return false
}

// Difficulty is the difficulty bucket of a question.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyAverage   Difficulty = "average"
	DifficultyDifficult Difficulty = "difficult"
)

// Difficulties lists the buckets from easiest to hardest.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyAverage, DifficultyDifficult}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyAverage, DifficultyDifficult:
		return true
	}
	return false
}

// Bucket identifies one (topic, level, difficulty) cell of a TOS.
type Bucket struct {
	Topic          string         `json:"topic"`
	CognitiveLevel CognitiveLevel `json:"cognitive_level"`
	Difficulty     Difficulty     `json:"difficulty"`
}

func (b Bucket) String() string {
	return fmt.Sprintf("%s/%s/%s", b.Topic, b.CognitiveLevel, b.Difficulty)
}

// Requirement is one resolved line of a TOS: how many items a bucket needs.
type Requirement struct {
	Topic          string         `json:"topic" binding:"required,max=255"`
	CognitiveLevel CognitiveLevel `json:"cognitive_level" binding:"required,cognitive_level"`
	Difficulty     Difficulty     `json:"difficulty" binding:"required,difficulty"`
	Count          int            `json:"count" binding:"min=0,max=1000"`
}

// Bucket returns the cell this requirement targets.
func (r Requirement) Bucket() Bucket {
	return Bucket{Topic: r.Topic, CognitiveLevel: r.CognitiveLevel, Difficulty: r.Difficulty}
}

// Matches reports whether q falls into the requirement's bucket.
func (r Requirement) Matches(q *Question) bool {
	return q.Topic == r.Topic && q.CognitiveLevel == r.CognitiveLevel && q.Difficulty == r.Difficulty
}

// TOSTopic is one row of a Table of Specification.
// Items maps each level to the item numbers placed on it; Counts is the
// numeric shorthand used when item numbers have not been laid out yet.
type TOSTopic struct {
	Name   string                   `json:"topic"`
	Hours  float64                  `json:"hours,omitempty"`
	Items  map[CognitiveLevel][]int `json:"items,omitempty" binding:"omitempty,dive,max=1000"`
	Counts map[CognitiveLevel]int   `json:"counts,omitempty" binding:"omitempty,dive,max=1000"`
}

// LevelCount returns how many items the topic places on level.
func (t TOSTopic) LevelCount(level CognitiveLevel) int {
	if nums, ok := t.Items[level]; ok {
		return len(nums)
	}
	return t.Counts[level]
}

// TOSMatrix is the topic x cognitive level blueprint of an exam.
type TOSMatrix struct {
	Topics []TOSTopic `json:"topics" binding:"required,min=1,dive"`
}

// TotalItems sums every level count across all topics.
func (m TOSMatrix) TotalItems() int {
	total := 0
	for _, t := range m.Topics {
		for _, l := range CognitiveLevels {
			total += t.LevelCount(l)
		}
	}
	return total
}
