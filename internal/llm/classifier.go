package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/model"
)

const classifierSystemPrompt = `You review exam questions.
Score how well-formed, unambiguous and answerable the question is as quality_score (0..1).
Estimate your certainty as confidence_score (0..1).
Name the knowledge dimension it exercises: factual, conceptual, procedural or metacognitive.
Name the Bloom's cognitive level (remembering, understanding, applying, analyzing, evaluating, creating)
and the difficulty (easy, average, difficult) you would assign.
Reply ONLY with JSON:
{"quality_score":0.0,"confidence_score":0.0,"knowledge_dimension":"...","cognitive_level":"...","difficulty":"..."}`

type classifyReply struct {
	QualityScore       *float64 `json:"quality_score"`
	ConfidenceScore    float64  `json:"confidence_score"`
	KnowledgeDimension string   `json:"knowledge_dimension"`
	CognitiveLevel     string   `json:"cognitive_level"`
	Difficulty         string   `json:"difficulty"`
}

// Classifier scores question quality through a Completer.
type Classifier struct {
	completer Completer
}

// NewClassifier creates a Classifier.
func NewClassifier(c Completer) *Classifier {
	return &Classifier{completer: c}
}

// Score classifies one question text.
func (c *Classifier) Score(ctx context.Context, text string, qt model.QuestionType, topic string) (assembly.Classification, error) {
	user := fmt.Sprintf("Topic: %s\nQuestion type: %s\nQuestion:\n%s", topic, qt, text)
	txt, err := c.completer.Complete(ctx, classifierSystemPrompt, user, 0)
	if err != nil {
		return assembly.Classification{}, fmt.Errorf("classify: %w", err)
	}
	return parseClassification(txt)
}

func parseClassification(txt string) (assembly.Classification, error) {
	var reply classifyReply
	if err := json.Unmarshal([]byte(StripCodeFences(txt)), &reply); err != nil {
		return assembly.Classification{}, fmt.Errorf("classify: bad JSON: %w", err)
	}
	if reply.QualityScore == nil {
		return assembly.Classification{}, fmt.Errorf("classify: quality_score missing")
	}
	out := assembly.Classification{
		QualityScore:       clampScore(*reply.QualityScore),
		ConfidenceScore:    clampScore(reply.ConfidenceScore),
		KnowledgeDimension: parseDimension(reply.KnowledgeDimension),
	}
	if l := model.CognitiveLevel(strings.ToLower(strings.TrimSpace(reply.CognitiveLevel))); l.Valid() {
		out.CognitiveLevel = l
	}
	if d := model.Difficulty(strings.ToLower(strings.TrimSpace(reply.Difficulty))); d.Valid() {
		out.Difficulty = d
	}
	return out, nil
}
