package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/model"
)

const generatorSystemPrompt = `You write exam questions for a teacher's test bank.
Every question must target exactly the requested topic, Bloom's cognitive level and difficulty.
Questions in one reply must be clearly different from each other.
Reply ONLY with JSON of the form:
{"questions":[{"question_text":"...","question_type":"mcq|true_false|short_answer|essay",
"choices":{"A":"...","B":"..."},"correct_answer":"...",
"knowledge_dimension":"factual|conceptual|procedural|metacognitive","confidence":0.0}]}
choices is required for mcq (keys A-D) and true_false (keys True, False), omitted otherwise.
confidence is your 0..1 estimate that the question matches the requested level.`

type generatedQuestion struct {
	Text               string            `json:"question_text"`
	Type               string            `json:"question_type"`
	Choices            map[string]string `json:"choices"`
	CorrectAnswer      string            `json:"correct_answer"`
	KnowledgeDimension string            `json:"knowledge_dimension"`
	Confidence         float64           `json:"confidence"`
}

type generateReply struct {
	Questions []generatedQuestion `json:"questions"`
}

// Generator produces new questions through a Completer.
type Generator struct {
	completer   Completer
	temperature float32
}

// NewGenerator creates a Generator. A little temperature keeps batches varied.
func NewGenerator(c Completer) *Generator {
	return &Generator{completer: c, temperature: 0.7}
}

// Generate asks for req.Count questions of one bucket and type.
func (g *Generator) Generate(ctx context.Context, req assembly.GenerateRequest) ([]model.Question, error) {
	user := fmt.Sprintf(
		"Write %d %s question(s).\nTopic: %s\nCognitive level: %s\nDifficulty: %s",
		req.Count, req.Type, req.Topic, req.CognitiveLevel, req.Difficulty,
	)
	txt, err := g.completer.Complete(ctx, generatorSystemPrompt, user, g.temperature)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return parseGenerated(txt, req)
}

// parseGenerated decodes a generator reply. Blank questions are dropped;
// bucket fields are left to the caller, which pins them to the request.
func parseGenerated(txt string, req assembly.GenerateRequest) ([]model.Question, error) {
	var reply generateReply
	if err := json.Unmarshal([]byte(StripCodeFences(txt)), &reply); err != nil {
		// Some models answer with a bare array.
		var bare []generatedQuestion
		if err2 := json.Unmarshal([]byte(StripCodeFences(txt)), &bare); err2 != nil {
			return nil, fmt.Errorf("generate: bad JSON: %w", err)
		}
		reply.Questions = bare
	}

	out := make([]model.Question, 0, len(reply.Questions))
	for _, gq := range reply.Questions {
		text := strings.TrimSpace(gq.Text)
		if text == "" {
			continue
		}
		qt := model.QuestionType(strings.ToLower(strings.TrimSpace(gq.Type)))
		if !qt.Valid() {
			qt = req.Type
		}
		out = append(out, model.Question{
			Text:               text,
			Type:               qt,
			Choices:            gq.Choices,
			CorrectAnswer:      strings.TrimSpace(gq.CorrectAnswer),
			KnowledgeDimension: parseDimension(gq.KnowledgeDimension),
			ConfidenceScore:    clampScore(gq.Confidence),
		})
	}
	return out, nil
}

func parseDimension(s string) model.KnowledgeDimension {
	d := model.KnowledgeDimension(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case model.KnowledgeFactual, model.KnowledgeConceptual, model.KnowledgeProcedural, model.KnowledgeMetacognitive:
		return d
	}
	return ""
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
