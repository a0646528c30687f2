package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopsBank(n int) []model.Question {
	bank := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		bank = append(bank, bankQuestion("Loops", model.LevelApplying, model.DifficultyAverage, i))
	}
	return bank
}

func assembleBody(count int) gin.H {
	return gin.H{
		"metadata": gin.H{"title": "Midterm Exam", "points_per_item": 2},
		"requirements": []gin.H{
			{"topic": "Loops", "cognitive_level": "applying", "difficulty": "average", "count": count},
		},
	}
}

func TestAssemble_Created(t *testing.T) {
	s := newTestServer(t, loopsBank(6)...)

	w, env := s.do(t, http.MethodPost, "/api/v1/assemblies", assembleBody(3))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Nil(t, env.Error)

	var data struct {
		ArtifactID     uuid.UUID `json:"artifact_id"`
		TotalSelected  int       `json:"total_selected"`
		ExistingCount  int       `json:"existing_count"`
		GeneratedCount int       `json:"generated_count"`
		CoverageScore  float64   `json:"coverage_score"`
		DiversityScore float64   `json:"diversity_score"`
		TotalPoints    int       `json:"total_points"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEqual(t, uuid.Nil, data.ArtifactID)
	assert.Equal(t, 3, data.TotalSelected)
	assert.Equal(t, 3, data.ExistingCount)
	assert.Zero(t, data.GeneratedCount)
	assert.InDelta(t, 1.0, data.CoverageScore, 1e-9)
	assert.Equal(t, 6, data.TotalPoints)
	assert.Contains(t, w.Body.String(), `"unmet_requirements":[]`)

	// The stored test is readable, and so is its answer key.
	w, env = s.do(t, http.MethodGet, "/api/v1/assemblies/"+data.ArtifactID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored struct {
		Test model.AssembledTest `json:"test"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Len(t, stored.Test.Items, 3)
	assert.Equal(t, "Midterm Exam", stored.Test.Metadata.Title)

	w, env = s.do(t, http.MethodGet, "/api/v1/assemblies/"+data.ArtifactID.String()+"/answer-key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var key struct {
		AnswerKey []model.AnswerKeyEntry `json:"answer_key"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &key))
	require.Len(t, key.AnswerKey, 3)
	for i, e := range key.AnswerKey {
		assert.Equal(t, i+1, e.Number)
		assert.Equal(t, "A", e.CorrectAnswer)
	}
}

func TestAssemble_ContractViolation(t *testing.T) {
	s := newTestServer(t, loopsBank(2)...)

	w, env := s.do(t, http.MethodPost, "/api/v1/assemblies", assembleBody(5))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	require.NotNil(t, env.Error)
	assert.Equal(t, "TOS_CONTRACT_VIOLATION", env.Error.Code)

	var data shortfallResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 5, data.Required)
	assert.Equal(t, 2, data.Selected)
	assert.Equal(t, 3, data.Shortfall)
	require.Len(t, data.UnmetRequirements, 1)
	assert.Equal(t, 3, data.UnmetRequirements[0].Missing)

	assert.Empty(t, s.tests.tests, "no artifact on a failed run")
}

func TestAssemble_FromTOS(t *testing.T) {
	var bank []model.Question
	for i := 0; i < 4; i++ {
		bank = append(bank, bankQuestion("Loops", model.LevelApplying, model.DifficultyEasy, i))
		bank = append(bank, bankQuestion("Loops", model.LevelApplying, model.DifficultyAverage, 10+i))
		bank = append(bank, bankQuestion("Loops", model.LevelApplying, model.DifficultyDifficult, 20+i))
	}
	s := newTestServer(t, bank...)

	body := gin.H{
		"metadata": gin.H{"title": "Quiz 1"},
		"tos": gin.H{"topics": []gin.H{
			{"topic": "Loops", "counts": gin.H{"applying": 5}},
		}},
	}
	w, env := s.do(t, http.MethodPost, "/api/v1/assemblies", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		TotalSelected int `json:"total_selected"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 5, data.TotalSelected)
}

func TestAssemble_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body gin.H
		code string
	}{
		{
			name: "missing title",
			body: gin.H{"metadata": gin.H{}, "requirements": assembleBody(1)["requirements"]},
			code: "VALIDATION_ERROR",
		},
		{
			name: "unknown cognitive level",
			body: gin.H{
				"metadata":     gin.H{"title": "Quiz"},
				"requirements": []gin.H{{"topic": "Loops", "cognitive_level": "memorizing", "difficulty": "easy", "count": 1}},
			},
			code: "VALIDATION_ERROR",
		},
		{
			name: "count above limit",
			body: gin.H{
				"metadata":     gin.H{"title": "Quiz"},
				"requirements": []gin.H{{"topic": "Loops", "cognitive_level": "applying", "difficulty": "easy", "count": 9223372036854775807}},
			},
			code: "VALIDATION_ERROR",
		},
		{
			name: "TOS cell above limit",
			body: gin.H{
				"metadata": gin.H{"title": "Quiz"},
				"tos":      gin.H{"topics": []gin.H{{"topic": "Loops", "counts": gin.H{"applying": 5000}}}},
			},
			code: "VALIDATION_ERROR",
		},
		{
			name: "no source",
			body: gin.H{"metadata": gin.H{"title": "Quiz"}},
			code: "INVALID_TOS",
		},
		{
			name: "both sources",
			body: gin.H{
				"metadata":     gin.H{"title": "Quiz"},
				"tos":          gin.H{"topics": []gin.H{{"topic": "Loops", "counts": gin.H{"applying": 1}}}},
				"requirements": assembleBody(1)["requirements"],
			},
			code: "AMBIGUOUS_TOS_SOURCE",
		},
		{
			name: "only zero counts",
			body: gin.H{
				"metadata":     gin.H{"title": "Quiz"},
				"requirements": []gin.H{{"topic": "Loops", "cognitive_level": "applying", "difficulty": "easy", "count": 0}},
			},
			code: "NO_REQUIREMENTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/v1/assemblies", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestResolve(t *testing.T) {
	s := newTestServer(t)

	body := gin.H{"tos": gin.H{"topics": []gin.H{
		{"topic": "Loops", "counts": gin.H{"applying": 10}},
		{"topic": "Arrays", "items": gin.H{"remembering": []int{1, 2}}},
	}}}
	w, env := s.do(t, http.MethodPost, "/api/v1/assemblies/resolve", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Requirements []model.Requirement `json:"requirements"`
		TotalItems   int                 `json:"total_items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 12, data.TotalItems)

	counts := map[model.Difficulty]int{}
	for _, r := range data.Requirements {
		if r.Topic == "Loops" {
			counts[r.Difficulty] = r.Count
		}
	}
	assert.Equal(t, map[model.Difficulty]int{
		model.DifficultyEasy:      3,
		model.DifficultyAverage:   5,
		model.DifficultyDifficult: 2,
	}, counts)
}

func TestGetTest_NotFoundAndInvalidID(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/v1/assemblies/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/assemblies/not-a-uuid/answer-key", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}

// stalledGenerator never answers; it returns only once its context ends.
type stalledGenerator struct{ calls atomic.Int32 }

func (g *stalledGenerator) Generate(ctx context.Context, _ assembly.GenerateRequest) ([]model.Question, error) {
	g.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAssemble_DeadlineCancelsRun(t *testing.T) {
	gen := &stalledGenerator{}
	s := newTestServerWith(t, gen, 50*time.Millisecond, loopsBank(1)...)

	start := time.Now()
	w, env := s.do(t, http.MethodPost, "/api/v1/assemblies", assembleBody(3))
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	require.NotNil(t, env.Error)
	assert.Equal(t, "ASSEMBLY_CANCELLED", env.Error.Code)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Positive(t, gen.calls.Load())
	assert.Empty(t, s.tests.tests, "a cancelled run stores nothing")
	assert.Empty(t, s.questions.usage)
}
