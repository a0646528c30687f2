package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stemsi/exstem-assembly/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest_YAML(t *testing.T) {
	raw := []byte(`
metadata:
  title: Midterm Exam
  points_per_item: 2
tos:
  topics:
    - topic: Loops
      counts:
        applying: 10
    - topic: Arrays
      items:
        remembering: [1, 2, 3]
`)
	req, err := parseRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, "Midterm Exam", req.Metadata.Title)
	assert.Equal(t, 2, req.Metadata.PointsPerItem)
	require.NotNil(t, req.TOS)
	require.Len(t, req.TOS.Topics, 2)
	assert.Equal(t, "Loops", req.TOS.Topics[0].Name)
	assert.Equal(t, 10, req.TOS.Topics[0].LevelCount(model.LevelApplying))
	assert.Equal(t, 3, req.TOS.Topics[1].LevelCount(model.LevelRemembering))
	assert.Equal(t, 13, req.TOS.TotalItems())
}

func TestParseRequest_JSON(t *testing.T) {
	raw := []byte(`{
  "metadata": {"title": "Quiz"},
  "requirements": [
    {"topic": "Loops", "cognitive_level": "applying", "difficulty": "average", "count": 4}
  ]
}`)
	req, err := parseRequest(raw)
	require.NoError(t, err)
	require.Len(t, req.Requirements, 1)
	assert.Equal(t, model.Requirement{
		Topic:          "Loops",
		CognitiveLevel: model.LevelApplying,
		Difficulty:     model.DifficultyAverage,
		Count:          4,
	}, req.Requirements[0])
	assert.Nil(t, req.TOS)
}

func TestParseRequest_Errors(t *testing.T) {
	_, err := parseRequest([]byte(""))
	assert.Error(t, err)

	_, err = parseRequest([]byte("metadata: [unclosed"))
	assert.Error(t, err)

	_, err = loadRequest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDescribeValidation_SortsFields(t *testing.T) {
	err := describeValidation(map[string]string{
		"title": "title is a required field",
		"count": "count must be 0 or greater",
	})
	assert.Equal(t, "invalid request:\n  count: count must be 0 or greater\n  title: title is a required field", err.Error())
}
