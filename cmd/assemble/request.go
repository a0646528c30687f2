package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/stemsi/exstem-assembly/internal/model"
	"gopkg.in/yaml.v3"
)

// loadRequest reads an assembly request from a JSON or YAML file.
// Both formats use the API's field names.
func loadRequest(path string) (*model.AssembleRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parseRequest(raw)
}

// parseRequest decodes YAML (a superset of JSON) into a generic tree and
// re-encodes it as JSON so the model's json tags apply to both formats.
func parseRequest(raw []byte) (*model.AssembleRequest, error) {
	var tree interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parse request: empty document")
	}

	body, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("normalize request: %w", err)
	}

	var req model.AssembleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}
