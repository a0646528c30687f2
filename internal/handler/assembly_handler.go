package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/model"
	"github.com/stemsi/exstem-assembly/internal/response"
	"github.com/stemsi/exstem-assembly/internal/service"
	"github.com/stemsi/exstem-assembly/internal/validator"
)

// AssemblyHandler handles test assembly endpoints.
type AssemblyHandler struct {
	assemblyService *service.AssemblyService
	timeout         time.Duration
	log             zerolog.Logger
}

// NewAssemblyHandler creates a new AssemblyHandler. A positive timeout caps
// how long one assembly request may run.
func NewAssemblyHandler(assemblyService *service.AssemblyService, timeout time.Duration, log zerolog.Logger) *AssemblyHandler {
	return &AssemblyHandler{
		assemblyService: assemblyService,
		timeout:         timeout,
		log:             log.With().Str("component", "assembly_handler").Logger(),
	}
}

// assembleResponse is the body of a successful assembly.
type assembleResponse struct {
	*assembly.Result
	DiversityScore float64 `json:"diversity_score"`
	CoverageScore  float64 `json:"coverage_score"`
	TotalPoints    int     `json:"total_points"`
}

// shortfallResponse is the data payload of a TOS contract violation.
type shortfallResponse struct {
	Required          int                         `json:"required"`
	Selected          int                         `json:"selected"`
	Shortfall         int                         `json:"shortfall"`
	Attempts          int                         `json:"attempts"`
	UnmetRequirements []assembly.UnmetRequirement `json:"unmet_requirements"`
}

// Assemble godoc
// POST /api/v1/assemblies
// Assembles a test from a TOS matrix or an explicit requirement list.
func (h *AssemblyHandler) Assemble(c *gin.Context) {
	var req model.AssembleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.assemblyService.Assemble(ctx, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	body := assembleResponse{Result: result}
	if result.Test != nil {
		body.DiversityScore = result.Test.Metrics.DiversityScore
		body.CoverageScore = result.Test.Metrics.CoverageScore
		body.TotalPoints = result.Test.TotalPoints
	}
	response.Success(c, http.StatusCreated, body)
}

// Resolve godoc
// POST /api/v1/assemblies/resolve
// Previews the requirements a TOS matrix resolves to without assembling.
func (h *AssemblyHandler) Resolve(c *gin.Context) {
	var req model.ResolveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	reqs := h.assemblyService.Resolve(req.TOS)
	if reqs == nil {
		reqs = []model.Requirement{}
	}

	total := 0
	for _, r := range reqs {
		total += r.Count
	}

	response.Success(c, http.StatusOK, gin.H{
		"requirements": reqs,
		"total_items":  total,
	})
}

// GetTest godoc
// GET /api/v1/assemblies/:id
// Returns a stored assembled test.
func (h *AssemblyHandler) GetTest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.assemblyService.GetTest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// GetAnswerKey godoc
// GET /api/v1/assemblies/:id/answer-key
// Returns the answer key of a stored test.
func (h *AssemblyHandler) GetAnswerKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	key, err := h.assemblyService.GetAnswerKey(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test_id": id, "answer_key": key})
}

// fail maps service and pipeline errors onto API error codes.
func (h *AssemblyHandler) fail(c *gin.Context, err error) {
	var cv *assembly.ContractViolation
	switch {
	case errors.As(err, &cv):
		unmet := cv.Unmet
		if unmet == nil {
			unmet = []assembly.UnmetRequirement{}
		}
		response.FailWithData(c, http.StatusUnprocessableEntity, response.ErrContractViolation, shortfallResponse{
			Required:          cv.Required,
			Selected:          cv.Selected,
			Shortfall:         cv.Shortfall,
			Attempts:          cv.Attempts,
			UnmetRequirements: unmet,
		})
	case errors.Is(err, service.ErrAmbiguousSource):
		response.Fail(c, http.StatusBadRequest, response.ErrAmbiguousSource)
	case errors.Is(err, service.ErrMissingSource):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidTOS)
	case errors.Is(err, assembly.ErrNoRequirements):
		response.Fail(c, http.StatusBadRequest, response.ErrNoRequirements)
	case errors.Is(err, service.ErrTestNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrAssemblyCancelled)
	case errors.Is(err, assembly.ErrArtifactPersist):
		h.log.Error().Err(err).Msg("Failed to persist assembled test")
		response.Fail(c, http.StatusInternalServerError, response.ErrArtifactPersist)
	default:
		h.log.Error().Err(err).Msg("Assembly request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
