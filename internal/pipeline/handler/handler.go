package handler

import (
	"context"
	"net/http"

	"crm_backend/internal/pipeline/conversion"
	"crm_backend/internal/pipeline/lineage"
	"crm_backend/internal/pipeline/management"
	"crm_backend/internal/pipeline/repository"
	"crm_backend/platform/httpkit"
	"crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Converter runs the conversion workflows.
type Converter interface {
	PromoteLead(ctx context.Context, leadID uuid.UUID, input conversion.PromoteLeadInput) (conversion.PromoteLeadResult, error)
	PromoteOpportunity(ctx context.Context, opportunityID uuid.UUID) (conversion.PromoteOpportunityResult, error)
}

// Relinker rewrites conversation references.
type Relinker interface {
	RelinkOne(ctx context.Context, conversationID uuid.UUID, targets lineage.Targets) (repository.ConversationRecord, error)
	RelinkAll(ctx context.Context, source lineage.Source, targets lineage.Targets) (int64, error)
}

type Handler struct {
	mgmt      *management.Service
	converter Converter
	linker    Relinker
	val       *validator.Validator
}

func New(mgmt *management.Service, converter Converter, linker Relinker, val *validator.Validator) *Handler {
	return &Handler{mgmt: mgmt, converter: converter, linker: linker, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/pipeline/stages", h.ListStages)

	leads := rg.Group("/leads")
	leads.POST("", h.CreateLead)
	leads.GET("/:id", h.GetLead)
	leads.PATCH("/:id", h.UpdateLead)
	leads.POST("/:id/promote", h.PromoteLead)
	leads.GET("/:id/tasks", h.ListLeadTasks)

	opps := rg.Group("/opportunities")
	opps.POST("", h.CreateOpportunity)
	opps.GET("/:id", h.GetOpportunity)
	opps.PATCH("/:id", h.UpdateOpportunity)
	opps.POST("/:id/stage", h.Transition)
	opps.POST("/:id/convert", h.ConvertOpportunity)
	opps.GET("/:id/tasks", h.ListOpportunityTasks)

	tasks := rg.Group("/tasks")
	tasks.POST("", h.CreateTask)
	tasks.PATCH("/:id/status", h.UpdateTaskStatus)

	convs := rg.Group("/conversations")
	convs.POST("", h.CreateConversation)
	convs.GET("", h.ListConversations)
	convs.POST("/relink", h.RelinkAll)
	convs.PATCH("/:id", h.UpdateConversation)
	convs.POST("/:id/relink", h.RelinkOne)

	rg.GET("/clients/:id", h.GetClient)
}

// GET /api/v1/pipeline/stages
func (h *Handler) ListStages(c *gin.Context) {
	httpkit.OK(c, h.mgmt.ListStages())
}

// bindJSON decodes and validates the body, writing the 400 response itself.
func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	return h.validate(c, req)
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted.
func (h *Handler) bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return h.validate(c, req)
	}
	return h.bindJSON(c, req)
}

func (h *Handler) validate(c *gin.Context, req interface{}) bool {
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return false
	}
	return true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}
