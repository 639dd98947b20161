package handler

import (
	"crm_backend/internal/pipeline/conversion"
	"crm_backend/internal/pipeline/domain"
	"crm_backend/internal/pipeline/lineage"
	"crm_backend/internal/pipeline/management"
	"crm_backend/internal/pipeline/transport"
	"crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/leads
func (h *Handler) CreateLead(c *gin.Context) {
	var req transport.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lead, err := h.mgmt.CreateLead(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, lead)
}

// GET /api/v1/leads/:id
func (h *Handler) GetLead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.mgmt.GetLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

// PATCH /api/v1/leads/:id
func (h *Handler) UpdateLead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lead, err := h.mgmt.UpdateLead(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

// GET /api/v1/leads/:id/tasks
func (h *Handler) ListLeadTasks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	tasks, err := h.mgmt.ListLeadTasks(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, tasks)
}

// POST /api/v1/leads/:id/promote
// With relink set, the lead's conversation history is moved onto the new opportunity.
func (h *Handler) PromoteLead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.PromoteLeadRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	stage, _ := domain.ParseStage(req.Stage)
	ctx := c.Request.Context()
	res, err := h.converter.PromoteLead(ctx, id, conversion.PromoteLeadInput{
		Stage:        stage,
		ScheduleDate: req.ScheduleDate,
		Title:        req.Title,
		ValueCents:   req.ValueCents,
		Currency:     req.Currency,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.PromoteLeadResponse{
		Lead:         management.ToLeadResponse(res.Lead),
		Opportunity:  management.ToOpportunityResponse(res.Opportunity),
		Tasks:        management.ToTaskResponses(res.Tasks),
		Conversation: management.ToConversationResponse(res.Conversation),
	}
	if req.Relink {
		n, err := h.linker.RelinkAll(ctx,
			lineage.Source{FromLeadID: &res.Lead.ID},
			lineage.Targets{OpportunityID: &res.Opportunity.ID},
		)
		if httpkit.HandleError(c, err) {
			return
		}
		resp.Relinked = &n
	}

	httpkit.Created(c, resp)
}
