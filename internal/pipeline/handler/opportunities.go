package handler

import (
	"crm_backend/internal/pipeline/lineage"
	"crm_backend/internal/pipeline/management"
	"crm_backend/internal/pipeline/transport"
	"crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/opportunities
func (h *Handler) CreateOpportunity(c *gin.Context) {
	var req transport.CreateOpportunityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.mgmt.CreateOpportunity(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, res)
}

// GET /api/v1/opportunities/:id
func (h *Handler) GetOpportunity(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	detail, err := h.mgmt.OpportunityDetail(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, detail)
}

// PATCH /api/v1/opportunities/:id
func (h *Handler) UpdateOpportunity(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateOpportunityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.mgmt.UpdateOpportunity(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

// POST /api/v1/opportunities/:id/stage
func (h *Handler) Transition(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.mgmt.Transition(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

// GET /api/v1/opportunities/:id/tasks
func (h *Handler) ListOpportunityTasks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	tasks, err := h.mgmt.ListOpportunityTasks(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, tasks)
}

// POST /api/v1/opportunities/:id/convert
// With relink set, the opportunity's conversation history is attached to the
// new client and company.
func (h *Handler) ConvertOpportunity(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.ConvertOpportunityRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	res, err := h.converter.PromoteOpportunity(ctx, id)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ConvertOpportunityResponse{
		Opportunity:  management.ToOpportunityResponse(res.Opportunity),
		Client:       management.ToClientResponse(res.Client),
		Conversation: management.ToConversationResponse(res.Conversation),
	}
	targets := lineage.Targets{ClientID: &res.Client.ID}
	if res.Company != nil {
		company := management.ToCompanyResponse(*res.Company)
		resp.Company = &company
		targets.CompanyID = &res.Company.ID
	}
	if res.Lead != nil {
		lead := management.ToLeadResponse(*res.Lead)
		resp.Lead = &lead
	}

	if req.Relink {
		sources := []lineage.Source{{FromOpportunityID: &res.Opportunity.ID}}
		if res.Opportunity.LeadID != nil {
			sources = append(sources, lineage.Source{FromLeadID: res.Opportunity.LeadID})
		}
		var total int64
		for _, source := range sources {
			n, err := h.linker.RelinkAll(ctx, source, targets)
			if httpkit.HandleError(c, err) {
				return
			}
			total += n
		}
		resp.Relinked = &total
	}

	httpkit.Created(c, resp)
}
