package handler

import (
	"net/http"

	"crm_backend/internal/pipeline/lineage"
	"crm_backend/internal/pipeline/management"
	"crm_backend/internal/pipeline/transport"
	"crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/tasks
func (h *Handler) CreateTask(c *gin.Context) {
	var req transport.CreateTaskRequest
	if !h.bindJSON(c, &req) {
		return
	}

	task, err := h.mgmt.CreateTask(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, task)
}

// PATCH /api/v1/tasks/:id/status
func (h *Handler) UpdateTaskStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateTaskStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	task, err := h.mgmt.UpdateTaskStatus(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, task)
}

// POST /api/v1/conversations
func (h *Handler) CreateConversation(c *gin.Context) {
	var req transport.CreateConversationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rec, err := h.mgmt.CreateConversation(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, rec)
}

// GET /api/v1/conversations
func (h *Handler) ListConversations(c *gin.Context) {
	var req transport.ListConversationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.validate(c, &req) {
		return
	}

	list, err := h.mgmt.ListConversations(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, list)
}

// PATCH /api/v1/conversations/:id
func (h *Handler) UpdateConversation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateConversationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rec, err := h.mgmt.UpdateConversation(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rec)
}

// POST /api/v1/conversations/:id/relink
func (h *Handler) RelinkOne(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.RelinkOneRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rec, err := h.linker.RelinkOne(c.Request.Context(), id, lineage.Targets{
		OpportunityID: req.OpportunityID,
		ClientID:      req.ClientID,
		CompanyID:     req.CompanyID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, management.ToConversationResponse(rec))
}

// POST /api/v1/conversations/relink
func (h *Handler) RelinkAll(c *gin.Context) {
	var req transport.RelinkAllRequest
	if !h.bindJSON(c, &req) {
		return
	}

	n, err := h.linker.RelinkAll(c.Request.Context(),
		lineage.Source{FromLeadID: req.FromLeadID, FromOpportunityID: req.FromOpportunityID},
		lineage.Targets{OpportunityID: req.ToOpportunityID, ClientID: req.ToClientID, CompanyID: req.ToCompanyID},
	)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RelinkAllResponse{Updated: n})
}

// GET /api/v1/clients/:id
func (h *Handler) GetClient(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	client, err := h.mgmt.GetClient(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, client)
}
