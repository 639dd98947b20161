package management

import (
	"crm_backend/internal/pipeline/domain"
	"crm_backend/internal/pipeline/repository"
	"crm_backend/internal/pipeline/transport"
)

func ToStageResponse(def domain.StageDefinition) transport.StageResponse {
	specs := domain.TasksFor(def.Stage)
	tasks := make([]transport.TaskTemplateResponse, len(specs))
	for i, spec := range specs {
		tasks[i] = transport.TaskTemplateResponse{
			Title:     spec.Title,
			Priority:  string(spec.Priority),
			DayOffset: spec.DayOffset,
		}
	}
	return transport.StageResponse{
		Key:         string(def.Stage),
		Label:       def.Label,
		Probability: def.Probability,
		Closed:      def.Closed,
		Legacy:      def.Legacy,
		Tasks:       tasks,
	}
}

func ToLeadResponse(lead repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:          lead.ID,
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		Email:       lead.Email,
		Phone:       lead.Phone,
		CompanyName: lead.CompanyName,
		Source:      lead.Source,
		Status:      string(lead.Status),
		OwnerID:     lead.OwnerID,
		CreatedAt:   lead.CreatedAt,
		UpdatedAt:   lead.UpdatedAt,
	}
}

func ToOpportunityResponse(opp repository.Opportunity) transport.OpportunityResponse {
	return transport.OpportunityResponse{
		ID:                opp.ID,
		Title:             opp.Title,
		Stage:             string(opp.Stage),
		StageLabel:        domain.Label(opp.Stage),
		Probability:       opp.Probability,
		ValueCents:        opp.ValueCents,
		Currency:          opp.Currency,
		LeadID:            opp.LeadID,
		ClientID:          opp.ClientID,
		OwnerID:           opp.OwnerID,
		ContactName:       opp.ContactName,
		ContactEmail:      opp.ContactEmail,
		ContactPhone:      opp.ContactPhone,
		CompanyName:       opp.CompanyName,
		ExpectedCloseDate: opp.ExpectedCloseDate,
		Version:           opp.Version,
		CreatedAt:         opp.CreatedAt,
		UpdatedAt:         opp.UpdatedAt,
	}
}

func ToTaskResponse(task repository.Task) transport.TaskResponse {
	return transport.TaskResponse{
		ID:            task.ID,
		OpportunityID: task.OpportunityID,
		LeadID:        task.LeadID,
		Title:         task.Title,
		Description:   task.Description,
		Priority:      string(task.Priority),
		DueDate:       task.DueDate,
		Status:        string(task.Status),
		OwnerID:       task.OwnerID,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}
}

// ToTaskResponses never returns nil so lists render as [].
func ToTaskResponses(tasks []repository.Task) []transport.TaskResponse {
	out := make([]transport.TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = ToTaskResponse(t)
	}
	return out
}

func ToConversationResponse(rec repository.ConversationRecord) transport.ConversationResponse {
	return transport.ConversationResponse{
		ID:            rec.ID,
		LeadID:        rec.LeadID,
		OpportunityID: rec.OpportunityID,
		ClientID:      rec.ClientID,
		CompanyID:     rec.CompanyID,
		Kind:          string(rec.Kind),
		Content:       rec.Content,
		Outcome:       rec.Outcome,
		NextStep:      rec.NextStep,
		FollowUpDate:  rec.FollowUpDate,
		AuthorID:      rec.AuthorID,
		CreatedAt:     rec.CreatedAt,
	}
}

func ToConversationResponses(recs []repository.ConversationRecord) []transport.ConversationResponse {
	out := make([]transport.ConversationResponse, len(recs))
	for i, r := range recs {
		out[i] = ToConversationResponse(r)
	}
	return out
}

func ToClientResponse(client repository.Client) transport.ClientResponse {
	return transport.ClientResponse{
		ID:            client.ID,
		Name:          client.Name,
		Email:         client.Email,
		Phone:         client.Phone,
		CompanyID:     client.CompanyID,
		OpportunityID: client.OpportunityID,
		OwnerID:       client.OwnerID,
		CreatedAt:     client.CreatedAt,
	}
}

func ToCompanyResponse(company repository.Company) transport.CompanyResponse {
	return transport.CompanyResponse{
		ID:        company.ID,
		Name:      company.Name,
		CreatedAt: company.CreatedAt,
	}
}
