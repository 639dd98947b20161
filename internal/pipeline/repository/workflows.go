package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm_backend/internal/pipeline/domain"
	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StageChange is a stage write together with the tasks and activity note it
// produces. Stores apply it all-or-nothing.
type StageChange struct {
	OpportunityID uuid.UUID
	Update        UpdateOpportunityParams
	Tasks         []CreateTaskParams
	Note          CreateConversationParams
}

// StageChangeResult holds the rows written by ApplyStageChange.
type StageChangeResult struct {
	Opportunity Opportunity
	Tasks       []Task
	Note        ConversationRecord
}

// ClientConversion creates the client for an opportunity and links it back.
// The company is created only when CompanyName is set. The note receives the
// new client and company ids. Stores apply it all-or-nothing.
type ClientConversion struct {
	OpportunityID uuid.UUID
	CompanyName   string
	Client        CreateClientParams
	LeadID        *uuid.UUID
	Note          CreateConversationParams
}

// ClientConversionResult holds the rows written by ConvertToClient. Lead is
// nil when the conversion names no lead or the lead no longer exists.
type ClientConversionResult struct {
	Opportunity Opportunity
	Client      Client
	Company     *Company
	Lead        *Lead
	Note        ConversationRecord
}

// ApplyStageChange writes the stage, its tasks and its note in one transaction.
func (r *Repository) ApplyStageChange(ctx context.Context, change StageChange) (StageChangeResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return StageChangeResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	opp, err := updateOpportunity(ctx, tx, change.OpportunityID, change.Update)
	if err != nil {
		return StageChangeResult{}, err
	}
	tasks, err := insertTasks(ctx, tx, change.Tasks)
	if err != nil {
		return StageChangeResult{}, err
	}
	note, err := insertConversation(ctx, tx, change.Note)
	if err != nil {
		return StageChangeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return StageChangeResult{}, fmt.Errorf("apply stage change: %w", err)
	}
	return StageChangeResult{Opportunity: opp, Tasks: tasks, Note: note}, nil
}

// ConvertToClient creates the company and client, links the client to the
// opportunity, marks the lead won and writes the note in one transaction.
// An opportunity that already has a client is a Conflict.
func (r *Repository) ConvertToClient(ctx context.Context, conv ClientConversion) (ClientConversionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ClientConversionResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var result ClientConversionResult
	if name := strings.TrimSpace(conv.CompanyName); name != "" {
		company, err := insertCompany(ctx, tx, name)
		if err != nil {
			return ClientConversionResult{}, err
		}
		result.Company = &company
		conv.Client.CompanyID = &company.ID
		conv.Note.CompanyID = &company.ID
	}

	result.Client, err = insertClient(ctx, tx, conv.Client)
	if err != nil {
		return ClientConversionResult{}, err
	}
	conv.Note.ClientID = &result.Client.ID

	result.Opportunity, err = linkClient(ctx, tx, conv.OpportunityID, result.Client.ID)
	if err != nil {
		return ClientConversionResult{}, err
	}

	if conv.LeadID != nil {
		won := domain.LeadStatusWon
		lead, err := updateLead(ctx, tx, *conv.LeadID, UpdateLeadParams{Status: &won})
		switch {
		case err == nil:
			result.Lead = &lead
		case !apperr.Is(err, apperr.KindNotFound):
			return ClientConversionResult{}, err
		}
	}

	result.Note, err = insertConversation(ctx, tx, conv.Note)
	if err != nil {
		return ClientConversionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ClientConversionResult{}, fmt.Errorf("convert to client: %w", err)
	}
	return result, nil
}

// linkClient sets client_id only while it is still empty.
func linkClient(ctx context.Context, q querier, opportunityID, clientID uuid.UUID) (Opportunity, error) {
	opp, err := scanOpportunity(q.QueryRow(ctx, `
		UPDATE crm_opportunities SET
			client_id = $2,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND client_id IS NULL
		RETURNING `+opportunityColumns, opportunityID, clientID))
	if err == nil {
		return opp, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, fmt.Errorf("link client: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM crm_opportunities WHERE id = $1)`, opportunityID).Scan(&exists); err != nil {
		return Opportunity{}, fmt.Errorf("link client: %w", err)
	}
	if !exists {
		return Opportunity{}, apperr.NotFound("opportunity not found").WithOp("link client")
	}
	return Opportunity{}, apperr.Conflict("opportunity has already been converted to a client").WithOp("link client")
}
