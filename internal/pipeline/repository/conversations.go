package repository

import (
	"context"
	"fmt"

	"crm_backend/internal/pipeline/domain"
	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, lead_id, opportunity_id, client_id, company_id, kind, content,
	outcome, next_step, follow_up_date, author_id, created_at`

// selectorClause matches $n..$n+3 against the four reference columns; a NULL
// parameter disables its condition.
func selectorClause(first int) string {
	return fmt.Sprintf(`($%[1]d::uuid IS NULL OR lead_id = $%[1]d::uuid)
		AND ($%[2]d::uuid IS NULL OR opportunity_id = $%[2]d::uuid)
		AND ($%[3]d::uuid IS NULL OR client_id = $%[3]d::uuid)
		AND ($%[4]d::uuid IS NULL OR company_id = $%[4]d::uuid)`, first, first+1, first+2, first+3)
}

func selectorArgs(s ConversationSelector) []any {
	return []any{s.LeadID, s.OpportunityID, s.ClientID, s.CompanyID}
}

func scanConversation(row pgx.Row) (ConversationRecord, error) {
	var c ConversationRecord
	var kind string
	err := row.Scan(
		&c.ID, &c.LeadID, &c.OpportunityID, &c.ClientID, &c.CompanyID, &kind, &c.Content,
		&c.Outcome, &c.NextStep, &c.FollowUpDate, &c.AuthorID, &c.CreatedAt,
	)
	c.Kind = domain.ConversationKind(kind)
	return c, err
}

func (r *Repository) CreateConversation(ctx context.Context, params CreateConversationParams) (ConversationRecord, error) {
	return insertConversation(ctx, r.pool, params)
}

func insertConversation(ctx context.Context, q querier, params CreateConversationParams) (ConversationRecord, error) {
	if !params.HasReference() {
		return ConversationRecord{}, apperr.InvalidArgument("conversation must reference a lead, opportunity, client or company")
	}
	kind := params.Kind
	if kind == "" {
		kind = domain.ConversationNote
	}

	rec, err := scanConversation(q.QueryRow(ctx, `
		INSERT INTO crm_conversations (
			lead_id, opportunity_id, client_id, company_id, kind, content,
			outcome, next_step, follow_up_date, author_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+conversationColumns,
		params.LeadID, params.OpportunityID, params.ClientID, params.CompanyID, string(kind), params.Content,
		params.Outcome, params.NextStep, params.FollowUpDate, params.AuthorID,
	))
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("create conversation: %w", err)
	}
	return rec, nil
}

func (r *Repository) GetConversation(ctx context.Context, id uuid.UUID) (ConversationRecord, error) {
	rec, err := scanConversation(r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM crm_conversations WHERE id = $1
	`, id))
	if err != nil {
		return ConversationRecord{}, notFoundOr(err, "conversation", "get conversation")
	}
	return rec, nil
}

// ListConversations returns matching records, newest first.
func (r *Repository) ListConversations(ctx context.Context, selector ConversationSelector) ([]ConversationRecord, error) {
	if selector.IsEmpty() {
		return nil, apperr.InvalidArgument("conversation selector is empty")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM crm_conversations
		WHERE `+selectorClause(1)+`
		ORDER BY created_at DESC, id DESC
	`, selectorArgs(selector)...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return collect(rows, scanConversation)
}

func (r *Repository) UpdateConversationContent(ctx context.Context, id uuid.UUID, edits ConversationContentEdits) (ConversationRecord, error) {
	if edits.IsEmpty() {
		return r.GetConversation(ctx, id)
	}
	rec, err := scanConversation(r.pool.QueryRow(ctx, `
		UPDATE crm_conversations SET
			content = COALESCE($2, content),
			outcome = COALESCE($3, outcome),
			next_step = COALESCE($4, next_step),
			follow_up_date = COALESCE($5, follow_up_date)
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, edits.Content, edits.Outcome, edits.NextStep, edits.FollowUpDate,
	))
	if err != nil {
		return ConversationRecord{}, notFoundOr(err, "conversation", "update conversation")
	}
	return rec, nil
}

func (r *Repository) RelinkConversation(ctx context.Context, id uuid.UUID, links ConversationLinks) (ConversationRecord, error) {
	rec, err := scanConversation(r.pool.QueryRow(ctx, `
		UPDATE crm_conversations SET
			opportunity_id = COALESCE($2, opportunity_id),
			client_id = COALESCE($3, client_id),
			company_id = COALESCE($4, company_id)
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, links.OpportunityID, links.ClientID, links.CompanyID,
	))
	if err != nil {
		return ConversationRecord{}, notFoundOr(err, "conversation", "relink conversation")
	}
	return rec, nil
}

// BulkRelinkConversations overwrites the supplied links on every record
// matching selector in a single statement and returns the affected row count.
func (r *Repository) BulkRelinkConversations(ctx context.Context, selector ConversationSelector, links ConversationLinks) (int64, error) {
	if selector.IsEmpty() {
		return 0, apperr.InvalidArgument("relink selector is empty")
	}
	args := append([]any{links.OpportunityID, links.ClientID, links.CompanyID}, selectorArgs(selector)...)
	tag, err := r.pool.Exec(ctx, `
		UPDATE crm_conversations SET
			opportunity_id = COALESCE($1, opportunity_id),
			client_id = COALESCE($2, client_id),
			company_id = COALESCE($3, company_id)
		WHERE `+selectorClause(4), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk relink conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}
