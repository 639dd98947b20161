package repository

import (
	"context"
	"errors"
	"fmt"

	"crm_backend/internal/pipeline/domain"
	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const opportunityColumns = `id, title, stage, probability, value_cents, currency, lead_id, client_id, owner_id,
	contact_name, contact_email, contact_phone, company_name, expected_close_date, version, created_at, updated_at`

func scanOpportunity(row pgx.Row) (Opportunity, error) {
	var o Opportunity
	var stage string
	err := row.Scan(
		&o.ID, &o.Title, &stage, &o.Probability, &o.ValueCents, &o.Currency, &o.LeadID, &o.ClientID, &o.OwnerID,
		&o.ContactName, &o.ContactEmail, &o.ContactPhone, &o.CompanyName, &o.ExpectedCloseDate, &o.Version,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Stage = domain.Stage(stage)
	return o, err
}

func (r *Repository) GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error) {
	opp, err := scanOpportunity(r.pool.QueryRow(ctx, `
		SELECT `+opportunityColumns+`
		FROM crm_opportunities
		WHERE id = $1
	`, id))
	if err != nil {
		return Opportunity{}, notFoundOr(err, "opportunity", "get opportunity")
	}
	return opp, nil
}

func (r *Repository) CreateOpportunity(ctx context.Context, params CreateOpportunityParams) (Opportunity, error) {
	opp, err := scanOpportunity(r.pool.QueryRow(ctx, `
		INSERT INTO crm_opportunities (
			title, stage, probability, value_cents, currency, lead_id, owner_id,
			contact_name, contact_email, contact_phone, company_name, expected_close_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+opportunityColumns,
		params.Title, string(params.Stage), domain.ClampProbability(params.Probability), params.ValueCents,
		currencyOrDefault(params.Currency), params.LeadID, params.OwnerID,
		params.ContactName, params.ContactEmail, params.ContactPhone, params.CompanyName, params.ExpectedCloseDate,
	))
	if err != nil {
		return Opportunity{}, fmt.Errorf("create opportunity: %w", err)
	}
	return opp, nil
}

// UpdateOpportunity applies a partial update and bumps the row version.
// An empty update returns the current row without writing.
func (r *Repository) UpdateOpportunity(ctx context.Context, id uuid.UUID, params UpdateOpportunityParams) (Opportunity, error) {
	if params.isEmpty() {
		return r.GetOpportunity(ctx, id)
	}
	return updateOpportunity(ctx, r.pool, id, params)
}

func updateOpportunity(ctx context.Context, q querier, id uuid.UUID, params UpdateOpportunityParams) (Opportunity, error) {

	var stage *string
	if params.Stage != nil {
		s := string(*params.Stage)
		stage = &s
	}
	var probability *int
	if params.Probability != nil {
		p := domain.ClampProbability(*params.Probability)
		probability = &p
	}

	f := params.Fields
	opp, err := scanOpportunity(q.QueryRow(ctx, `
		UPDATE crm_opportunities SET
			title = COALESCE($2, title),
			value_cents = COALESCE($3, value_cents),
			currency = COALESCE($4, currency),
			owner_id = COALESCE($5, owner_id),
			contact_name = COALESCE($6, contact_name),
			contact_email = COALESCE($7, contact_email),
			contact_phone = COALESCE($8, contact_phone),
			company_name = COALESCE($9, company_name),
			expected_close_date = COALESCE($10, expected_close_date),
			stage = COALESCE($11, stage),
			probability = COALESCE($12, probability),
			client_id = COALESCE($13, client_id),
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND ($14::int IS NULL OR version = $14::int)
		RETURNING `+opportunityColumns,
		id, f.Title, f.ValueCents, f.Currency, f.OwnerID, f.ContactName, f.ContactEmail, f.ContactPhone,
		f.CompanyName, f.ExpectedCloseDate, stage, probability, params.ClientID, params.ExpectedVersion,
	))
	if err == nil {
		return opp, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || params.ExpectedVersion == nil {
		return Opportunity{}, notFoundOr(err, "opportunity", "update opportunity")
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM crm_opportunities WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Opportunity{}, fmt.Errorf("update opportunity: %w", err)
	}
	if !exists {
		return Opportunity{}, apperr.NotFound("opportunity not found").WithOp("update opportunity")
	}
	return Opportunity{}, apperr.Conflict("opportunity was modified concurrently").WithOp("update opportunity")
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
