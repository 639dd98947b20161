package repository

import (
	"context"
	"fmt"

	"crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `id, first_name, last_name, email, phone, company_name, source, status, owner_id, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	var status string
	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.CompanyName, &l.Source,
		&status, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt,
	)
	l.Status = domain.LeadStatus(status)
	return l, err
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM crm_leads WHERE id = $1`, id))
	if err != nil {
		return Lead{}, notFoundOr(err, "lead", "get lead")
	}
	return lead, nil
}

func (r *Repository) CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO crm_leads (first_name, last_name, email, phone, company_name, source, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+leadColumns,
		params.FirstName, params.LastName, params.Email, params.Phone, params.CompanyName, params.Source, params.OwnerID,
	))
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

func (r *Repository) UpdateLead(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	if params.IsEmpty() {
		return r.GetLead(ctx, id)
	}
	return updateLead(ctx, r.pool, id, params)
}

func updateLead(ctx context.Context, q querier, id uuid.UUID, params UpdateLeadParams) (Lead, error) {

	var status *string
	if params.Status != nil {
		s := string(*params.Status)
		status = &s
	}

	lead, err := scanLead(q.QueryRow(ctx, `
		UPDATE crm_leads SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			email = COALESCE($4, email),
			phone = COALESCE($5, phone),
			company_name = COALESCE($6, company_name),
			source = COALESCE($7, source),
			status = COALESCE($8, status),
			owner_id = COALESCE($9, owner_id),
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, params.FirstName, params.LastName, params.Email, params.Phone, params.CompanyName,
		params.Source, status, params.OwnerID,
	))
	if err != nil {
		return Lead{}, notFoundOr(err, "lead", "update lead")
	}
	return lead, nil
}
