package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const clientColumns = `id, name, email, phone, company_id, opportunity_id, owner_id, created_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CompanyID, &c.OpportunityID, &c.OwnerID, &c.CreatedAt)
	return c, err
}

func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	client, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM crm_clients WHERE id = $1`, id))
	if err != nil {
		return Client{}, notFoundOr(err, "client", "get client")
	}
	return client, nil
}

func (r *Repository) CreateClient(ctx context.Context, params CreateClientParams) (Client, error) {
	return insertClient(ctx, r.pool, params)
}

func insertClient(ctx context.Context, q querier, params CreateClientParams) (Client, error) {
	client, err := scanClient(q.QueryRow(ctx, `
		INSERT INTO crm_clients (name, email, phone, company_id, opportunity_id, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+clientColumns,
		params.Name, params.Email, params.Phone, params.CompanyID, params.OpportunityID, params.OwnerID,
	))
	if err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM crm_companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return Company{}, notFoundOr(err, "company", "get company")
	}
	return c, nil
}

func (r *Repository) CreateCompany(ctx context.Context, name string) (Company, error) {
	return insertCompany(ctx, r.pool, name)
}

func insertCompany(ctx context.Context, q querier, name string) (Company, error) {
	var c Company
	err := q.QueryRow(ctx, `
		INSERT INTO crm_companies (name) VALUES ($1)
		RETURNING id, name, created_at
	`, name).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return Company{}, fmt.Errorf("create company: %w", err)
	}
	return c, nil
}
