package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
)

type clientsRepo struct {
	db DBTX
}

const clientColumns = `id, name, secret_hash, type, scopes, default_scopes, grant_types, response_types,
	redirect_uris, cors_origins, allow_uri_wildcards, skip_consent, owner_id, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (domain.Client, error) {
	var (
		c                                   domain.Client
		secretHash, ownerID                 sql.NullString
		typ                                 string
		scopes, defaults, grants, responses string
		redirects, origins                  string
		createdAt, updatedAt                int64
	)
	err := row.Scan(&c.ID, &c.Name, &secretHash, &typ, &scopes, &defaults, &grants, &responses,
		&redirects, &origins, &c.AllowURIWildcards, &c.SkipConsent, &ownerID, &createdAt, &updatedAt)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}

	c.SecretHash = mapNullString(secretHash)
	c.Type = domain.ClientType(typ)
	c.Scopes = splitFields(scopes)
	c.DefaultScopes = splitFields(defaults)
	c.GrantTypes = splitFields(grants)
	c.ResponseTypes = splitList(responses)
	c.RedirectURIs = splitFields(redirects)
	c.CORSOrigins = splitFields(origins)
	c.OwnerID = mapNullString(ownerID)
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return c, nil
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	return scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	now := unix(time.Now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, mapStringNull(c.SecretHash), string(c.Type),
		joinFields(c.Scopes), joinFields(c.DefaultScopes), joinFields(c.GrantTypes), joinList(c.ResponseTypes),
		joinFields(c.RedirectURIs), joinFields(c.CORSOrigins), c.AllowURIWildcards, c.SkipConsent,
		mapStringNull(c.OwnerID), now, now,
	)
	return mapConstraint(err)
}

func (r *clientsRepo) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET
			name = ?, secret_hash = ?, type = ?, scopes = ?, default_scopes = ?, grant_types = ?,
			response_types = ?, redirect_uris = ?, cors_origins = ?, allow_uri_wildcards = ?,
			skip_consent = ?, owner_id = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, mapStringNull(c.SecretHash), string(c.Type), joinFields(c.Scopes), joinFields(c.DefaultScopes),
		joinFields(c.GrantTypes), joinList(c.ResponseTypes), joinFields(c.RedirectURIs), joinFields(c.CORSOrigins),
		c.AllowURIWildcards, c.SkipConsent, mapStringNull(c.OwnerID), unix(time.Now()), c.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *clientsRepo) DeleteClient(ctx context.Context, clientID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, clientID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *clientsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
