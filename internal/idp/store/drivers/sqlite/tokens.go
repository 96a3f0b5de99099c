package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

type tokensRepo struct {
	db DBTX
}

const tokenColumns = `id, type, hash, client_id, user_id, scopes, data, expires_at, created_at`

func scanToken(row interface{ Scan(...any) error }) (domain.Token, error) {
	var (
		t                domain.Token
		typ, scopes, raw string
		clientID, userID sql.NullString
		expiresAt        sql.NullInt64
		createdAt        int64
	)
	err := row.Scan(&t.ID, &typ, &t.Hash, &clientID, &userID, &scopes, &raw, &expiresAt, &createdAt)
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}

	t.Type = domain.TokenType(typ)
	t.ClientID = mapNullString(clientID)
	t.UserID = mapNullString(userID)
	t.Scopes = splitFields(scopes)
	t.ExpiresAt = mapNullUnix(expiresAt)
	t.CreatedAt = fromUnix(createdAt)
	if raw != "" && raw != "{}" {
		if err := json.Unmarshal([]byte(raw), &t.Data); err != nil {
			return domain.Token{}, err
		}
	}
	return t, nil
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.Token) error {
	data := []byte("{}")
	if len(t.Data) > 0 {
		var err error
		if data, err = json.Marshal(t.Data); err != nil {
			return err
		}
	}

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.Hash, mapStringNull(t.ClientID), mapStringNull(t.UserID),
		joinFields(t.Scopes), string(data), mapUnixNull(t.ExpiresAt), unix(createdAt),
	)
	return mapConstraint(err)
}

func (r *tokensRepo) GetTokenByHash(
	ctx context.Context,
	typ domain.TokenType,
	hash string,
	now time.Time,
) (domain.Token, error) {
	return scanToken(r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM tokens
		WHERE type = ? AND hash = ? AND (expires_at IS NULL OR expires_at > ?)
		LIMIT 1`,
		string(typ), hash, unix(now),
	))
}

func (r *tokensRepo) DeleteTokenByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
	return err
}

func (r *tokensRepo) DeleteTokensByHash(ctx context.Context, hash string, types ...domain.TokenType) (int64, error) {
	query := `DELETE FROM tokens WHERE hash = ?`
	args := []any{hash}
	if len(types) > 0 {
		query += ` AND type IN (?` + strings.Repeat(`, ?`, len(types)-1) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	return r.exec(ctx, query, args...)
}

func (r *tokensRepo) DeleteTokensForClientUser(ctx context.Context, clientID, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM tokens WHERE client_id = ? AND user_id = ?`, clientID, userID)
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at <= ?`, unix(now))
}

func (r *tokensRepo) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
