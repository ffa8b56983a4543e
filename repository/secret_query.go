package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"secretsManagement/models"
)

// likeEscaper escapes LIKE wildcards so the pattern matches as a plain substring.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchSecrets returns secrets whose value or type contains pattern, oldest first.
// Matching is case-insensitive for ASCII letters only (SQLite LIKE semantics).
// A blank pattern fails with ErrValidation.
func (s *Store) SearchSecrets(ctx context.Context, pattern string) (secrets []models.Secret, err error) {
	defer s.observe("search_secrets", time.Now(), &err)
	return s.searchSecrets(ctx, nil, pattern)
}

// SearchSecretsByUser is SearchSecrets restricted to one owner.
func (s *Store) SearchSecretsByUser(ctx context.Context, ownerID int64, pattern string) (secrets []models.Secret, err error) {
	defer s.observe("search_secrets_by_user", time.Now(), &err)
	return s.searchSecrets(ctx, &ownerID, pattern)
}

func (s *Store) searchSecrets(ctx context.Context, ownerID *int64, pattern string) ([]models.Secret, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: search pattern is empty", ErrValidation)
	}
	like := "%" + likeEscaper.Replace(pattern) + "%"

	var where []string
	var args []any
	where = append(where, `(secret_value LIKE ? ESCAPE '\' OR secret_type LIKE ? ESCAPE '\')`)
	args = append(args, like, like)
	if ownerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *ownerID)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + secretColumns + ` FROM secrets WHERE `)
	sb.WriteString(strings.Join(where, " AND "))
	sb.WriteString(` ORDER BY created_at ASC, id ASC`)

	return s.selectSecrets(ctx, sb.String(), args...)
}
