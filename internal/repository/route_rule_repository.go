package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/astro-gateway/internal/domain"
)

// Querier is the subset of pgxpool.Pool used by repositories.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RouteRuleRepository reads guard rules maintained by the back-office.
type RouteRuleRepository interface {
	ListEnabled(ctx context.Context) ([]domain.RouteRule, error)
}

type routeRuleRepository struct {
	db Querier
}

// NewRouteRuleRepository returns a Postgres-backed implementation.
func NewRouteRuleRepository(db Querier) RouteRuleRepository {
	return &routeRuleRepository{db: db}
}

func (r *routeRuleRepository) ListEnabled(ctx context.Context) ([]domain.RouteRule, error) {
	const query = `
        SELECT id, prefix, visibility, allowed_roles, role_redirects, fallback, priority
        FROM route_rules WHERE enabled ORDER BY priority, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.RouteRule
	for rows.Next() {
		var (
			id        int64
			rule      domain.RouteRule
			roles     []string
			redirects map[string]string
		)
		if err := rows.Scan(
			&id,
			&rule.Prefix,
			&rule.Visibility,
			&roles,
			&redirects,
			&rule.Fallback,
			&rule.Priority,
		); err != nil {
			return nil, err
		}
		rule.ID = strconv.FormatInt(id, 10)
		for _, raw := range roles {
			if role := domain.Role(raw); role.Valid() {
				rule.AllowedRoles = append(rule.AllowedRoles, role)
			}
		}
		if len(redirects) > 0 {
			rule.RoleRedirects = make(map[domain.Role]string, len(redirects))
			for raw, loc := range redirects {
				if role := domain.Role(raw); role.Valid() {
					rule.RoleRedirects[role] = loc
				}
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
