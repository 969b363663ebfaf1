package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"sentiment-dashboard/pkg/types"
)

// Route-level policy only. Row visibility is enforced by the store.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

var defaultPolicies = [][]string{
	{types.RoleUser, "/api/auth/*", "^(GET|POST)$"},
	{types.RoleUser, "/api/posts*", "^GET$"},
	{types.RoleUser, "/api/comments*", "^GET$"},
	{types.RoleUser, "/api/sentiments*", "^GET$"},
	{types.RoleUser, "/api/users*", "^GET$"},
	{types.RoleUser, "/api/pages*", "^GET$"},
	{types.RoleUser, "/api/dashboard/*", "^GET$"},
	{types.RoleUser, "/api/scrape*", "^(GET|POST)$"},
	{types.RoleAdmin, "/api/admin/*", "^(GET|POST|PUT|DELETE)$"},
}

// Authorizer decides which roles may call which routes.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewAuthorizer() (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	for _, p := range defaultPolicies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("failed to add policy %v: %w", p, err)
		}
	}
	// admins inherit everything a user may do
	if _, err := enforcer.AddGroupingPolicy(types.RoleAdmin, types.RoleUser); err != nil {
		return nil, fmt.Errorf("failed to add role inheritance: %w", err)
	}

	return &Authorizer{enforcer: enforcer}, nil
}

// Allowed reports whether role may call method on path.
func (a *Authorizer) Allowed(role, path, method string) (bool, error) {
	ok, err := a.enforcer.Enforce(role, path, method)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	return ok, nil
}
