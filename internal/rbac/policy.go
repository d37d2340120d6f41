package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
)

// Admin surface objects and actions.
const (
	ObjectUsers     = "users"
	ObjectAudit     = "audit"
	ObjectTelemetry = "telemetry"

	ActionRead   = "read"
	ActionManage = "manage"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (r.act == p.act || p.act == "manage")
`

var defaultPolicies = [][]string{
	{string(AppAdmin), ObjectUsers, ActionManage},
	{string(AppAdmin), ObjectAudit, ActionManage},
	{string(AppAdmin), ObjectTelemetry, ActionManage},
	{string(AppDeveloper), ObjectAudit, ActionRead},
	{string(AppDeveloper), ObjectTelemetry, ActionRead},
}

// Policy is the application-level capability table for admin tooling.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("load policy model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	for _, rule := range defaultPolicies {
		if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", rule, err)
		}
	}
	return &Policy{enforcer: enforcer}, nil
}

// Allow reports whether the app role may perform action on object. Enforcer
// errors deny.
func (p *Policy) Allow(appRole, object, action string) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	ok, err := p.enforcer.Enforce(string(NormalizeAppRole(appRole)), object, action)
	return err == nil && ok
}
