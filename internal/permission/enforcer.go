// Package permission decides what each helpdesk role may do. Policies are
// (role, resource, action) triples stored through the casbin GORM adapter in
// the casbin_rule table, with master inheriting admin and admin inheriting
// staff. The default policy is written on first start and can be edited in
// the table afterwards.
package permission

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Resources.
const (
	ResUser         = "user"
	ResReport       = "report"
	ResNotification = "notification"
	ResFAQ          = "faq"
	ResChat         = "chat"
)

// Actions.
const (
	ActRead    = "read"
	ActReadAll = "read_all"
	ActCreate  = "create"
	ActUpdate  = "update"
	ActDelete  = "delete"
	ActLock    = "lock"
	ActSelf    = "self"
	ActSend    = "send"
	ActMonitor = "monitor"
)

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
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// DefaultPolicies are the role grants written into an empty policy table.
var DefaultPolicies = [][]string{
	{"staff", ResReport, ActRead},
	{"staff", ResReport, ActCreate},
	{"staff", ResReport, ActUpdate},
	{"staff", ResReport, ActLock},
	{"staff", ResNotification, ActRead},
	{"staff", ResNotification, ActUpdate},
	{"staff", ResNotification, ActDelete},
	{"staff", ResFAQ, ActRead},
	{"staff", ResChat, ActRead},
	{"staff", ResChat, ActSend},
	{"staff", ResUser, ActSelf},

	{"admin", ResReport, ActReadAll},
	{"admin", ResReport, ActDelete},
	{"admin", ResNotification, ActCreate},
	{"admin", ResFAQ, ActReadAll},
	{"admin", ResFAQ, ActCreate},
	{"admin", ResFAQ, ActUpdate},
	{"admin", ResFAQ, ActDelete},
	{"admin", ResChat, ActMonitor},
	{"admin", ResUser, ActRead},

	{"master", ResUser, ActCreate},
	{"master", ResUser, ActUpdate},
	{"master", ResUser, ActDelete},
}

// DefaultInheritance lists (role, parent) grouping rules.
var DefaultInheritance = [][]string{
	{"admin", "staff"},
	{"master", "admin"},
}

// Enforcer is a concurrency-safe wrapper around a casbin enforcer.
type Enforcer struct {
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
	log      zerolog.Logger
}

// NewEnforcer builds an Enforcer on db, creating the casbin_rule table if
// needed and seeding the default policy when it is empty.
func NewEnforcer(db *gorm.DB, log zerolog.Logger) (*Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	e := &Enforcer{enforcer: enforcer, log: log}
	if err := e.ensureDefaults(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Enforcer) ensureDefaults() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	policies, err := e.enforcer.GetPolicy()
	if err != nil {
		return fmt.Errorf("failed to read policy: %w", err)
	}
	if len(policies) > 0 {
		return nil
	}
	if _, err := e.enforcer.AddPolicies(DefaultPolicies); err != nil {
		return fmt.Errorf("failed to add default policies: %w", err)
	}
	if _, err := e.enforcer.AddGroupingPolicies(DefaultInheritance); err != nil {
		return fmt.Errorf("failed to add role inheritance: %w", err)
	}
	e.log.Info().Int("policies", len(DefaultPolicies)).Msg("default permissions initialized")
	return nil
}

// Enforce reports whether role may perform act on obj.
func (e *Enforcer) Enforce(role, obj, act string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	allowed, err := e.enforcer.Enforce(role, obj, act)
	if err != nil {
		e.log.Error().Err(err).Str("role", role).Str("resource", obj).Str("action", act).Msg("permission check failed")
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return allowed, nil
}

// Allowed is Enforce with errors treated as a denial.
func (e *Enforcer) Allowed(role, obj, act string) bool {
	ok, err := e.Enforce(role, obj, act)
	return err == nil && ok
}

// AddPolicy grants act on obj to role.
func (e *Enforcer) AddPolicy(role, obj, act string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.enforcer.AddPolicy(role, obj, act); err != nil {
		return fmt.Errorf("failed to add policy: %w", err)
	}
	return nil
}

// RemovePolicy revokes act on obj from role.
func (e *Enforcer) RemovePolicy(role, obj, act string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.enforcer.RemovePolicy(role, obj, act); err != nil {
		return fmt.Errorf("failed to remove policy: %w", err)
	}
	return nil
}

// LoadPolicy reloads the policy from storage.
func (e *Enforcer) LoadPolicy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	e.log.Info().Msg("policy reloaded")
	return nil
}
