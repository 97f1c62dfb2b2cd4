package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/domain"
)

// ResourceSpec describes one CRUD collection of the SACCO API and the roles
// allowed to use it. A nil role list admits every signed-in user.
type ResourceSpec struct {
	Name    string
	Title   string
	Path    string
	Read    []domain.Role
	Write   []domain.Role
	Actions map[string][]domain.Role
}

// AllowsAction reports whether action is known for the resource
func (r ResourceSpec) AllowsAction(action string) bool {
	_, ok := r.Actions[action]
	return ok
}

var (
	financeReaders = []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager, domain.RoleAccountant, domain.RoleCashier}
	financeWriters = []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleAccountant, domain.RoleCashier}
	approvers      = []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager}
)

// Catalogue lists the resources the console exposes, in menu order
var Catalogue = []ResourceSpec{
	{
		Name:  "members",
		Title: "Members",
		Path:  "/members",
		Read: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager, domain.RoleLoanOfficer,
			domain.RoleAccountant, domain.RoleCashier, domain.RoleClerk, domain.RoleMarketingOfficer},
		Write: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager, domain.RoleLoanOfficer, domain.RoleClerk},
	},
	{
		Name:  "accounts",
		Title: "Accounts",
		Path:  "/accounts",
		Read:  financeReaders,
		Write: financeWriters,
	},
	{
		Name:  "budgets",
		Title: "Budgets",
		Path:  "/budgets",
		Read: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager, domain.RoleAccountant,
			domain.RoleBoardDirector, domain.RoleLoanBoard},
		Write: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleAccountant},
		Actions: map[string][]domain.Role{
			"approve": {domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager, domain.RoleBoardDirector},
			"reject":  {domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager, domain.RoleBoardDirector},
		},
	},
	{
		Name:  "expenses",
		Title: "Expenses",
		Path:  "/expenses",
		Read:  financeReaders,
		Write: financeWriters,
		Actions: map[string][]domain.Role{
			"approve": approvers,
			"reject":  approvers,
		},
	},
	{
		Name:  "leaves",
		Title: "Leaves",
		Path:  "/leaves",
		Actions: map[string][]domain.Role{
			"approve": {domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager, domain.RoleHR},
			"reject":  {domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager, domain.RoleHR},
		},
	},
	{
		Name:  "roles",
		Title: "Roles",
		Path:  "/roles",
		Read:  domain.Administrators,
		Write: domain.Administrators,
	},
	{
		Name:  "branches",
		Title: "Branches",
		Path:  "/branches",
		Read:  []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleManager},
		Write: domain.Administrators,
	},
	{
		Name:  "settings",
		Title: "Settings",
		Path:  "/settings",
		Read:  []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleIT},
		Write: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleIT},
	},
}

// LookupResource finds a catalogue entry by name
func LookupResource(name string) (ResourceSpec, bool) {
	for _, spec := range Catalogue {
		if spec.Name == name {
			return spec, true
		}
	}
	return ResourceSpec{}, false
}

// ResourceService passes CRUD calls for one collection through to the API.
// Bodies are kept as raw JSON; the console does not interpret them.
type ResourceService struct {
	client *api.Client
	spec   ResourceSpec
}

// NewResourceService creates a service for spec
func NewResourceService(client *api.Client, spec ResourceSpec) *ResourceService {
	return &ResourceService{client: client, spec: spec}
}

// Spec returns the resource description
func (s *ResourceService) Spec() ResourceSpec {
	return s.spec
}

func (s *ResourceService) item(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: missing %s id", domain.ErrInvalidInput, s.spec.Name)
	}
	return s.spec.Path + "/" + url.PathEscape(id), nil
}

// List returns a page of the collection; query is forwarded as is
func (s *ResourceService) List(ctx context.Context, query url.Values) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.client.Get(ctx, s.spec.Path, &out, api.WithQuery(query)); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one item
func (s *ResourceService) Get(ctx context.Context, id string) (json.RawMessage, error) {
	path, err := s.item(id)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := s.client.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds an item
func (s *ResourceService) Create(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidInput)
	}
	var out json.RawMessage
	if err := s.client.Post(ctx, s.spec.Path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces an item
func (s *ResourceService) Update(ctx context.Context, id string, body json.RawMessage) (json.RawMessage, error) {
	path, err := s.item(id)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidInput)
	}
	var out json.RawMessage
	if err := s.client.Put(ctx, path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an item
func (s *ResourceService) Delete(ctx context.Context, id string) error {
	path, err := s.item(id)
	if err != nil {
		return err
	}
	return s.client.Delete(ctx, path, nil)
}

// Action runs a workflow step such as approve or reject on an item
func (s *ResourceService) Action(ctx context.Context, id, action string, body json.RawMessage) (json.RawMessage, error) {
	if !s.spec.AllowsAction(action) {
		return nil, fmt.Errorf("%w: %s has no %q action", domain.ErrInvalidInput, s.spec.Name, action)
	}
	path, err := s.item(id)
	if err != nil {
		return nil, err
	}
	var payload any
	if len(body) > 0 {
		payload = body
	}
	var out json.RawMessage
	if err := s.client.Patch(ctx, path+"/"+action, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
