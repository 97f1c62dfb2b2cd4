package handlers

import (
	"encoding/json"

	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/core/services"
	"sacco-console/internal/pkg/pagination"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ResourceHandler passes one catalogue resource through to the SACCO API
type ResourceHandler struct {
	spec services.ResourceSpec
}

// NewResourceHandler creates a handler for spec
func NewResourceHandler(spec services.ResourceSpec) *ResourceHandler {
	return &ResourceHandler{spec: spec}
}

func (h *ResourceHandler) service(c *fiber.Ctx) (*services.ResourceService, *visitor.Visitor) {
	v := visitor.From(c)
	return v.Resource(h.spec), v
}

// List returns a page of the resource
// @Summary List resource items
// @Tags Resources
// @Produce json
// @Param resource path string true "members, accounts, budgets, expenses, leaves, roles, branches or settings"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Param search query string false "Search term"
// @Success 200 {object} response.Response
// @Router /dashboard/{resource} [get]
func (h *ResourceHandler) List(c *fiber.Ctx) error {
	svc, v := h.service(c)
	data, err := svc.List(c.UserContext(), pagination.GetParams(c).Values())
	if err != nil {
		return respondError(c, v.Logger(), err, "Failed to load "+h.spec.Name)
	}
	return response.Success(c, "", data)
}

// Get returns one item
// @Summary Get resource item
// @Tags Resources
// @Produce json
// @Param resource path string true "Resource name"
// @Param id path string true "Item ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /dashboard/{resource}/{id} [get]
func (h *ResourceHandler) Get(c *fiber.Ctx) error {
	svc, v := h.service(c)
	data, err := svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, v.Logger(), err, "Failed to load "+h.spec.Name)
	}
	return response.Success(c, "", data)
}

// Create adds an item
// @Summary Create resource item
// @Tags Resources
// @Accept json
// @Produce json
// @Param resource path string true "Resource name"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /dashboard/{resource} [post]
func (h *ResourceHandler) Create(c *fiber.Ctx) error {
	body, ok := jsonBody(c)
	if !ok {
		return response.BadRequest(c, "Invalid request body")
	}
	svc, v := h.service(c)
	data, err := svc.Create(c.UserContext(), body)
	if err != nil {
		return respondError(c, v.Logger(), err, "Failed to create "+h.spec.Name)
	}
	return response.Created(c, "Created successfully", data)
}

// Update replaces an item
// @Summary Update resource item
// @Tags Resources
// @Accept json
// @Produce json
// @Param resource path string true "Resource name"
// @Param id path string true "Item ID"
// @Success 200 {object} response.Response
// @Router /dashboard/{resource}/{id} [put]
func (h *ResourceHandler) Update(c *fiber.Ctx) error {
	body, ok := jsonBody(c)
	if !ok {
		return response.BadRequest(c, "Invalid request body")
	}
	svc, v := h.service(c)
	data, err := svc.Update(c.UserContext(), c.Params("id"), body)
	if err != nil {
		return respondError(c, v.Logger(), err, "Failed to update "+h.spec.Name)
	}
	return response.Success(c, "Updated successfully", data)
}

// Delete removes an item
// @Summary Delete resource item
// @Tags Resources
// @Produce json
// @Param resource path string true "Resource name"
// @Param id path string true "Item ID"
// @Success 200 {object} response.Response
// @Router /dashboard/{resource}/{id} [delete]
func (h *ResourceHandler) Delete(c *fiber.Ctx) error {
	svc, v := h.service(c)
	if err := svc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, v.Logger(), err, "Failed to delete "+h.spec.Name)
	}
	return response.Success(c, "Deleted successfully", nil)
}

// Action returns the handler of a workflow step such as approve
// @Summary Run a workflow action
// @Tags Resources
// @Accept json
// @Produce json
// @Param resource path string true "budgets, expenses or leaves"
// @Param id path string true "Item ID"
// @Param action path string true "approve or reject"
// @Success 200 {object} response.Response
// @Router /dashboard/{resource}/{id}/{action} [patch]
func (h *ResourceHandler) Action(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body json.RawMessage
		if len(c.Body()) > 0 {
			var ok bool
			if body, ok = jsonBody(c); !ok {
				return response.BadRequest(c, "Invalid request body")
			}
		}
		svc, v := h.service(c)
		data, err := svc.Action(c.UserContext(), c.Params("id"), action, body)
		if err != nil {
			return respondError(c, v.Logger(), err, "Failed to "+action+" "+h.spec.Name)
		}
		return response.Success(c, "", data)
	}
}

// jsonBody returns a copy of the request body if it is valid JSON. fiber
// reuses the body buffer after the handler returns.
func jsonBody(c *fiber.Ctx) (json.RawMessage, bool) {
	raw := c.Body()
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}
