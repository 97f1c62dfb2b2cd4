package handlers

import (
	"sacco-console/internal/adapters/http/middleware"
	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// MenuItem is one entry of the dashboard navigation
type MenuItem struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct{}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Menu returns the navigation entries user may open. It uses the same role
// check as the route guards so menus never offer a page that redirects away.
func Menu(user *domain.User) []MenuItem {
	items := []MenuItem{}
	for _, spec := range services.Catalogue {
		if domain.HasAnyRole(user, spec.Read...) {
			items = append(items, MenuItem{
				Name:  spec.Name,
				Title: spec.Title,
				Path:  services.DashboardPath + "/" + spec.Name,
			})
		}
	}
	if user != nil {
		items = append(items, MenuItem{Name: "notifications", Title: "Notifications", Path: services.DashboardPath + "/notifications"})
	}
	if domain.HasAnyRole(user, domain.Administrators...) {
		items = append(items, MenuItem{Name: "locked-accounts", Title: "Locked accounts", Path: services.DashboardPath + "/security/locked-accounts"})
	}
	return items
}

// Dashboard returns the dashboard of the signed-in user
// @Summary Dashboard
// @Description Returns the user, the unread notification count and the menu for the user's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Response
// @Success 303 {object} response.Response
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.SeeOther(c, services.LoginPath)
	}

	data := fiber.Map{
		"user":        user,
		"displayName": user.FullName(),
		"menu":        Menu(user),
	}
	if count, ok := visitor.From(c).UnreadCount(); ok {
		data["unreadCount"] = count
	}
	return response.Success(c, "", data)
}
