package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the complete user context for a request.
// ProviderUserID is the external identity provider's subject for the user;
// billing keys ledger rows by it.
type UserContext struct {
	UserID         uint   `json:"user_id"`
	Username       string `json:"username"`
	ProviderUserID string `json:"provider_user_id"`
	IsLoggedIn     bool   `json:"is_logged_in"`
	IsEditor       bool   `json:"is_editor"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals("USER_CONTEXT"); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false, IsEditor: false}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsEditor checks if the current user may manage content
func IsEditor(c *fiber.Ctx) bool {
	return GetUserContext(c).IsEditor
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetProviderUserID returns the external subject for the current user, or ""
func GetProviderUserID(c *fiber.Ctx) string {
	return GetUserContext(c).ProviderUserID
}
