package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sumin-dev/Magpie/internal/pkg/session"
	"github.com/sumin-dev/Magpie/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request.
// This centralizes user session handling so controllers only ever read
// usercontext.GetUserContext(c).
func UserContextMiddleware(c *fiber.Ctx) error {
	// Avoid interfering with Goth/Fiber session handling on OAuth routes.
	// Goth uses its own fiber session store and relies on per-request locals.
	// We skip our app session on /auth/* to prevent cross-store collisions.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return anonymous(c)
	}

	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		return anonymous(c)
	}

	username := session.GetSessionValue(c, usercontext.KeyUsername)
	providerUserID := session.GetSessionValue(c, usercontext.KeyProviderUserID)
	isEditor := sess.Get(usercontext.KeyIsEditor)

	userCtx := usercontext.UserContext{
		UserID:         userID.(uint),
		Username:       username,
		ProviderUserID: providerUserID,
		IsLoggedIn:     true,
		IsEditor:       isEditor != nil && isEditor.(bool),
	}
	c.Locals("USER_CONTEXT", userCtx)

	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyIsEditor, userCtx.IsEditor)

	return c.Next()
}

func anonymous(c *fiber.Ctx) error {
	c.Locals("USER_CONTEXT", usercontext.UserContext{
		IsLoggedIn: false,
		IsEditor:   false,
	})
	c.Locals(usercontext.KeyFromProtected, false)
	c.Locals(usercontext.KeyIsEditor, false)
	return c.Next()
}
