package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sumin-dev/Magpie/internal/pkg/session"
	"github.com/sumin-dev/Magpie/internal/pkg/usercontext"
)

// HandleLogin renders the provider chooser. There is no local credential
// form; login always goes through an external identity provider.
func HandleLogin(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Render("auth/login", fiber.Map{
		"Title": "Sign in",
	}, "layouts/main")
}

// HandleLogout destroys the app session.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}
