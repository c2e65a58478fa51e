package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/sumin-dev/Magpie/app/controllers"
	"github.com/sumin-dev/Magpie/internal/pkg/env"
	"github.com/sumin-dev/Magpie/internal/pkg/middleware"
	"github.com/sumin-dev/Magpie/internal/pkg/oauth"
	"github.com/sumin-dev/Magpie/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Public magazine pages
	app.Get("/magazines", controllers.HandleMagazineIndex)
	app.Get("/magazines/:slug", controllers.HandleMagazineShow)
	app.Get("/pricing", controllers.HandlePricing)

	// Auth
	app.Get("/login", controllers.HandleLogin)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleLogout)

	// Social OAuth (identity is fully delegated to the provider)
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
}

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", controllers.HandleStart)

	// Subscription checkout + management pages
	group.Get("/subscribe", middleware.RequireAuth, controllers.HandleSubscribePage)

	// Editor content management
	group.Get("/editor/magazines", middleware.RequireEditor, controllers.HandleEditorMagazineList)
	group.Get("/editor/magazines/new", middleware.RequireEditor, controllers.HandleEditorMagazineNew)
	group.Post("/editor/magazines", middleware.RequireEditor, controllers.HandleEditorMagazineCreate)
	group.Get("/editor/magazines/edit/:slug", middleware.RequireEditor, controllers.HandleEditorMagazineEdit)
	group.Post("/editor/magazines/update/:slug", middleware.RequireEditor, controllers.HandleEditorMagazineUpdate)
	group.Post("/editor/magazines/delete/:slug", middleware.RequireEditor, controllers.HandleEditorMagazineDelete)
	group.Post("/editor/magazines/cover/:slug", middleware.RequireEditor, controllers.HandleCoverUpload)
}
