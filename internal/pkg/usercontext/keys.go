package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	AuthKey           = "authenticated"
	KeyUserID         = "user_id"
	KeyUsername       = "username"
	KeyProviderUserID = "provider_user_id"
	KeyIsEditor       = "isEditor"
	KeyFromProtected  = "from_protected"
)
