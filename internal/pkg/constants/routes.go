package constants

// Static route constants
const (
	UploadsRoute = "/uploads"
	PublicRoute  = "/"
	// Upload path without leading slash for URL construction
	UploadsPath = "uploads"
	// Cover images live below the uploads dir
	CoversPath = "uploads/covers"
)
