package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GetGravatarURL builds a Gravatar URL for the given email address. Used as
// the avatar fallback when the OAuth provider does not supply a picture.
// Default size is 200px if not specified.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = 200
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	hash := md5.Sum([]byte(normalized))

	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}
