package services

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GravatarURL builds the avatar URL for an email address. The hash is
// md5 of the trimmed, lowercased email, which is what Gravatar keys on.
func GravatarURL(email string, size int) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := md5.Sum([]byte(normalized))
	url := fmt.Sprintf("https://www.gravatar.com/avatar/%x?d=identicon", sum)
	if size > 0 {
		url = fmt.Sprintf("%s&s=%d", url, size)
	}
	return url
}
