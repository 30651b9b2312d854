package models

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// User is a resource owner account.
//
// Password holds either a clear-text password (the demo seed format) or a
// bcrypt hash. Clear-text storage is a known gap kept for compatibility with
// the seed data; configure bcrypt hashes for anything beyond a demo.
type User struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Scope    Scope  `json:"scope"`
}

// VerifyPassword checks password against the stored value.
func (u *User) VerifyPassword(password string) bool {
	if isBcryptHash(u.Password) {
		return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
