//go:build race

package account

import "golang.org/x/crypto/bcrypt"

// race instrumented builds hash with the library default so the package
// level hasher stays usable under test timeouts
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
