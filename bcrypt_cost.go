//go:build !race

package account

// DefaultPasswordCost is the bcrypt cost of HashPassword and of services
// built without an explicit Hasher
const DefaultPasswordCost = 12

func passwordHashCost() int {
	return DefaultPasswordCost
}
