package crypto

import "golang.org/x/crypto/bcrypt"

// HashAdminToken hashes an admin API token using bcrypt.
// This should be used before storing the token in configuration.
func HashAdminToken(token string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
}

// VerifyAdminToken checks a presented admin token against a bcrypt hash.
func VerifyAdminToken(hash []byte, token string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil
}
