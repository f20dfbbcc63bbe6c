package auth

import "golang.org/x/crypto/bcrypt"

// CredentialVerifier checks plaintext secrets against stored hashes.
type CredentialVerifier interface {
	Verify(plaintext, hash string) bool
	Hash(plaintext string) (string, error)
}

// BcryptVerifier implements CredentialVerifier with bcrypt.
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier returns a verifier hashing at cost, falling back to the bcrypt
// default when cost is out of range.
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptVerifier{cost: cost}
}

// Verify reports whether plaintext matches hash.
func (v *BcryptVerifier) Verify(plaintext, hash string) bool {
	return ComparePassword(hash, plaintext) == nil
}

// Hash hashes plaintext with the configured cost.
func (v *BcryptVerifier) Hash(plaintext string) (string, error) {
	return HashPassword(plaintext, v.cost)
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
