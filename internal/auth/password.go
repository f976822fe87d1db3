package auth

import "github.com/alexedwards/argon2id"

// PasswordHasher hashes passwords with argon2id.
type PasswordHasher struct {
	params *argon2id.Params
}

// NewPasswordHasher uses argon2id.DefaultParams when params is nil.
func NewPasswordHasher(params *argon2id.Params) *PasswordHasher {
	if params == nil {
		params = argon2id.DefaultParams
	}
	return &PasswordHasher{params: params}
}

func (h *PasswordHasher) Hash(pw string) (string, error) {
	return argon2id.CreateHash(pw, h.params)
}

func (h *PasswordHasher) Check(hash, pw string) (bool, error) {
	return argon2id.ComparePasswordAndHash(pw, hash)
}
