package domain

import "golang.org/x/crypto/bcrypt"

// Password is a value type holding either a raw or a bcrypt-hashed string.
// Config never stores a raw Password; Hash must be called before
// persisting.
type Password struct {
	value string
}

func NewPassword(raw string) (Password, error) {
	if raw == "" {
		return Password{}, NewError(CodeInvalidPassword, "password must not be empty")
	}
	return Password{value: raw}, nil
}

func (p Password) Value() string { return p.value }

// Hash returns a new Password holding the bcrypt hash of the receiver.
func (p Password) Hash() (Password, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(p.value), bcrypt.DefaultCost)
	if err != nil {
		return Password{}, WrapError(CodeInvalidPassword, "failed to hash password", err)
	}
	return NewPassword(string(hashed))
}

// Compare checks raw against the receiver, which must hold a hashed value,
// in constant time.
func (p Password) Compare(raw Password) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.value), []byte(raw.value)) == nil
}
