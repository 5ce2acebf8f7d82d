package bcrypt

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// IPinVerifier checks a caller-entered access code against the configured
// one, stored either as a bcrypt hash or in plain text.
type IPinVerifier interface {
	Verify(code string) bool
	Configured() bool
}

type pinVerifier struct {
	hash  []byte
	plain []byte
}

// New prefers hash when both are set.
func New(plain string, hash string) (IPinVerifier, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, errors.New("access pin hash is not a bcrypt hash")
		}
		return &pinVerifier{hash: []byte(hash)}, nil
	}
	if plain != "" {
		if err := ValidatePin(plain); err != nil {
			return nil, err
		}
	}
	return &pinVerifier{plain: []byte(plain)}, nil
}

// PinLength is the number of keypad digits in an access code.
const PinLength = 4

var ErrInvalidPin = errors.New("access pin must be exactly 4 digits")

// ValidatePin accepts exactly PinLength ASCII digits.
func ValidatePin(pin string) error {
	if len(pin) != PinLength {
		return ErrInvalidPin
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrInvalidPin
		}
	}
	return nil
}

// HashPin is used by cmd/pinhash to produce ACCESS_PIN_HASH values.
func HashPin(pin string, cost int) (string, error) {
	if err := ValidatePin(pin); err != nil {
		return "", err
	}
	result, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(result), nil
}

func (p *pinVerifier) Configured() bool {
	return len(p.hash) > 0 || len(p.plain) > 0
}

func (p *pinVerifier) Verify(code string) bool {
	if !p.Configured() {
		return false
	}
	if len(p.hash) > 0 {
		return bcrypt.CompareHashAndPassword(p.hash, []byte(code)) == nil
	}
	return subtle.ConstantTimeCompare(p.plain, []byte(code)) == 1
}
