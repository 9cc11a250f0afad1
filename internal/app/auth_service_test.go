package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	t.Run("short secrets are fully hidden", func(t *testing.T) {
		assert.Equal(t, "****", maskSecret(""))
		assert.Equal(t, "****", maskSecret("sk-1"))
		assert.Equal(t, "****", maskSecret("12345678"))
	})

	t.Run("long secrets keep head and tail", func(t *testing.T) {
		got := maskSecret("sk-abcdefghijklmnop")
		assert.Equal(t, "sk-a***********mnop", got)
		assert.Len(t, got, len("sk-abcdefghijklmnop"))
	})
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(nil, "secret", 60)

	t.Run("rejects malformed email", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Email: "not-an-email", Password: "longenough"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects short password", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Email: "a@b.com", Password: "short"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestLoginValidation(t *testing.T) {
	svc := NewAuthService(nil, "secret", 60)

	_, err := svc.Login(LoginInput{Email: "", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
