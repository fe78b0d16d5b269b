package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"first name polish letters", FirstName, "Łukasz", true},
		{"first name blank", FirstName, "", true},
		{"first name digit", FirstName, "Jan2", false},
		{"first name space", FirstName, "Jan Maria", false},
		{"username ok", Username, "jan.kowalski_1", true},
		{"username blank", Username, "", true},
		{"username too short", Username, "ab", false},
		{"username too long", Username, "abcdefghijklmnopqrstu", false},
		{"username bad char", Username, "jan!", false},
		{"email com", Email, "jan@example.com", true},
		{"email pl", Email, "jan@poczta.pl", true},
		{"email blank", Email, "", true},
		{"email other tld", Email, "jan@example.org", false},
		{"email no at", Email, "jan.example.com", false},
		{"password length ok", PasswordLength, "12345678", true},
		{"password length short", PasswordLength, "1234567", false},
		{"password length counts runes", PasswordLength, "ąęółśżźć", true},
		{"password sign digit", PasswordSign, "abc1", true},
		{"password sign special", PasswordSign, "abc!", true},
		{"password sign none", PasswordSign, "abcdefgh", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred(tt.in))
		})
	}
}

func TestPasswordsMatch(t *testing.T) {
	assert.True(t, PasswordsMatch("secret1!", "secret1!"))
	assert.False(t, PasswordsMatch("secret1!", "secret1"))
	assert.False(t, PasswordsMatch("", ""))
}

func TestCheckPassword(t *testing.T) {
	c := CheckPassword("haslo123", "haslo123")
	assert.True(t, c.OK())

	c = CheckPassword("haslo", "")
	assert.Equal(t, PasswordChecklist{}, c)
	assert.False(t, c.OK())
}

type registration struct {
	FirstName       string `form:"firstName" validate:"required,firstname"`
	Username        string `form:"username" validate:"required,username"`
	Email           string `form:"email" validate:"required,email_pl"`
	Password        string `form:"password" validate:"required,password_len,password_sign"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=Password"`
}

func TestEngineStruct(t *testing.T) {
	e := New()

	t.Run("valid", func(t *testing.T) {
		errs := e.Struct(registration{
			FirstName:       "Anna",
			Username:        "anna.nowak",
			Email:           "anna@example.pl",
			Password:        "haslo123",
			ConfirmPassword: "haslo123",
		})
		assert.Nil(t, errs)
	})

	t.Run("field messages", func(t *testing.T) {
		errs := e.Struct(registration{
			FirstName:       "Anna1",
			Username:        "an",
			Email:           "anna@example.org",
			Password:        "haslo",
			ConfirmPassword: "inne",
		})
		require.NotNil(t, errs)
		assert.Equal(t, messages["firstname"], errs["firstName"])
		assert.Equal(t, messages["username"], errs["username"])
		assert.Equal(t, messages["email_pl"], errs["email"])
		assert.Equal(t, messages["password_len"], errs["password"])
		assert.Equal(t, messages["eqfield"], errs["confirmPassword"])
		assert.Contains(t, errs.Error(), "firstName: ")
	})

	t.Run("required", func(t *testing.T) {
		errs := e.Struct(registration{})
		require.Len(t, errs, 5)
		assert.Equal(t, messages["required"], errs["firstName"])
	})
}

func TestEngineVar(t *testing.T) {
	e := New()
	assert.Empty(t, e.Var("anna@example.pl", "required,email_pl"))
	assert.Equal(t, Message("email_pl"), e.Var("anna@example", "required,email_pl"))
	assert.Equal(t, Message("required"), e.Var("", "required,username"))
	assert.Equal(t, defaultMessage, Message("nope"))
}
