package term

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminal(t *testing.T) {
	ctx := context.Background()

	t.Run("Код и пароль читаются построчно", func(t *testing.T) {
		var out bytes.Buffer
		term := NewTerminal("+15550001", WithIO(strings.NewReader("12345\n secret \n"), &out))

		phone, err := term.Phone(ctx)
		require.NoError(t, err)
		assert.Equal(t, "+15550001", phone)

		code, err := term.Code(ctx, &tg.AuthSentCode{})
		require.NoError(t, err)
		assert.Equal(t, "12345", code)

		pwd, err := term.Password(ctx)
		require.NoError(t, err)
		assert.Equal(t, "secret", pwd)

		assert.Contains(t, out.String(), "Enter code: ")
		assert.Contains(t, out.String(), "Enter 2FA password: ")
	})

	t.Run("Последняя строка без перевода строки", func(t *testing.T) {
		term := NewTerminal("+1", WithIO(strings.NewReader("777"), &bytes.Buffer{}))

		code, err := term.Code(ctx, &tg.AuthSentCode{})
		require.NoError(t, err)
		assert.Equal(t, "777", code)
	})

	t.Run("Пустой ввод", func(t *testing.T) {
		term := NewTerminal("+1", WithIO(strings.NewReader(""), &bytes.Buffer{}))

		_, err := term.Code(ctx, &tg.AuthSentCode{})
		assert.Error(t, err)
	})

	t.Run("Номер не задан", func(t *testing.T) {
		_, err := NewTerminal(" ").Phone(ctx)
		assert.Error(t, err)
	})

	t.Run("Регистрация не поддерживается", func(t *testing.T) {
		_, err := NewTerminal("+1").SignUp(ctx)
		assert.Error(t, err)
	})

	t.Run("Условия обслуживания принимаются", func(t *testing.T) {
		var out bytes.Buffer
		term := NewTerminal("+1", WithIO(strings.NewReader(""), &out))

		require.NoError(t, term.AcceptTermsOfService(ctx, tg.HelpTermsOfService{Text: "be nice"}))
		assert.Contains(t, out.String(), "be nice")
	})
}
