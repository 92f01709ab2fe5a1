// Package term реализует интерактивный вход в Telegram через терминал.
package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// Terminal запрашивает код и пароль 2FA у пользователя.
// Реализует интерфейс auth.UserAuthenticator.
type Terminal struct {
	phone        string
	in           *bufio.Reader
	out          io.Writer
	readPassword func() ([]byte, error)
}

var _ auth.UserAuthenticator = (*Terminal)(nil)

// Option настраивает Terminal.
type Option func(*Terminal)

// WithIO подменяет ввод и вывод. Пароль в этом случае читается из in как обычная строка.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(t *Terminal) {
		t.in = bufio.NewReader(in)
		t.out = out
		t.readPassword = func() ([]byte, error) {
			line, err := t.readLine()
			return []byte(line), err
		}
	}
}

// NewTerminal создает новый экземпляр Terminal для номера phone.
func NewTerminal(phone string, opts ...Option) *Terminal {
	t := &Terminal{
		phone: phone,
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
	}
	t.readPassword = func() ([]byte, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			line, err := t.readLine()
			return []byte(line), err
		}
		return readHiddenPassword(fd)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Phone возвращает номер телефона.
func (t *Terminal) Phone(_ context.Context) (string, error) {
	if strings.TrimSpace(t.phone) == "" {
		return "", xerrors.New("phone number is not configured")
	}
	return t.phone, nil
}

// Password запрашивает пароль 2FA.
func (t *Terminal) Password(_ context.Context) (string, error) {
	fmt.Fprint(t.out, "Enter 2FA password: ")
	pwd, err := t.readPassword()
	fmt.Fprintln(t.out)
	if err != nil {
		return "", xerrors.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(pwd)), nil
}

// AcceptTermsOfService показывает условия обслуживания и принимает их.
func (t *Terminal) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	fmt.Fprintf(t.out, "Accepting Terms of Service: %s\n", tos.Text)
	return nil
}

// Code запрашивает код подтверждения.
func (t *Terminal) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Fprint(t.out, "Enter code: ")
	code, err := t.readLine()
	if err != nil {
		return "", xerrors.Errorf("failed to read code: %w", err)
	}
	if code == "" {
		return "", xerrors.New("empty code")
	}
	return code, nil
}

// SignUp не поддерживается: для сверки нужен существующий аккаунт.
func (t *Terminal) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, xerrors.New("signup not implemented")
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
