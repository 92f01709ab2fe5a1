//go:build !unix

package term

import (
	"bufio"
	"os"
	"strings"
)

// На платформах без поддержки скрытого ввода пароль читается как обычная строка.
func readHiddenPassword(_ int) ([]byte, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(line)), nil
}
