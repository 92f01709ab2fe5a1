//go:build unix

package term

import "golang.org/x/term"

func readHiddenPassword(fd int) ([]byte, error) {
	return term.ReadPassword(fd)
}
