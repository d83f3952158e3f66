package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"golang.org/x/term"
)

// ErrPasswordMismatch is returned when the repeated password differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText prints prompt and reads one trimmed line. A final line
// without a newline is accepted.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	return pw, err
}

// GetPassword reads a password without echo. The caller wipes the result.
func GetPassword(w io.Writer) ([]byte, error) {
	return promptSecret(w, "Enter password: ")
}

// GetNewPassword asks for a password twice and returns it only when both
// entries match. The caller wipes the result.
func GetNewPassword(w io.Writer) ([]byte, error) {
	first, err := promptSecret(w, "Choose password: ")
	if err != nil {
		return nil, err
	}
	second, err := promptSecret(w, "Repeat password: ")
	defer common.Wipe(second)
	if err != nil {
		common.Wipe(first)
		return nil, err
	}
	if !bytes.Equal(first, second) {
		common.Wipe(first)
		return nil, ErrPasswordMismatch
	}
	return first, nil
}
