package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned when confirmation is needed but input is
// not a terminal.
var ErrNotInteractive = errors.New("confirmation needs a terminal; pass --yes to proceed without one")

// Confirm asks a yes/no question on out and reads the answer from in. Only
// "y" and "yes", in any case, approve. assumeYes skips the prompt. When in
// is a file that is not a terminal, Confirm refuses with ErrNotInteractive
// instead of consuming piped input.
func Confirm(in io.Reader, out io.Writer, question string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, ErrNotInteractive
	}
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
