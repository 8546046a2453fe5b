package app

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"safeop/internal/safeop"
)

// PassphraseEnv overrides the interactive prompt, for scripted restores.
const PassphraseEnv = "SAFEOP_PASSPHRASE"

// PromptPassphrase returns a PassphraseFunc that reads SAFEOP_PASSPHRASE,
// or prompts on the terminal without echo. Without a terminal and without
// the variable it fails with safeop.ErrPassphraseRequired.
func PromptPassphrase(prompt string, stderr io.Writer) safeop.PassphraseFunc {
	return func() (string, error) {
		if p := os.Getenv(PassphraseEnv); p != "" {
			return p, nil
		}

		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", safeop.ErrPassphraseRequired
		}

		fmt.Fprint(stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}
}
