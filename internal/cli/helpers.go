package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/moxieworks/moxie/internal/store"
)

// colorize wraps s in an ANSI style when stdout is a terminal.
func colorize(style, s string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return s
	}
	return style + s + colorReset
}

// openStore opens the state store under the user's home directory.
func openStore() (*store.Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	s, err := store.New(home)
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("initializing state directory: %w", err)
	}
	return s, nil
}

// statusStyle picks a color for a run's state column.
func statusStyle(state string) string {
	switch state {
	case "announced", "ok":
		return colorGreen
	case "running", "pending":
		return colorYellow
	default:
		return colorDim
	}
}
