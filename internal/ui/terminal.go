package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor decides whether output should be colorized.
//
// NO_COLOR (any value) disables color and wins over everything else.
// CLICOLOR=0 disables color, CLICOLOR_FORCE enables it even when piped.
// Otherwise color follows IsTerminal.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return IsTerminal()
}

// InitColor configures the lipgloss renderer for the current environment.
// Call it once at startup.
func InitColor() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.EnvColorProfile()
	if profile == termenv.Ascii {
		// Forced color on a pipe: termenv sees no TTY, pick a sane default.
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}
