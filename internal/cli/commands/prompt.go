package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// Prompter asks the user for input. Commands fall back to flags and
// environment variables when it is not interactive.
type Prompter interface {
	Interactive() bool
	Password(label string) (string, error)
	Input(label string, validate func(string) error) (string, error)
	Confirm(label string) (bool, error)
	Select(label string, items []string) (int, error)
}

// TerminalPrompter prompts on the controlling terminal
type TerminalPrompter struct{}

var _ Prompter = TerminalPrompter{}

func (TerminalPrompter) Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p TerminalPrompter) Password(label string) (string, error) {
	if !p.Interactive() {
		return "", errNonInteractive
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func (p TerminalPrompter) Input(label string, validate func(string) error) (string, error) {
	if !p.Interactive() {
		return "", errNonInteractive
	}
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validate,
	}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("input cancelled: %w", err)
	}
	return value, nil
}

func (p TerminalPrompter) Confirm(label string) (bool, error) {
	if !p.Interactive() {
		return false, errNonInteractive
	}
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

func (p TerminalPrompter) Select(label string, items []string) (int, error) {
	if !p.Interactive() {
		return 0, errNonInteractive
	}
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ . | cyan }}",
		Inactive: "  {{ . }}",
		Selected: "{{ . | green }}",
	}

	prompt := promptui.Select{
		Label:     label,
		Items:     items,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("selection cancelled: %w", err)
	}
	return index, nil
}
