// Package prompt provides user interaction primitives using charmbracelet/huh.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrCanceled is returned when the user cancels a prompt.
var ErrCanceled = errors.New("canceled by user")

// Prompter abstracts user interaction for testability.
type Prompter interface {
	// Print outputs text to the user.
	Print(message string)

	// Confirm prompts for yes/no confirmation.
	Confirm(title, description string) (bool, error)

	// Secret prompts for secret input (no echo). Empty input is rejected.
	Secret(prompt string) (string, error)
}

// HuhPrompter implements Prompter using charmbracelet/huh for interactive forms.
type HuhPrompter struct {
	out io.Writer
}

// New creates a new HuhPrompter that prints to out, or os.Stderr when nil.
func New(out io.Writer) *HuhPrompter {
	if out == nil {
		out = os.Stderr
	}
	return &HuhPrompter{out: out}
}

// Print outputs text to the user.
func (p *HuhPrompter) Print(message string) {
	_, _ = fmt.Fprintln(p.out, message)
}

// Confirm prompts for yes/no confirmation.
func (p *HuhPrompter) Confirm(title, description string) (bool, error) {
	var confirmed bool

	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()

	if err != nil {
		return false, wrap("confirm prompt", err)
	}
	return confirmed, nil
}

// Secret prompts for secret input with masked display.
func (p *HuhPrompter) Secret(prompt string) (string, error) {
	var value string

	err := huh.NewInput().
		Title(prompt).
		EchoMode(huh.EchoModePassword).
		Validate(notBlank).
		Value(&value).
		Run()

	if err != nil {
		return "", wrap("secret prompt", err)
	}
	return strings.TrimSpace(value), nil
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value cannot be empty")
	}
	return nil
}

func wrap(what string, err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCanceled
	}
	return fmt.Errorf("%s: %w", what, err)
}
