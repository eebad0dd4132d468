// Package prompt provides user interaction primitives using charmbracelet/huh.
package prompt

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ErrCanceled is returned when the user cancels a prompt.
var ErrCanceled = errors.New("canceled by user")

// Prompter abstracts user interaction for testability.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/prompter.go . Prompter
type Prompter interface {
	// Confirm prompts for yes/no confirmation.
	Confirm(title, description string) (bool, error)

	// Choice prompts user to select from options, returns 0-based index.
	Choice(title string, options []string) (int, error)
}

// HuhPrompter implements Prompter using charmbracelet/huh for interactive forms.
type HuhPrompter struct{}

// New creates a new HuhPrompter for interactive terminal prompts.
func New() *HuhPrompter {
	return &HuhPrompter{}
}

// Confirm prompts for yes/no confirmation.
func (p *HuhPrompter) Confirm(title, description string) (bool, error) {
	var confirmed bool

	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Run").
		Negative("Cancel").
		Value(&confirmed).
		Run()
	if err != nil {
		return false, wrap("confirm prompt", err)
	}

	return confirmed, nil
}

// Choice prompts user to select from options and returns the 0-based index.
func (p *HuhPrompter) Choice(title string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, errors.New("no options provided")
	}

	huhOptions := make([]huh.Option[int], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt, i)
	}

	var selected int

	err := huh.NewSelect[int]().
		Title(title).
		Options(huhOptions...).
		Height(min(len(options)+2, 15)).
		Value(&selected).
		Run()
	if err != nil {
		return 0, wrap("choice prompt", err)
	}

	return selected, nil
}

func wrap(op string, err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCanceled
	}
	return fmt.Errorf("%s: %w", op, err)
}
