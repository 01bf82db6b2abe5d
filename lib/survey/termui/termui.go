// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package termui renders the rating prompt in a terminal with Bubble
// Tea. The question occupies a few lines inline (no alternate screen)
// so it can appear alongside an agent's log output.
package termui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/spatialtrace/spatialtrace/lib/survey"
)

// ErrNoTerminal is returned when the input is not an interactive
// terminal.
var ErrNoTerminal = errors.New("survey prompt needs an interactive terminal")

// Asker asks for a rating on a terminal. The zero value uses stdin and
// stderr.
type Asker struct {
	Input  *os.File
	Output io.Writer
}

// Ask runs the prompt until the user submits or dismisses it, or ctx
// ends.
func (a Asker) Ask(ctx context.Context, req survey.Request) (int, error) {
	input := a.Input
	if input == nil {
		input = os.Stdin
	}
	output := a.Output
	if output == nil {
		output = os.Stderr
	}
	if !term.IsTerminal(int(input.Fd())) {
		return 0, ErrNoTerminal
	}

	theme := req.Theme
	if theme == "" {
		theme = detectTheme(output)
	}
	program := tea.NewProgram(newModel(theme),
		tea.WithContext(ctx),
		tea.WithInput(input),
		tea.WithOutput(output),
	)
	final, err := program.Run()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, fmt.Errorf("running survey prompt: %w", err)
	}
	result := final.(model)
	if !result.submitted {
		return 0, survey.ErrDismissed
	}
	return result.rating, nil
}

func detectTheme(output io.Writer) survey.Theme {
	if termenv.NewOutput(output).HasDarkBackground() {
		return survey.Dark
	}
	return survey.Light
}
