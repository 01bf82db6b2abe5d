// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package termui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/spatialtrace/spatialtrace/lib/survey"
)

const title = "How would you rate your experience?"

type keyMap struct {
	Left    key.Binding
	Right   key.Binding
	Submit  key.Binding
	Dismiss key.Binding
}

var keys = keyMap{
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←", "lower"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→", "higher"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc", "q", "ctrl+c"),
		key.WithHelp("esc", "close"),
	),
}

// palette holds one color per rating plus the chrome around them.
type palette struct {
	Title   lipgloss.Color
	Help    lipgloss.Color
	Border  lipgloss.Color
	Ratings [5]lipgloss.Color
}

var palettes = map[survey.Theme]palette{
	survey.Light: {
		Title:   "236",
		Help:    "245",
		Border:  "250",
		Ratings: [5]lipgloss.Color{"160", "208", "178", "106", "28"},
	},
	survey.Dark: {
		Title:   "255",
		Help:    "243",
		Border:  "239",
		Ratings: [5]lipgloss.Color{"203", "215", "221", "149", "42"},
	},
}

type model struct {
	palette palette
	// selected is 0 until the user picks a rating.
	selected  int
	rating    int
	submitted bool
}

func newModel(theme survey.Theme) model {
	colors, ok := palettes[theme]
	if !ok {
		colors = palettes[survey.Light]
	}
	return model{palette: colors}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, keys.Dismiss):
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Submit):
		if m.selected == 0 {
			return m, nil
		}
		m.rating = m.selected
		m.submitted = true
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Left):
		if m.selected > 1 {
			m.selected--
		} else if m.selected == 0 {
			m.selected = 1
		}
	case key.Matches(keyMsg, keys.Right):
		if m.selected < 5 {
			m.selected++
		}
	default:
		if digit, err := strconv.Atoi(keyMsg.String()); err == nil && digit >= 1 && digit <= 5 {
			m.selected = digit
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.submitted {
		return ""
	}

	cells := make([]string, 0, 5)
	for rating := 1; rating <= 5; rating++ {
		style := lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(m.palette.Ratings[rating-1])
		if rating == m.selected {
			style = style.Bold(true).Reverse(true)
		}
		cells = append(cells, style.Render(strconv.Itoa(rating)))
	}
	row := strings.Join(cells, " ")

	heading := lipgloss.NewStyle().Bold(true).Foreground(m.palette.Title).Render(title)
	width := max(ansi.StringWidth(heading), ansi.StringWidth(row))
	help := lipgloss.NewStyle().Foreground(m.palette.Help).Render(
		strings.Join([]string{
			"1-5/" + keys.Left.Help().Key + keys.Right.Help().Key + " choose",
			keys.Submit.Help().Key + " " + keys.Submit.Help().Desc,
			keys.Dismiss.Help().Key + " " + keys.Dismiss.Help().Desc,
		}, " · "))

	body := lipgloss.JoinVertical(lipgloss.Center,
		heading,
		"",
		lipgloss.PlaceHorizontal(width, lipgloss.Center, row),
		"",
		help,
	)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.Border).
		Padding(0, 2).
		Render(body) + "\n"
}
