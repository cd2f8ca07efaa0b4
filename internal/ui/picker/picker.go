// Package picker asks the user to settle ambiguous namespaces and aliases in
// the terminal.
package picker

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return "" }
func (i item) FilterValue() string { return i.title }

type Options struct {
	Input  io.Reader
	Output io.Writer
}

// Terminal implements ports.Picker and ports.Prompter with bubbletea
// programs. Nil streams default to the process terminal.
type Terminal struct {
	opts Options
}

func New(opts Options) *Terminal {
	return &Terminal{opts: opts}
}

func (t *Terminal) Pick(ctx context.Context, title string, options []string) (string, bool, error) {
	if len(options) == 0 {
		return "", false, nil
	}
	final, err := t.run(ctx, newPickModel(title, options))
	if err != nil {
		return "", false, err
	}
	m := final.(pickModel)
	return m.choice, m.chosen, nil
}

func (t *Terminal) Prompt(ctx context.Context, title, placeholder string) (string, bool, error) {
	final, err := t.run(ctx, newPromptModel(title, placeholder))
	if err != nil {
		return "", false, err
	}
	m := final.(promptModel)
	return m.value, m.confirmed, nil
}

func (t *Terminal) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if t.opts.Input != nil {
		opts = append(opts, tea.WithInput(t.opts.Input))
	}
	if t.opts.Output != nil {
		opts = append(opts, tea.WithOutput(t.opts.Output))
	}
	final, err := tea.NewProgram(m, opts...).Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil, context.Canceled
	}
	return final, err
}

type pickModel struct {
	list   list.Model
	choice string
	chosen bool
}

func newPickModel(title string, options []string) pickModel {
	items := make([]list.Item, 0, len(options))
	for _, opt := range options {
		items = append(items, item{title: opt})
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(items, delegate, 60, min(len(options)+6, 20))
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	return pickModel{list: l}
}

func (m pickModel) Init() tea.Cmd {
	return nil
}

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				m.choice = it.title
				m.chosen = true
			}
			return m, tea.Quit
		case "esc", "q":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) View() string {
	if m.chosen {
		return ""
	}
	return docStyle.Render(m.list.View())
}

type promptModel struct {
	title     string
	input     textinput.Model
	value     string
	confirmed bool
	done      bool
}

func newPromptModel(title, placeholder string) promptModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 128
	ti.Width = 40
	ti.Focus()
	return promptModel{title: title, input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.value = m.input.Value()
			m.confirmed = true
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done {
		return ""
	}
	return docStyle.Render(titleStyle(m.title) + "\n\n" + m.input.View() + "\n\n" +
		statusStyle.Render("enter to confirm, esc to cancel"))
}
