//go:build !gui

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/metcalfc/prr/internal/extract"
	"github.com/metcalfc/prr/internal/layout"
	"github.com/metcalfc/prr/internal/playback"
	"github.com/metcalfc/prr/internal/session"
)

var (
	erpStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	wordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	currentStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	pageTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

type keyMap struct {
	Play     key.Binding
	Faster   key.Binding
	Slower   key.Binding
	PrevSent key.Binding
	NextSent key.Binding
	PrevPage key.Binding
	NextPage key.Binding
	GoWord   key.Binding
	GoPage   key.Binding
	Restart  key.Binding
	Close    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Play:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Faster:   key.NewBinding(key.WithKeys("up", "+", "="), key.WithHelp("↑/↓", "speed")),
		Slower:   key.NewBinding(key.WithKeys("down", "-"), key.WithHelp("↑/↓", "speed")),
		PrevSent: key.NewBinding(key.WithKeys("left"), key.WithHelp("←/→", "sentence")),
		NextSent: key.NewBinding(key.WithKeys("right"), key.WithHelp("←/→", "sentence")),
		PrevPage: key.NewBinding(key.WithKeys("pgup", "["), key.WithHelp("[/]", "page")),
		NextPage: key.NewBinding(key.WithKeys("pgdown", "]"), key.WithHelp("[/]", "page")),
		GoWord:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "go to word")),
		GoPage:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "go to page")),
		Restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		Close:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "close")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Faster, k.PrevSent, k.PrevPage, k.GoWord, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Faster, k.PrevSent},
		{k.PrevPage, k.GoWord, k.GoPage},
		{k.Restart, k.Close, k.Help, k.Quit},
	}
}

type inputMode int

const (
	inputNone inputMode = iota
	inputWord
	inputPage
)

// changedMsg tells the model the session moved on its own.
type changedMsg struct{}

type model struct {
	sess     *session.Session
	keys     keyMap
	help     help.Model
	input    textinput.Model
	mode     inputMode
	err      error
	width    int
	height   int
	quitting bool
}

func newModel(sess *session.Session) model {
	ti := textinput.New()
	ti.CharLimit = 9
	ti.Width = 10
	return model{
		sess:   sess,
		keys:   defaultKeys(),
		help:   help.New(),
		input:  ti,
		width:  80,
		height: 24,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		return m, nil

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	snap := m.sess.Snapshot()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Play):
		_, m.err = m.sess.PlayPause()
	case key.Matches(msg, m.keys.Faster):
		m.sess.AdjustSpeed(-playback.SpeedStep)
	case key.Matches(msg, m.keys.Slower):
		m.sess.AdjustSpeed(playback.SpeedStep)
	case key.Matches(msg, m.keys.PrevSent):
		_, m.err = m.sess.PrevSentence()
	case key.Matches(msg, m.keys.NextSent):
		_, m.err = m.sess.NextSentence()
	case key.Matches(msg, m.keys.PrevPage):
		_, m.err = m.sess.GoToPage(snap.CurrentPage - 1)
	case key.Matches(msg, m.keys.NextPage):
		_, m.err = m.sess.GoToPage(snap.CurrentPage + 1)
	case key.Matches(msg, m.keys.Restart):
		_, m.err = m.sess.Restart()
	case key.Matches(msg, m.keys.Close):
		m.sess.Close()
	case key.Matches(msg, m.keys.GoWord), key.Matches(msg, m.keys.GoPage):
		if snap.Status != session.StatusDisplay {
			m.err = session.ErrNoDocument
			return m, nil
		}
		m.mode = inputWord
		m.input.Prompt = "word> "
		m.input.SetValue(snap.WordInput)
		if key.Matches(msg, m.keys.GoPage) {
			m.mode = inputPage
			m.input.Prompt = "page> "
			m.input.SetValue(snap.PageInput)
		}
		m.input.CursorEnd()
		return m, m.input.Focus()
	}
	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.sess.Save()
	m.sess.Pause()
	m.quitting = true
	return m, tea.Quit
}

// updateInput edits the pending word or page entry. Arrows step it by
// one without committing; enter commits.
func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEsc:
		m.mode = inputNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		if m.mode == inputWord {
			_, m.err = m.sess.CommitWordInput()
		} else {
			_, m.err = m.sess.CommitPageInput()
		}
		if m.err == nil {
			m.mode = inputNone
			m.input.Blur()
		}
		return m, nil
	case tea.KeyLeft, tea.KeyDown, tea.KeyRight, tea.KeyUp:
		delta := 1
		if msg.Type == tea.KeyLeft || msg.Type == tea.KeyDown {
			delta = -1
		}
		if m.mode == inputWord {
			m.input.SetValue(m.sess.StepWordInput(delta))
		} else {
			m.input.SetValue(m.sess.StepPageInput(delta))
		}
		m.input.CursorEnd()
		return m, nil
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	var ok bool
	if m.mode == inputPage {
		ok = m.sess.SetPageInput(m.input.Value())
	} else {
		ok = m.sess.SetWordInput(m.input.Value())
	}
	if !ok {
		m.input.SetValue(prev)
	}
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.sess.Snapshot()
	var sb strings.Builder

	sb.WriteString(m.statusLine(snap))
	sb.WriteString("\n\n")

	if snap.Status == session.StatusIdle {
		sb.WriteString("  No document loaded.\n")
	} else {
		for _, row := range m.sess.Rows(snap.CurrentPage) {
			sb.WriteString("  ")
			sb.WriteString(renderRow(row, snap.CurrentWordIndex))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		word := snap.CurrentWord()
		sb.WriteString(anchorORPText(formatWord(word), word, m.width))
		sb.WriteString("\n")
	}

	if m.mode != inputNone {
		sb.WriteString("\n")
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString(errorStyle.Render(m.err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m model) statusLine(snap session.Snapshot) string {
	if snap.Status == session.StatusIdle {
		return statusStyle.Render("prr")
	}
	state := ""
	switch {
	case snap.PlaybackState == playback.Paused && snap.CurrentWordIndex == len(snap.Words)-1:
		state = completeStyle.Render(" [COMPLETE]")
	case snap.PlaybackState != playback.Playing:
		state = pausedStyle.Render(" [PAUSED]")
	}
	return statusStyle.Render(fmt.Sprintf("%s | Page %d/%d | Word %d/%d | %dms%s",
		snap.Name,
		snap.CurrentPage, snap.PageCount,
		snap.CurrentWordIndex+1, len(snap.Words),
		snap.TickInterval.Milliseconds(),
		state,
	))
}

// renderRow draws a page row, highlighting the word at current.
func renderRow(row layout.Row, current int) string {
	parts := make([]string, len(row.Words))
	for i, w := range row.Words {
		if row.FirstWord+i == current {
			parts[i] = currentStyle.Render(w)
		} else {
			parts[i] = pageTextStyle.Render(w)
		}
	}
	return strings.Join(parts, " ")
}

func formatWord(word string) string {
	before, focus, after := splitORP(word)
	return wordStyle.Render(before) +
		erpStyle.Render(focus) +
		wordStyle.Render(after)
}

func anchorORPText(text string, word string, width int) string {
	pad := width/2 - orpIndex(word)
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + text
}

// cellMeasurer measures text in terminal cells.
var cellMeasurer = layout.MeasureFunc(func(s string) float64 {
	return float64(lipgloss.Width(s))
})

func runReader(ctx context.Context, e *env, name string, data []byte, store session.PositionStore, ro *readOptions) error {
	if data == nil {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return fmt.Errorf("no input provided: pass a file or pipe text to stdin")
		}
		var err error
		if data, err = io.ReadAll(os.Stdin); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		name = "stdin.txt"
		store = nil
	}

	var prog atomic.Pointer[tea.Program]
	opts := []session.Option{
		session.WithLogger(e.log),
		session.WithInterval(e.cfg.Playback.TickInterval),
		session.WithFresh(ro.fresh),
		session.WithOnChange(func(session.Snapshot) {
			if p := prog.Load(); p != nil {
				go p.Send(changedMsg{})
			}
		}),
	}
	if store != nil {
		opts = append(opts, session.WithStore(store))
	}
	sess, err := session.New(extract.Default, cellMeasurer, e.cfg.Terminal.Layout(), opts...)
	if err != nil {
		return err
	}
	if err := sess.Upload(ctx, name, data); err != nil {
		return err
	}
	defer sess.Close()

	p := tea.NewProgram(newModel(sess), tea.WithAltScreen(), tea.WithContext(ctx))
	prog.Store(p)
	if _, err := p.Run(); err != nil {
		e.log.Error("tui exited", zap.Error(err))
		return err
	}
	return nil
}
