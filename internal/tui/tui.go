package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tatianab/neon-trials/internal/engine"
)

type sessionState int

const (
	stateLoading sessionState = iota
	statePlaying
	stateError
)

type model struct {
	ctx       context.Context
	state     sessionState
	session   *engine.Session
	links     Links
	view      engine.View
	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	pending   map[engine.Action]bool
	notice    string
	history   []string
	err       error
	now       time.Time
	width     int
	height    int
}

// Links are the external pages the screen points players to.
type Links struct {
	Market      string
	Leaderboard string
}

// NewModel returns the game screen for a connected session.
func NewModel(ctx context.Context, s *engine.Session, links Links) model {
	ti := textinput.New()
	ti.Placeholder = "Path number or /command..."
	ti.Focus()
	ti.CharLimit = 80
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = accentStyle

	return model{
		ctx:       ctx,
		state:     stateLoading,
		session:   s,
		links:     links,
		textInput: ti,
		spinner:   sp,
		pending:   make(map[engine.Action]bool),
		now:       time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, tick(), m.load())
}

type tickMsg time.Time

type loadedMsg struct {
	err error
}

type actionDoneMsg struct {
	action engine.Action
	err    error
}

type narratedMsg struct{}

// tick drives the cooldown display. Bubble Tea drops it when the program
// exits.
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEsc:
			if m.notice != "" {
				m.notice = ""
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEnter:
			if m.notice != "" {
				m.notice = ""
				return m, nil
			}
			if m.state != statePlaying {
				return m, nil
			}
			input := m.textInput.Value()
			m.textInput.Reset()
			return m.submit(input)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = int(float64(msg.Width) * 0.6)
		m.viewport.Height = max(msg.Height-8, 4)
		m.viewport.SetContent(m.renderStory())

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.state = statePlaying
		m.refreshView()
		return m, m.narrate()

	case actionDoneMsg:
		delete(m.pending, msg.action)
		switch {
		case engine.IsValidation(msg.err):
			m.notice = msg.err.Error()
		case errors.Is(msg.err, engine.ErrBusy):
			m.notice = "Still working on that. Hold on."
		}
		m.refreshView()
		return m, m.narrate()

	case narratedMsg:
		m.refreshView()
		return m, nil
	}

	if m.state == statePlaying && m.notice == "" {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) submit(input string) (tea.Model, tea.Cmd) {
	c, err := parseCommand(input)
	if err != nil {
		m.notice = err.Error() + "\n\n" + helpText
		return m, nil
	}
	switch c.kind {
	case cmdQuit:
		return m, tea.Quit
	case cmdHelp:
		m.notice = m.howTo()
		return m, nil
	}

	a := c.action()
	if m.pending[a] || m.session.Busy(a) {
		return m, nil
	}
	m.pending[a] = true
	s, ctx := m.session, m.ctx
	return m, func() tea.Msg {
		return actionDoneMsg{action: a, err: c.exec(ctx, s)}
	}
}

func (m model) howTo() string {
	s := helpText + "\n\n" + howToPlay
	if m.links.Market != "" {
		s += "\n\nFuel cores: " + m.links.Market
	}
	if m.links.Leaderboard != "" {
		s += "\nLeaderboard: " + m.links.Leaderboard
	}
	return s
}

func (m *model) refreshView() {
	m.view = m.session.View()
	if st := m.view.Status; st != "" && (len(m.history) == 0 || m.history[len(m.history)-1] != st) {
		m.history = append(m.history, st)
		if len(m.history) > 50 {
			m.history = m.history[len(m.history)-50:]
		}
	}
	m.viewport.SetContent(m.renderStory())
}

func (m model) busy() bool {
	return len(m.pending) > 0 || m.state == stateLoading
}

func (m model) load() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return loadedMsg{err: s.Load(ctx)}
	}
}

func (m model) narrate() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		s.Narrate(ctx)
		return narratedMsg{}
	}
}

// Run shows the game until the player quits or ctx is cancelled.
func Run(ctx context.Context, s *engine.Session, links Links) error {
	p := tea.NewProgram(NewModel(ctx, s, links), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
