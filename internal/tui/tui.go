// Package tui provides the Bubble Tea timer view for pomo run.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/pomosync/internal/pomodoro"
	"github.com/fakeyudi/pomosync/internal/state"
	"github.com/fakeyudi/pomosync/internal/stats"
	"github.com/fakeyudi/pomosync/internal/tasks"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(1, 4)

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	dotDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// modeColor tints the clock per phase.
var modeColor = map[state.Mode]lipgloss.Color{
	state.ModeWork:       lipgloss.Color("203"),
	state.ModeShortBreak: lipgloss.Color("79"),
	state.ModeLongBreak:  lipgloss.Color("75"),
}

var modeOrder = []state.Mode{state.ModeWork, state.ModeShortBreak, state.ModeLongBreak}

var modeLabel = map[state.Mode]string{
	state.ModeWork:       "Focus",
	state.ModeShortBreak: "Short Break",
	state.ModeLongBreak:  "Long Break",
}

// ── Keys ────────────

type keyMap struct {
	Toggle   key.Binding
	Reset    key.Binding
	Skip     key.Binding
	Mode     key.Binding
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Done     key.Binding
	Help     key.Binding
	Quit     key.Binding
	modeKeys map[string]state.Mode
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/pause")),
		Reset:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		Skip:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		Mode:   key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1-3", "phase")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select task")),
		Done:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "toggle done")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		modeKeys: map[string]state.Mode{
			"1": state.ModeWork,
			"2": state.ModeShortBreak,
			"3": state.ModeLongBreak,
		},
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Reset, k.Skip, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Reset, k.Skip, k.Mode},
		{k.Up, k.Down, k.Select, k.Done},
		{k.Help, k.Quit},
	}
}

// ── Model ────────────

// Timer is the part of the pomodoro controller the view drives.
type Timer interface {
	Snapshot() state.Snapshot
	Mode() state.Mode
	Remaining() int
	Running() bool
	Toggle() error
	Reset()
	Skip()
	SetMode(m state.Mode)
	Sync()
	Checkpoint(ctx context.Context)
	Update(fn func(s *state.Snapshot))
}

// refreshMsg is sent by the controller after every tick or state change.
type refreshMsg struct{}

// Model is the root Bubble Tea model for the timer view.
type Model struct {
	timer  Timer
	now    func() time.Time
	keys   keyMap
	help   help.Model
	tasks  viewport.Model
	cursor int
	width  int
	height int
	ready  bool
	err    error
}

// New creates a timer view over t.
func New(t Timer) Model {
	return Model{
		timer: t,
		now:   time.Now,
		keys:  defaultKeys(),
		help:  help.New(),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			m.err = m.timer.Toggle()
		case key.Matches(msg, m.keys.Reset):
			m.timer.Reset()
		case key.Matches(msg, m.keys.Skip):
			m.timer.Skip()
		case key.Matches(msg, m.keys.Mode):
			m.timer.SetMode(m.keys.modeKeys[msg.String()])
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.timer.Snapshot().Tasks)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Select):
			m.updateTask(tasks.Select)
		case key.Matches(msg, m.keys.Done):
			m.updateTask(func(s *state.Snapshot, id int64) error {
				_, err := tasks.ToggleDone(s, id)
				return err
			})
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		m.refreshTasks()
		return m, nil

	case tea.FocusMsg:
		// A terminal regaining focus may have been suspended.
		m.timer.Sync()
		return m, nil

	case tea.BlurMsg:
		// Losing focus may precede the terminal being closed or suspended.
		m.timer.Checkpoint(context.Background())
		return m, nil

	case refreshMsg:
		m.refreshTasks()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.tasks = viewport.New(msg.Width, m.taskHeight())
			m.ready = true
		} else {
			m.tasks.Width = msg.Width
			m.tasks.Height = m.taskHeight()
		}
		m.refreshTasks()
		return m, nil
	}
	return m, nil
}

func (m *Model) updateTask(op func(s *state.Snapshot, id int64) error) {
	list := m.timer.Snapshot().Tasks
	if m.cursor >= len(list) {
		return
	}
	id := list[m.cursor].ID
	m.timer.Update(func(s *state.Snapshot) {
		if err := op(s, id); err != nil {
			m.err = err
		}
	})
}

// title(1) + tabs(1) + clock(5) + dots(1) + stats(2) + heading(3) + help(2)
const fixedRows = 15

func (m Model) taskHeight() int {
	return max(1, m.height-fixedRows)
}

func (m *Model) refreshTasks() {
	if !m.ready {
		return
	}
	m.tasks.SetContent(m.renderTasks(m.timer.Snapshot()))
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}
	snap := m.timer.Snapshot()
	mode := m.timer.Mode()

	title := titleStyle.Width(m.width).Render("  pomo  " + m.now().Format("Mon Jan 2"))

	var tabs []string
	for _, md := range modeOrder {
		style := inactiveTabStyle
		if md == mode {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(" "+modeLabel[md]+" "))
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	runState := "paused"
	if m.timer.Running() {
		runState = "running"
	}
	clock := clockStyle.Foreground(modeColor[mode]).Render(FormatClock(m.timer.Remaining()))
	status := dimStyle.Render(runState)

	sum := stats.Today(snap, m.now())
	statsLine := fmt.Sprintf("%s %d/%d   %s %s   %s %d",
		labelStyle.Render("Today:"), sum.Pomodoros, sum.DailyGoal,
		labelStyle.Render("Focus:"), fmt.Sprintf("%dm", sum.FocusMinutes),
		labelStyle.Render("Streak:"), sum.Streak)
	current := dimStyle.Render("no task selected")
	if sum.CurrentTask != "" {
		current = labelStyle.Render("Working on:") + " " + sum.CurrentTask
	}

	parts := []string{
		title,
		tabRow,
		lipgloss.JoinHorizontal(lipgloss.Center, clock, status),
		"  " + Dots(snap.PomodorosCompleted, snap.Settings.LongBreakInterval),
		"  " + statsLine,
		"  " + current,
		"\n" + sectionHeader.Render("  Tasks"),
		m.tasks.View(),
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render("  "+m.err.Error()))
	}
	parts = append(parts, "  "+m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderTasks(snap state.Snapshot) string {
	if len(snap.Tasks) == 0 {
		return dimStyle.Render("  (no tasks, add one with 'pomo task add')")
	}
	var sb strings.Builder
	for i, t := range snap.Tasks {
		box := "[ ]"
		if t.Done {
			box = "[x]"
		}
		marker := "  "
		if snap.CurrentTaskID != nil && *snap.CurrentTaskID == t.ID {
			marker = "▶ "
		}
		progress := fmt.Sprintf("%d", t.CompletedPomodoros)
		if t.EstimatedPomodoros != nil {
			progress += fmt.Sprintf("/%d", *t.EstimatedPomodoros)
		}
		row := fmt.Sprintf("%s%s %s %s", marker, box, t.Name, dimStyle.Render("("+progress+")"))
		if i == m.cursor {
			row = selectedRowStyle.Width(max(1, m.width-2)).Render(row)
		}
		sb.WriteString("  " + row + "\n")
	}
	return sb.String()
}

// FormatClock renders whole seconds as MM:SS, or H:MM:SS past an hour.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Dots shows progress toward the next long break.
func Dots(completed, interval int) string {
	if interval <= 0 {
		return ""
	}
	filled := completed % interval
	if completed > 0 && filled == 0 {
		filled = interval
	}
	return dotDoneStyle.Render(strings.Repeat("● ", filled)) + dimStyle.Render(strings.Repeat("○ ", interval-filled))
}

// Run starts the timer view for c and blocks until the user quits.
func Run(c *pomodoro.Controller) error {
	p := tea.NewProgram(New(c), tea.WithAltScreen(), tea.WithReportFocus())
	// Updates also fire from inside Update, on the event loop itself, so
	// the send must not block.
	c.OnUpdate(func() { go p.Send(refreshMsg{}) })
	defer c.OnUpdate(nil)
	_, err := p.Run()
	return err
}
