package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/ssdp/internal/engine"
	"github.com/muurk/ssdp/internal/protocol"
)

// eventQueueSize bounds the events buffered between the engine and the UI.
const eventQueueSize = 256

// EventMsg carries one engine event into the watch program.
type EventMsg struct {
	Notification *protocol.Notification
	Reason       engine.Reason
	Time         time.Time
}

type tickMsg time.Time

// closedMsg reports that the event channel was closed.
type closedMsg struct{}

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Clear key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Clear, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Clear, k.Quit}}
}

var watchKeys = watchKeyMap{
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

// watchRow is one service shown by the watch table
type watchRow struct {
	usn      string
	subject  string
	address  string
	location string
	expires  time.Time
	reason   engine.Reason
}

// WatchModel is a Bubble Tea model showing the services seen on the network,
// updated live from engine events.
type WatchModel struct {
	title  string
	events <-chan EventMsg
	now    func() time.Time

	rows   map[string]*watchRow
	total  int
	last   string
	closed bool

	table  table.Model
	help   help.Model
	width  int
	height int
}

// NewWatchModel creates a watch model reading events from ch.
func NewWatchModel(title string, ch <-chan EventMsg) WatchModel {
	width, height := GetTerminalSize()

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(PrimaryColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(TextColor).
		Background(PrimaryColor).
		Bold(false)

	m := WatchModel{
		title:  title,
		events: ch,
		now:    time.Now,
		rows:   make(map[string]*watchRow),
		table: table.New(
			table.WithFocused(true),
			table.WithStyles(styles),
		),
		help: help.New(),
	}
	m.resize(width, height)
	return m
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick())
}

func waitForEvent(ch <-chan EventMsg) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return ev
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, watchKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, watchKeys.Clear):
			m.rows = make(map[string]*watchRow)
			m.refresh()
			return m, nil
		}

	case EventMsg:
		m.apply(msg)
		m.refresh()
		return m, waitForEvent(m.events)

	case closedMsg:
		m.closed = true
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// apply records one event in the row set.
func (m *WatchModel) apply(ev EventMsg) {
	n := ev.Notification
	usn := n.USN()
	m.total++
	m.last = fmt.Sprintf("%s %s %s", ev.Time.Format("15:04:05"), ev.Reason, usn)

	switch ev.Reason {
	case engine.Removed, engine.Expired:
		delete(m.rows, usn)
		return
	case engine.Other:
		return
	}

	row := &watchRow{
		usn:      usn,
		subject:  n.Subject(),
		location: n.Location(),
		expires:  ev.Time.Add(n.MaxAge()),
		reason:   ev.Reason,
	}
	if n.Address != nil {
		row.address = n.Address.String()
	}
	m.rows[usn] = row
}

func (m *WatchModel) resize(width, height int) {
	m.width = clampWidth(width)
	m.height = height

	// USN takes what the fixed columns leave
	fixed := 24 + 16 + 30 + 9 + 8
	usnWidth := m.width - fixed - 12
	if usnWidth < 20 {
		usnWidth = 20
	}
	m.table.SetColumns([]table.Column{
		{Title: "USN", Width: usnWidth},
		{Title: "SUBJECT", Width: 24},
		{Title: "ADDRESS", Width: 16},
		{Title: "LOCATION", Width: 30},
		{Title: "EXPIRES", Width: 9},
		{Title: "LAST", Width: 8},
	})

	// Title, status and help lines
	tableHeight := height - 6
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.table.SetHeight(tableHeight)
	m.table.SetWidth(m.width)
	m.help.Width = m.width
}

// refresh rebuilds the table rows sorted by USN.
func (m *WatchModel) refresh() {
	now := m.now()
	usns := make([]string, 0, len(m.rows))
	for usn := range m.rows {
		usns = append(usns, usn)
	}
	sort.Strings(usns)

	rows := make([]table.Row, 0, len(usns))
	for _, usn := range usns {
		r := m.rows[usn]
		remaining := r.expires.Sub(now).Truncate(time.Second)
		expires := remaining.String()
		if remaining <= 0 {
			expires = "overdue"
		}
		rows = append(rows, table.Row{r.usn, r.subject, r.address, r.location, expires, r.reason.String()})
	}
	m.table.SetRows(rows)
}

// Services returns the number of services currently shown.
func (m WatchModel) Services() int {
	return len(m.rows)
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render(strings.ToUpper(m.title)))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	status := fmt.Sprintf("%d service(s), %d event(s)", len(m.rows), m.total)
	if m.last != "" {
		status += "  last: " + m.last
	}
	if m.closed {
		status += "  (event source closed)"
	}
	b.WriteString(StatusBarStyle.Render(status))
	b.WriteString("\n")
	b.WriteString(m.help.View(watchKeys))
	return b.String()
}

// Subscriber is the engine surface the watch screen needs.
type Subscriber interface {
	Subscribe(l engine.Listener) (unsubscribe func())
}

// Watch runs the live service table until the user quits or ctx ends.
// Events arriving faster than the screen drains them are dropped.
func Watch(ctx context.Context, title string, src Subscriber) error {
	ch := make(chan EventMsg, eventQueueSize)
	unsubscribe := src.Subscribe(func(n *protocol.Notification, r engine.Reason) {
		select {
		case ch <- EventMsg{Notification: n, Reason: r, Time: time.Now()}:
		default:
		}
	})
	defer unsubscribe()

	p := tea.NewProgram(NewWatchModel(title, ch), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
