package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/story-forge/internal/playback"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

// recentHistory is how many past runs the side panel lists.
const recentHistory = 5

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	sidePanelStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingTop(1)
)

type eventMsg struct {
	event playback.Event
	// ok is false once the run's channel is closed.
	ok bool
}

type historyMsg struct {
	entries []content.HistoryEntry
	err     error
}

// PlayerUI is the BubbleTea model of the playback app.
type PlayerUI struct {
	ctx     context.Context
	player  *playback.Player
	store   *storage.Store
	pub     publisher
	logger  *slog.Logger
	spinner spinner.Model
	story   viewport.Model

	playing bool
	runID   string
	events  <-chan playback.Event
	cancel  context.CancelFunc

	lines   []string
	history []content.HistoryEntry
	err     error
	width   int
	height  int
}

func NewPlayerUI(ctx context.Context, player *playback.Player, store *storage.Store, pub publisher, log *slog.Logger) PlayerUI {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return PlayerUI{
		ctx:     ctx,
		player:  player,
		store:   store,
		pub:     pub,
		logger:  log,
		spinner: sp,
		story:   viewport.New(60, 20),
	}
}

func (m PlayerUI) Init() tea.Cmd {
	return m.loadHistory()
}

func (m PlayerUI) loadHistory() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.store.LoadHistory()
		return historyMsg{entries, err}
	}
}

// waitForEvent receives the next event and relays it before handing it to Update.
func (m PlayerUI) waitForEvent() tea.Cmd {
	events, runID := m.events, m.runID
	return func() tea.Msg {
		e, ok := <-events
		if ok {
			relay(m.ctx, m.pub, runID, e, m.logger)
		}
		return eventMsg{event: e, ok: ok}
	}
}

func (m *PlayerUI) start() tea.Cmd {
	runCtx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.runID = uuid.New().String()
	m.events = m.player.Run(runCtx)
	m.playing = true
	m.lines = nil
	m.err = nil
	m.render()
	return tea.Batch(m.waitForEvent(), m.spinner.Tick)
}

func (m *PlayerUI) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *PlayerUI) render() {
	width := max(m.story.Width-2, 10)
	wrapped := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		wrapped = append(wrapped, wordwrap.String(l, width))
	}
	m.story.SetContent(strings.Join(wrapped, "\n"))
	m.story.GotoBottom()
}

func (m PlayerUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.story.Width = max(int(float64(m.width)*0.7)-2, 20)
		m.story.Height = max(m.height-4, 5)
		m.render()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.stop()
			return m, tea.Quit
		case "enter", " ":
			if !m.playing {
				cmd := m.start()
				return m, cmd
			}
		case "s":
			if m.playing {
				m.stop()
			}
		}
		var cmd tea.Cmd
		m.story, cmd = m.story.Update(msg)
		return m, cmd

	case eventMsg:
		if !msg.ok {
			m.playing = false
			m.stop()
			return m, m.loadHistory()
		}
		m.apply(msg.event)
		return m, m.waitForEvent()

	case historyMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.history = msg.entries
		return m, nil

	case spinner.TickMsg:
		if !m.playing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *PlayerUI) apply(e playback.Event) {
	switch e.Type {
	case playback.EventHiring:
		line := fmt.Sprintf("%sが%sへ向かった。", e.Adventurer, e.Area)
		if e.Precursor != "" {
			line += fmt.Sprintf("（先人: %s）", e.Precursor)
		}
		m.lines = append(m.lines, titleStyle.Render(line), "")
	case playback.EventMessage:
		m.lines = append(m.lines, timeStyle.Render(e.Time.Format("15:04"))+" "+
			locationStyle.Render("["+e.Location+"]")+" "+e.Text)
	case playback.EventSummary:
		m.lines = append(m.lines, "", summaryStyle.Render(e.Summary.String()))
	case playback.EventError:
		m.err = e.Err
		m.lines = append(m.lines, errorStyle.Render("Error: "+e.Err.Error()))
	}
	m.render()
}

func (m PlayerUI) sidePanel() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("最近の冒険") + "\n\n")
	if len(m.history) == 0 {
		sb.WriteString(promptStyle.Render("まだ記録はありません") + "\n")
	}
	start := max(len(m.history)-recentHistory, 0)
	for i := len(m.history) - 1; i >= start; i-- {
		h := m.history[i]
		fmt.Fprintf(&sb, "%s %s\n  %s %d円\n", h.Timestamp.Format("01/02 15:04"), h.Adventurer, h.Outcome, h.Prize)
	}
	return sb.String()
}

func (m PlayerUI) View() string {
	status := promptStyle.Render("Enter: 冒険を始める  q: 終了")
	if m.playing {
		status = m.spinner.View() + " " + promptStyle.Render("冒険中...  s: 中断  q: 終了")
	}
	main := lipgloss.JoinVertical(lipgloss.Left, m.story.View(), "", status)
	return lipgloss.JoinHorizontal(lipgloss.Top, main, sidePanelStyle.Render(m.sidePanel()))
}
