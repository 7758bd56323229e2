package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

type screen int

const (
	screenAreas screen = iota
	screenAdventures
	screenAdventure
	screenAreaInfo
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

type areasLoadedMsg struct {
	items []list.Item
	err   error
}

type adventuresLoadedMsg struct {
	items []list.Item
	err   error
}

type detailLoadedMsg struct {
	text string
	err  error
}

type deletedMsg struct {
	kind storage.Kind
	msgs []string
	err  error
}

// pendingDelete is a delete waiting for confirmation.
type pendingDelete struct {
	kind  storage.Kind
	area  string
	names []string
	label string
}

// ViewerUI is the BubbleTea model of the content viewer.
type ViewerUI struct {
	ctx     context.Context
	browser *browser

	screen     screen
	areas      list.Model
	adventures list.Model
	detail     viewport.Model
	area       content.Area
	adventure  content.Adventure

	// startArea and startAdv open a view directly once data is loaded.
	startArea string
	startAdv  string

	confirm *pendingDelete
	status  string
	err     error
	width   int
	height  int

	// copyText writes to the system clipboard. Replaced in tests.
	copyText func(string) error
}

func NewViewerUI(ctx context.Context, b *browser, startArea, startAdv string, copyText func(string) error) ViewerUI {
	areas := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	areas.Title = "エリア"
	adventures := list.New(nil, list.NewDefaultDelegate(), 0, 0)

	return ViewerUI{
		ctx:        ctx,
		browser:    b,
		areas:      areas,
		adventures: adventures,
		detail:     viewport.New(0, 0),
		startArea:  startArea,
		startAdv:   startAdv,
		copyText:   copyText,
	}
}

func (m ViewerUI) Init() tea.Cmd {
	return m.loadAreas()
}

func (m ViewerUI) loadAreas() tea.Cmd {
	return func() tea.Msg {
		items, err := m.browser.areaItems(m.ctx)
		return areasLoadedMsg{items, err}
	}
}

func (m ViewerUI) loadAdventures(area string) tea.Cmd {
	return func() tea.Msg {
		items, err := m.browser.adventureItems(area)
		return adventuresLoadedMsg{items, err}
	}
}

func (m ViewerUI) loadDetail(a content.Adventure) tea.Cmd {
	width := m.contentWidth()
	return func() tea.Msg {
		text, err := m.browser.adventureDetail(a, width)
		return detailLoadedMsg{text, err}
	}
}

func (m ViewerUI) runDelete(d pendingDelete) tea.Cmd {
	return func() tea.Msg {
		msgs, err := m.browser.delete(m.ctx, d.kind, d.area, d.names...)
		return deletedMsg{kind: d.kind, msgs: msgs, err: err}
	}
}

func (m ViewerUI) contentWidth() int {
	if m.width <= 4 {
		return 80
	}
	return m.width - 4
}

func (m *ViewerUI) resize() {
	h := max(m.height-3, 1)
	m.areas.SetSize(m.width, h)
	m.adventures.SetSize(m.width, h)
	m.detail.Width = m.width
	m.detail.Height = h
}

func (m ViewerUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		return m.updateConfirm(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		if m.screen == screenAdventure {
			return m, m.loadDetail(m.adventure)
		}
		return m, nil

	case areasLoadedMsg:
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		cmd := m.areas.SetItems(msg.items)
		if m.startArea != "" {
			name := m.startArea
			m.startArea = ""
			for i, it := range msg.items {
				if it.(areaItem).area.Name == name {
					m.areas.Select(i)
					open := m.openArea(it.(areaItem).area)
					return m, tea.Batch(cmd, open)
				}
			}
			m.status = fmt.Sprintf("エリア %s が見つかりません", name)
		}
		return m, cmd

	case adventuresLoadedMsg:
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		cmd := m.adventures.SetItems(msg.items)
		if m.startAdv != "" {
			name := m.startAdv
			m.startAdv = ""
			for i, it := range msg.items {
				if it.(adventureItem).adventure.Name == name {
					m.adventures.Select(i)
					open := m.openAdventure(it.(adventureItem).adventure)
					return m, tea.Batch(cmd, open)
				}
			}
			m.status = fmt.Sprintf("冒険 %s が見つかりません", name)
		}
		return m, cmd

	case detailLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.detail.SetContent(msg.text)
		}
		return m, nil

	case deletedMsg:
		m.err = msg.err
		m.status = fmt.Sprintf("%d件削除しました", len(msg.msgs))
		switch msg.kind {
		case storage.KindArea:
			m.screen = screenAreas
			return m, m.loadAreas()
		case storage.KindAdventure:
			return m, tea.Batch(m.loadAreas(), m.loadAdventures(m.area.Name))
		default:
			return m, tea.Batch(m.loadAreas(), m.loadAdventures(m.area.Name), m.loadDetail(m.adventure))
		}

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filtering() {
			break
		}
		m.status = ""
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenAreas:
		m.areas, cmd = m.areas.Update(msg)
	case screenAdventures:
		m.adventures, cmd = m.adventures.Update(msg)
	default:
		m.detail, cmd = m.detail.Update(msg)
	}
	return m, cmd
}

func (m ViewerUI) filtering() bool {
	switch m.screen {
	case screenAreas:
		return m.areas.FilterState() == list.Filtering
	case screenAdventures:
		return m.adventures.FilterState() == list.Filtering
	}
	return false
}

// handleKey runs the viewer's own bindings. Unhandled keys go to the active component.
func (m ViewerUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	key := msg.String()
	switch m.screen {
	case screenAreas:
		it, ok := m.areas.SelectedItem().(areaItem)
		switch key {
		case "q":
			return m, tea.Quit, true
		case "r":
			return m, m.loadAreas(), true
		case "enter":
			if ok {
				cmd := m.openArea(it.area)
				return m, cmd, true
			}
		case "i":
			if ok {
				m.area = it.area
				m.screen = screenAreaInfo
				m.detail.SetContent(m.browser.areaInfo(it.area, m.contentWidth()))
				m.detail.GotoTop()
				return m, nil, true
			}
		case "d":
			if ok {
				m.confirm = &pendingDelete{kind: storage.KindArea, names: []string{it.area.Name}, label: "エリア " + it.area.Name}
				return m, nil, true
			}
		}

	case screenAdventures:
		it, ok := m.adventures.SelectedItem().(adventureItem)
		switch key {
		case "esc", "backspace":
			m.screen = screenAreas
			return m, nil, true
		case "enter":
			if ok {
				cmd := m.openAdventure(it.adventure)
				return m, cmd, true
			}
		case "d":
			if ok {
				m.confirm = &pendingDelete{kind: storage.KindAdventure, area: m.area.Name, names: []string{it.adventure.Name}, label: "冒険 " + it.adventure.Name}
				return m, nil, true
			}
		}

	case screenAdventure:
		switch key {
		case "esc", "backspace":
			m.screen = screenAdventures
			return m, nil, true
		case "c":
			m.status = m.copyLog()
			return m, nil, true
		case "d":
			m.confirm = &pendingDelete{kind: storage.KindLog, area: m.area.Name, names: []string{m.adventure.Name}, label: m.adventure.Name + " のログ"}
			return m, nil, true
		}

	case screenAreaInfo:
		if key == "esc" || key == "backspace" {
			m.screen = screenAreas
			return m, nil, true
		}
	}
	return m, nil, false
}

func (m *ViewerUI) openArea(a content.Area) tea.Cmd {
	m.area = a
	m.screen = screenAdventures
	m.adventures.Title = fmt.Sprintf("%s (Lv%d)", a.Name, a.Difficulty)
	m.adventures.ResetFilter()
	return m.loadAdventures(a.Name)
}

func (m *ViewerUI) openAdventure(a content.Adventure) tea.Cmd {
	m.adventure = a
	m.screen = screenAdventure
	m.detail.SetContent("")
	m.detail.GotoTop()
	return m.loadDetail(a)
}

func (m ViewerUI) copyLog() string {
	text, err := m.browser.logText(m.adventure)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "ログがありません"
		}
		return "コピーに失敗しました: " + err.Error()
	}
	if err := m.copyText(text); err != nil {
		return "コピーに失敗しました: " + err.Error()
	}
	return "ログをクリップボードにコピーしました"
}

func (m ViewerUI) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			d := *m.confirm
			m.confirm = nil
			return m, m.runDelete(d)
		case "n", "N", "esc":
			m.confirm = nil
		case "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ViewerUI) renderConfirm() string {
	var sb strings.Builder
	sb.WriteString(modalTitleStyle.Render("削除しますか？"))
	sb.WriteString("\n\n")
	sb.WriteString(m.confirm.label + " と関連するデータを削除します。")
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Y: 削除  N: キャンセル"))
	modal := modalStyle.Width(50).Render(sb.String())
	if m.width == 0 || m.height == 0 {
		return modal
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ViewerUI) help() string {
	switch m.screen {
	case screenAreas:
		return "enter: 開く  i: エリア情報  d: 削除  /: 絞り込み  r: 再読込  q: 終了"
	case screenAdventures:
		return "enter: 開く  d: 削除  /: 絞り込み  esc: 戻る"
	case screenAdventure:
		return "↑/↓: スクロール  c: ログをコピー  d: ログを削除  esc: 戻る"
	default:
		return "esc: 戻る"
	}
}

func (m ViewerUI) View() string {
	if m.confirm != nil {
		return m.renderConfirm()
	}

	var body string
	switch m.screen {
	case screenAreas:
		body = m.areas.View()
	case screenAdventures:
		body = m.adventures.View()
	default:
		body = m.detail.View()
	}

	footer := dimStyle.Render(m.help())
	if m.err != nil {
		footer = errorStyle.Render("Error: "+m.err.Error()) + "\n" + footer
	} else if m.status != "" {
		footer = statusStyle.Render(m.status) + "\n" + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}
