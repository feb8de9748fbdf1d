package results

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobradar/internal/cache"
	"github.com/amishk599/jobradar/internal/model"
)

// Lines per listing in the list view (title + subtitle + blank separator).
const itemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(12)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	fitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	noFitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// removedMsg is sent when an async removal completes.
type removedMsg struct {
	collection string
	id         string
	err        error
}

type browserModel struct {
	src   Source
	panes [2][]model.CacheEntry // matching, rejected

	viewports  [2]viewport.Model
	activePane int
	cursors    [2]int
	width      int
	height     int
	ready      bool

	view            viewState
	detail          model.CacheEntry
	detailViewport  viewport.Model
	showRationale   bool
	showDescription bool

	status   string
	removing bool
}

func newBrowserModel(src Source, set Set) browserModel {
	return browserModel{
		src:   src,
		panes: [2][]model.CacheEntry{set.Matching, set.Rejected},
	}
}

func paneCollection(pane int) string {
	if pane == 0 {
		return cache.Matching
	}
	return cache.Rejected
}

func (m browserModel) Init() tea.Cmd {
	return nil
}

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case removedMsg:
		m.removing = false
		if msg.err != nil {
			m.status = fmt.Sprintf("remove failed: %v", msg.err)
			return m, nil
		}
		m.dropEntry(msg.collection, msg.id)
		m.status = fmt.Sprintf("removed %s from %s", msg.id, msg.collection)
		m.view = viewList
		m.recalcContent()
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browserModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	case "x", "delete":
		if e, ok := m.selected(); ok {
			return m.remove(paneCollection(m.activePane), e.ID)
		}
		return m, nil
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewports[m.activePane], cmd = m.viewports[m.activePane].Update(msg)
	return m, cmd
}

func (m browserModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.detail.SourceURL)
		return m, nil
	case "w":
		m.showRationale = !m.showRationale
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil
	case "r":
		if m.detail.Description != "" {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	case "x", "delete":
		return m.remove(CollectionOf(m.detail), m.detail.ID)
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

// CollectionOf returns the collection an entry is kept in.
func CollectionOf(e model.CacheEntry) string {
	return cache.CollectionFor(e.Verdict)
}

func (m browserModel) remove(collection, id string) (tea.Model, tea.Cmd) {
	if m.removing || collection == "" {
		return m, nil
	}
	m.removing = true
	m.status = "removing " + id + "..."
	src := m.src
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		removed, err := src.Remove(ctx, collection, id)
		if err == nil && !removed {
			err = fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return removedMsg{collection: collection, id: id, err: err}
	}
}

func (m *browserModel) dropEntry(collection, id string) {
	pane := 0
	if collection == cache.Rejected {
		pane = 1
	}
	list := m.panes[pane]
	for i := range list {
		if list[i].ID == id {
			m.panes[pane] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	m.cursors[pane] = clamp(m.cursors[pane], 0, max(len(m.panes[pane])-1, 0))
}

func (m browserModel) selected() (model.CacheEntry, bool) {
	list := m.panes[m.activePane]
	if len(list) == 0 {
		return model.CacheEntry{}, false
	}
	return list[m.cursors[m.activePane]], true
}

func (m *browserModel) moveCursor(delta int) {
	p := m.activePane
	m.cursors[p] = clamp(m.cursors[p]+delta, 0, max(len(m.panes[p])-1, 0))
}

func (m *browserModel) ensureCursorVisible() {
	if !m.ready {
		return
	}
	vp := &m.viewports[m.activePane]
	cursorTop := m.cursors[m.activePane] * itemHeight
	cursorBottom := cursorTop + itemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m browserModel) openDetailView() (tea.Model, tea.Cmd) {
	e, ok := m.selected()
	if !ok {
		return m, nil
	}
	m.view = viewDetail
	m.detail = e
	m.showRationale = true
	m.showDescription = false
	m.detailViewport = viewport.New(max(m.width-4, 20), max(m.height-4, 5))
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *browserModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.viewports[0] = viewport.New(paneWidth, paneHeight)
		m.viewports[1] = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		for i := range m.viewports {
			m.viewports[i].Width = paneWidth
			m.viewports[i].Height = paneHeight
		}
	}

	m.recalcContent()
}

func (m *browserModel) recalcContent() {
	if !m.ready {
		return
	}
	for i := range m.viewports {
		m.viewports[i].SetContent(renderEntries(m.panes[i], m.cursors[i], m.activePane == i))
	}
}

func (m browserModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m browserModel) viewList() string {
	paneWidth := m.viewports[0].Width

	headers := [2]string{
		fmt.Sprintf(" Matching (%d)", len(m.panes[0])),
		fmt.Sprintf(" Rejected (%d)", len(m.panes[1])),
	}
	var rendered [2]string
	var panes [2]string
	for i := range headers {
		header, border := inactiveHeaderStyle, inactiveBorderStyle
		if i == m.activePane {
			header, border = activeHeaderStyle, activeBorderStyle
		}
		rendered[i] = lipgloss.NewStyle().Width(paneWidth + 2).Render(header.Render(headers[i]))
		panes[i] = border.Width(paneWidth).Render(m.viewports[i].View())
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top, rendered[0], " ", rendered[1])
	body := lipgloss.JoinHorizontal(lipgloss.Top, panes[0], " ", panes[1])

	statusText := " ←/→/Tab switch  ↑/↓ cursor  Enter detail  x remove  q quit"
	if m.status != "" {
		statusText = " " + m.status + "  |" + statusText
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + body + "\n" + statusBar
}

func (m browserModel) viewDetail() string {
	title := detailTitleStyle.Render("Listing Details")
	if m.removing {
		title += "  (removing...)"
	}

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open URL  w rationale  x remove  esc back  ↑/↓ scroll  q quit"
	if m.detail.Description != "" {
		statusText = " o open URL  w rationale  r desc  x remove  esc back  ↑/↓ scroll  q quit"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m browserModel) renderDetail() string {
	e := m.detail
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	addField("Title", e.Title)
	addField("Company", e.Company)
	addField("Location", e.Location)
	addField("Salary", e.Salary)
	addField("Listing ID", e.ID)
	addField("Verdict", verdictLabel(e.Verdict))
	addField("Evaluated", formatTime(e))
	b.WriteByte('\n')
	addField("URL", e.SourceURL)

	if m.status != "" && strings.HasPrefix(m.status, "remove failed") {
		b.WriteByte('\n')
		b.WriteString(errorStyle.Render("⚠ "+m.status) + "\n")
	}

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	b.WriteByte('\n')
	if m.showRationale {
		b.WriteString(divider("── Rationale ") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(Rationale(e), wrapWidth)) + "\n")
	} else {
		b.WriteString(hintStyle.Render("  press w to show the rationale") + "\n")
	}

	if e.Description != "" {
		b.WriteByte('\n')
		if m.showDescription {
			b.WriteString(divider("── Description ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(e.Description, wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press r to read the description") + "\n")
		}
	}

	return b.String()
}

func verdictLabel(v model.Verdict) string {
	switch v.Normalize() {
	case model.VerdictFit:
		return fitStyle.Render("✓ fit")
	case model.VerdictNoFit:
		return noFitStyle.Render("✗ no fit")
	default:
		return "? unknown"
	}
}

func renderEntries(entries []model.CacheEntry, cursor int, isActive bool) string {
	if len(entries) == 0 {
		return "  (no listings)"
	}

	var b strings.Builder
	for i, e := range entries {
		titleSt, subtitleSt, prefix := titleStyle, subtitleStyle, "  "
		if isActive && i == cursor {
			titleSt, subtitleSt, prefix = selectedTitleStyle, selectedSubtitleStyle, "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(e.Title))
		b.WriteByte('\n')
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s", e.Company, e.Location, formatTime(e))))
		b.WriteByte('\n')

		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func wordWrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) <= width {
				line += " " + w
			} else {
				out = append(out, line)
				line = w
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Browse launches the interactive two-pane results browser.
func Browse(src Source, set Set) error {
	p := tea.NewProgram(newBrowserModel(src, set), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
