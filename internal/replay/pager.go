package replay

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	matchStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	notFoundStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	liveStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// pager is the interactive viewer around a pagerModel.
type pager struct {
	model *pagerModel
}

func newPager(title, content string) *pager {
	return &pager{model: &pagerModel{title: title, content: content}}
}

func (p *pager) run() error {
	_, err := tea.NewProgram(p.model, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	return err
}

// runLive watches the file's directory: pipelines are replaced by rename,
// which drops a watch placed on the file itself.
func (p *pager) runLive(path string, render func() (string, error)) error {
	content, err := render()
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	p.model.content = content
	p.model.live = true
	p.model.render = render
	p.model.changes = fileChanges(watcher, filepath.Base(path))
	return p.run()
}

// fileChanges forwards debounced change notifications for one file name.
func fileChanges(w *fsnotify.Watcher, name string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				time.Sleep(100 * time.Millisecond)
				select {
				case ch <- struct{}{}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return ch
}

type fileChangedMsg struct{}

type pagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	wrapped  string
	ready    bool

	live    bool
	render  func() (string, error)
	changes <-chan struct{}

	searching   bool
	input       textinput.Model
	query       string
	matches     []int // line numbers in wrapped content
	matchIndex  int
	matchFailed bool
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live {
		return m.waitForChange()
	}
	return nil
}

func (m *pagerModel) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		if changes == nil {
			return nil
		}
		if _, ok := <-changes; !ok {
			return nil
		}
		return fileChangedMsg{}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.updateSearch(msg)
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case fileChangedMsg:
		m.reload()
		cmds = append(cmds, m.waitForChange())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.query == "" {
				return m, tea.Quit
			}
			m.clearSearch()
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "f":
			if m.live {
				m.viewport.GotoBottom()
			}
		case "/":
			m.searching = true
			m.input = textinput.New()
			m.input.Placeholder = "Search..."
			m.input.CharLimit = 100
			m.input.Width = 40
			m.input.SetValue(m.query)
			m.input.Focus()
			return m, textinput.Blink
		case "n":
			if len(m.matches) > 0 {
				m.jump((m.matchIndex + 1) % len(m.matches))
			}
		case "N":
			if len(m.matches) > 0 {
				m.jump((m.matchIndex - 1 + len(m.matches)) % len(m.matches))
			}
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 2 // header and footer
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = 1
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.setContent(m.content)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.searching = false
			m.query = m.input.Value()
			m.search()
			if len(m.matches) > 0 {
				m.jump(0)
			}
			return m, nil
		case "esc", "ctrl+c":
			m.searching = false
			m.clearSearch()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// reload re-renders live content and keeps the scroll offset when it
// still fits.
func (m *pagerModel) reload() {
	if m.render == nil {
		return
	}
	content, err := m.render()
	if err != nil {
		return
	}
	offset := m.viewport.YOffset
	m.setContent(content)
	if offset <= m.viewport.TotalLineCount()-m.viewport.Height {
		m.viewport.SetYOffset(offset)
	}
}

func (m *pagerModel) setContent(content string) {
	m.content = content
	m.wrapped = wrapContent(content, m.viewport.Width)
	m.viewport.SetContent(m.wrapped)
	if m.query != "" {
		m.search()
	}
}

func (m *pagerModel) clearSearch() {
	m.query = ""
	m.matches = nil
	m.matchFailed = false
}

// search finds lines of the wrapped content containing the query,
// case-insensitively.
func (m *pagerModel) search() {
	m.matches = nil
	m.matchIndex = 0
	m.matchFailed = false
	if m.query == "" {
		return
	}
	query := strings.ToLower(m.query)
	for i, line := range strings.Split(m.wrapped, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			m.matches = append(m.matches, i)
		}
	}
	m.matchFailed = len(m.matches) == 0
}

// jump centers match i on screen.
func (m *pagerModel) jump(i int) {
	if i < 0 || i >= len(m.matches) {
		return
	}
	m.matchIndex = i
	offset := m.matches[i] - m.viewport.Height/2
	if maxOffset := m.viewport.TotalLineCount() - m.viewport.Height; offset > maxOffset {
		offset = maxOffset
	}
	if offset < 0 {
		offset = 0
	}
	m.viewport.SetYOffset(offset)
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	header := title + pagerInfoStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title))))

	var footer string
	if m.searching {
		footer = matchStyle.Render("/") + m.input.View()
	} else {
		var help string
		switch {
		case m.matchFailed:
			help = fmt.Sprintf(" %s │ /: search ", notFoundStyle.Render("Pattern not found"))
		case len(m.matches) > 0:
			help = fmt.Sprintf(" %s │ n/N: next/prev │ /: search │ esc: clear ", matchStyle.Render(fmt.Sprintf("[%d/%d]", m.matchIndex+1, len(m.matches))))
		case m.live:
			help = fmt.Sprintf(" %s │ q: quit │ /: search │ f: follow │ g/G: top/bottom ", liveStyle.Render("● LIVE"))
		default:
			help = " q: quit │ /: search │ n/N: next/prev │ g/G: top/bottom "
		}
		info := fmt.Sprintf(" %d%% ", int(m.viewport.ScrollPercent()*100))
		fill := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))
		footer = pagerInfoStyle.Render(help) + pagerInfoStyle.Render(fill) + pagerInfoStyle.Render(info)
	}
	return header + "\n" + m.viewport.View() + "\n" + footer
}

// wrapContent wraps lines to width. Timeline rows ("seq │ time │ text")
// wrap only their text column and continue under it.
func wrapContent(content string, width int) string {
	if width <= 0 {
		return content
	}
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if lipgloss.Width(line) <= width {
			out = append(out, line)
			continue
		}
		if pipe := strings.LastIndex(line, "│"); pipe > 0 && pipe < len(line)-len("│") {
			start := pipe + len("│")
			for start < len(line) && line[start] == ' ' {
				start++
			}
			prefixWidth := lipgloss.Width(line[:start])
			textWidth := max(20, width-prefixWidth)
			parts := strings.Split(wordwrap.String(line[start:], textWidth), "\n")
			out = append(out, line[:start]+parts[0])
			for _, p := range parts[1:] {
				out = append(out, strings.Repeat(" ", prefixWidth)+p)
			}
			continue
		}
		out = append(out, strings.Split(wordwrap.String(line, width), "\n")...)
	}
	return strings.Join(out, "\n")
}
