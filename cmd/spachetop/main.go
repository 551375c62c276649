// Command spachetop is a read-only terminal inspector for the day store:
// it lists cached day coverage so operators can see what the cache holds
// and where the gaps are.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trantila/spache/internal/calendar"
	"github.com/trantila/spache/internal/store"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff"))
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	footerStyle = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149"))
)

type coverageLoaded struct {
	summaries []store.DaySummary
	err       error
}

type model struct {
	store    *store.Store
	table    table.Model
	total    int
	gaps     int
	err      error
	quitting bool
}

func newModel(st *store.Store) model {
	columns := []table.Column{
		{Title: "Day", Width: 8},
		{Title: "Date", Width: 12},
		{Title: "Objects", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#58a6ff"))
	t.SetStyles(styles)

	return model{store: st, table: t}
}

func (m model) Init() tea.Cmd {
	return m.loadCoverage
}

func (m model) loadCoverage() tea.Msg {
	summaries, err := m.store.Coverage(context.Background())
	return coverageLoaded{summaries: summaries, err: err}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.loadCoverage
		}

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 6)

	case coverageLoaded:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil

		rows := make([]table.Row, 0, len(msg.summaries))
		m.total = 0
		m.gaps = 0
		var prevDay int64
		for i, s := range msg.summaries {
			if i > 0 {
				m.gaps += int(s.Day - prevDay - 1)
			}
			prevDay = s.Day
			m.total += s.Objects
			rows = append(rows, table.Row{
				strconv.FormatInt(s.Day, 10),
				calendar.ISODate(s.Date),
				strconv.Itoa(s.Objects),
			})
		}
		m.table.SetRows(rows)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	title := titleStyle.Render("spache day store")
	if m.err != nil {
		return title + "\n" + errStyle.Render("error: "+m.err.Error()) + "\n"
	}

	footer := footerStyle.Render(fmt.Sprintf(
		"%d cached days · %d objects · %d gap days · r refresh · q quit",
		len(m.table.Rows()), m.total, m.gaps))

	return title + "\n" + borderStyle.Render(m.table.View()) + "\n" + footer + "\n"
}

func main() {
	dbPath := "spache.db"
	if v := os.Getenv("SPACHE_DB_PATH"); v != "" {
		dbPath = v
	}
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open day store at %s: %v", dbPath, err)
	}
	defer st.Close()

	if _, err := tea.NewProgram(newModel(st), tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("spachetop failed: %v", err)
	}
}
