package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// statusTickInterval matches the dashboard's own WebSocket push
// cadence so the TUI never shows staler data than a connected browser
// client would.
const statusTickInterval = 100 * time.Millisecond

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	disconnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type statusTickMsg time.Time

type statusFetchedMsg struct {
	state State
	err   error
}

// statusModel is a bubbletea Model polling GetStatus on a ticker and
// rendering the live snapshot, in the same Init/Update/View shape as
// the teacher's bubble_tea.Selector, with the creature list rendered
// through a bubbles/table.Model the way ehrlich-b-wingthing's
// internal/ui package composes bubbles components inside a larger
// status view.
type statusModel struct {
	client *Client
	state  State
	err    error
	table  table.Model
}

func newStatusModel(client *Client) statusModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 10},
			{Title: "Name", Width: 18},
			{Title: "HP%", Width: 5},
			{Title: "X", Width: 6},
			{Title: "Y", Width: 6},
			{Title: "Z", Width: 3},
			{Title: "Source", Width: 8},
		}),
		table.WithFocused(false),
		table.WithHeight(10),
	)
	return statusModel{client: client, table: t}
}

func (m statusModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tickStatus())
}

func tickStatus() tea.Cmd {
	return tea.Tick(statusTickInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

func (m statusModel) fetch() tea.Cmd {
	return func() tea.Msg {
		st, err := m.client.GetStatus()
		return statusFetchedMsg{state: st, err: err}
	}
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case statusTickMsg:
		return m, tea.Batch(m.fetch(), tickStatus())
	case statusFetchedMsg:
		m.state = msg.state
		m.err = msg.err
		m.table.SetRows(creatureRows(msg.state.Creatures))
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func creatureRows(creatures []CreatureState) []table.Row {
	rows := make([]table.Row, 0, len(creatures))
	for _, c := range creatures {
		rows = append(rows, table.Row{
			fmt.Sprintf("%#x", c.ID),
			c.Name,
			fmt.Sprintf("%d", c.Health),
			fmt.Sprintf("%d", c.X),
			fmt.Sprintf("%d", c.Y),
			fmt.Sprintf("%d", c.Z),
			c.Source,
		})
	}
	return rows
}

func (m statusModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("otmitm status") + "  (press q to quit)\n\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", m.err)) + "\n")
		return b.String()
	}
	st := m.state

	connLabel := disconnStyle.Render("disconnected")
	if st.Connected {
		connLabel = connectedStyle.Render("connected")
	}
	fmt.Fprintf(&b, "session:   %s\n", connLabel)
	fmt.Fprintf(&b, "player:    id=%#x hp=%d/%d mana=%d/%d pos=(%d,%d,%d) level=%d\n",
		st.Player.ID, st.Player.HP, st.Player.MaxHP, st.Player.Mana, st.Player.MaxMana,
		st.Player.X, st.Player.Y, st.Player.Z, st.Player.Level)
	fmt.Fprintf(&b, "packets:   client=%d server=%d\n", st.PacketsFromClient, st.PacketsFromServer)
	fmt.Fprintf(&b, "cavebot:   running=%t failed_nodes=%v\n\n", st.Cavebot.Running, st.Cavebot.FailedNodes)

	b.WriteString(headerStyle.Render("actions") + "\n")
	for _, a := range st.Actions {
		fmt.Fprintf(&b, "  %-20s enabled=%-5t running=%t\n", a.Name, a.Enabled, a.Running)
	}

	b.WriteString("\n" + headerStyle.Render("creatures") + "\n")
	b.WriteString(m.table.View())
	return b.String()
}

func newStatusTUICmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "live-updating view of _build_state_json (press q to quit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(newStatusModel(client()))
			_, err := p.Run()
			return err
		},
	}
}
