package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/armgadget/pkg/gadget"
	"github.com/gwillem/armgadget/pkg/monitor"
	"github.com/gwillem/armgadget/pkg/robot"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 9 // log box height
	maxLogs      = 7 // number of log lines to show
	borderSize   = 2 // chart border
)

var jointColors = map[robot.Joint]string{
	robot.Shoulder: "196", // red
	robot.Elbow:    "226", // yellow
	robot.Wrist:    "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type dashboardModel struct {
	mon           *monitor.Monitor
	chart         *streamlinechart.Model
	width         int
	height        int
	logs          []string
	lastErr       error
	status        string
	quitting      bool
	lastPositions map[robot.Joint]int
}

type stateMsg monitor.State
type logMsg string

func waitForState(mon *monitor.Monitor) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-mon.States())
	}
}

func waitForLog(mon *monitor.Monitor) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-mon.Logs())
	}
}

func newDashboardModel(mon *monitor.Monitor) dashboardModel {
	// Shoulder swings to -255 on ready, elbow winds continuously.
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-360, 360),
	)
	for _, j := range robot.AllJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j]))
		chart.SetDataSetStyles(string(j), runes.ThinLineStyle, style)
	}
	return dashboardModel{
		mon:   mon,
		chart: &chart,
	}
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// moved reports whether any joint changed since the last sample.
func (m *dashboardModel) moved(positions map[robot.Joint]int) bool {
	if m.lastPositions == nil {
		return true
	}
	for j, pos := range positions {
		if last, ok := m.lastPositions[j]; !ok || pos != last {
			return true
		}
	}
	return false
}

func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.mon),
		waitForLog(m.mon),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		m.lastErr = msg.Error
		m.status = msg.Status
		if msg.Error == nil && m.moved(msg.Positions) {
			for j, pos := range msg.Positions {
				m.chart.PushDataSet(string(j), float64(pos))
			}
			m.chart.DrawAll()
			m.lastPositions = msg.Positions
		}
		return m, waitForState(m.mon)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.mon)
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Stopping.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("ArmGadget"))
	sb.WriteString(fmt.Sprintf(" - %d Hz ", m.mon.Hz()))
	sb.WriteString(renderStatus(m.status))
	sb.WriteString(statusStyle.Render("  " + renderPositions(m.lastPositions)))
	if m.lastErr != nil {
		sb.WriteString("  " + errorStyle.Render(m.lastErr.Error()))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

var statusColors = map[gadget.Color]string{
	gadget.Green: "10",
	gadget.Amber: "214",
	gadget.Black: "240",
}

func renderStatus(status string) string {
	color, ok := statusColors[gadget.Color(status)]
	if !ok {
		color = "240"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}

// statusIndicator shows the gadget's link color on the dashboard.
type statusIndicator struct {
	mon *monitor.Monitor
}

func (s statusIndicator) SetColor(c gadget.Color) {
	s.mon.SetStatus(string(c))
}

func renderPositions(positions map[robot.Joint]int) string {
	if positions == nil {
		return ""
	}
	parts := make([]string, 0, len(positions))
	for _, j := range robot.AllJoints() {
		parts = append(parts, fmt.Sprintf("%s %d°", j, positions[j]))
	}
	return strings.Join(parts, "  ")
}

func renderLegend() string {
	var items []string
	for _, j := range robot.AllJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j])).Bold(true)
		items = append(items, style.Render("━━")+" "+string(j))
	}
	return strings.Join(items, "  ")
}
