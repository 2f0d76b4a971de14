package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Dashboard panel indices.
const (
	panelMetrics = iota
	panelExperiments
	panelActions
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	metricsData *metricsSnapshot
	experiments []experimentSnapshot
	actions     []actionSnapshot

	// State.
	loading bool
	err     error
}

type metricsSnapshot struct {
	healthScore    float64
	completionRate float64
	buttonCTR      float64
	errorRate      float64
	avgResponseMS  float64
	openAlerts     int
}

type experimentSnapshot struct {
	id      string
	status  string
	winner  string
	samples int
}

type actionSnapshot struct {
	priority string
	title    string
	impact   int
	effort   int
	status   string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	metrics     *metricsSnapshot
	experiments []experimentSnapshot
	actions     []actionSnapshot
	err         error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	priorityCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	priorityHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	priorityMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	priorityLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusRolledOut = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusDraft     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelMetrics,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.metricsData = msg.metrics
		m.experiments = msg.experiments
		m.actions = msg.actions
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Growth Brain Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	metricsPanel := m.renderMetricsPanel()
	experimentsPanel := m.renderExperimentsPanel()
	actionsPanel := m.renderActionsPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, colWidth-4)
		experimentsPanel = m.applyPanelStyle(panelExperiments, experimentsPanel, colWidth-4)
		actionsPanel = m.applyPanelStyle(panelActions, actionsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, metricsPanel, experimentsPanel, actionsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		experimentsPanel = m.applyPanelStyle(panelExperiments, experimentsPanel, panelWidth)
		actionsPanel = m.applyPanelStyle(panelActions, actionsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, metricsPanel, experimentsPanel, actionsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (24h)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	b.WriteString(fmt.Sprintf("  %-16s %.0f/100\n", "Health score", md.healthScore))
	b.WriteString(fmt.Sprintf("  %-16s %.1f%%\n", "Completion", md.completionRate*100))
	b.WriteString(fmt.Sprintf("  %-16s %.1f%%\n", "Button CTR", md.buttonCTR*100))
	b.WriteString(fmt.Sprintf("  %-16s %.2f%%\n", "Error rate", md.errorRate*100))
	b.WriteString(fmt.Sprintf("  %-16s %.0fms\n", "Avg response", md.avgResponseMS))
	b.WriteString(fmt.Sprintf("\n  Open alerts: %d", md.openAlerts))

	return b.String()
}

func (m dashboardModel) renderExperimentsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Experiments"))
	b.WriteString("\n")

	if len(m.experiments) == 0 {
		b.WriteString("  No experiments.")
		return b.String()
	}

	for _, e := range m.experiments {
		status := styleForExperimentStatus(e.status).Render(fmt.Sprintf("[%s]", e.status))
		line := fmt.Sprintf("  %s %s (%d samples)", status, e.id, e.samples)
		if e.winner != "" {
			line += " → " + e.winner
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func (m dashboardModel) renderActionsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Action backlog"))
	b.WriteString("\n")

	if len(m.actions) == 0 {
		b.WriteString("  Backlog is empty.")
		return b.String()
	}

	for _, a := range m.actions {
		prio := styleForPriority(a.priority).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.priority)))
		b.WriteString(fmt.Sprintf("  %s %s (impact %d, effort %d)\n", prio, a.title, a.impact, a.effort))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d action(s)", len(m.actions)))

	return b.String()
}

func styleForExperimentStatus(status string) lipgloss.Style {
	switch status {
	case "running":
		return statusRunning
	case "rolled_out":
		return statusRolledOut
	case "draft", "paused", "completed":
		return statusDraft
	default:
		return lipgloss.NewStyle()
	}
}

func styleForPriority(priority string) lipgloss.Style {
	switch priority {
	case "critical":
		return priorityCritical
	case "high":
		return priorityHigh
	case "medium":
		return priorityMedium
	case "low":
		return priorityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	result := dataLoadedMsg{}

	if Metrics != nil {
		report := Metrics.GenerateReport(24 * time.Hour)
		result.metrics = &metricsSnapshot{
			healthScore:    report.HealthScore,
			completionRate: report.Onboarding.CompletionRate,
			buttonCTR:      report.Buttons.CTR,
			errorRate:      report.Performance.ErrorRate,
			avgResponseMS:  report.Performance.AvgResponseMS,
			openAlerts:     len(Metrics.Alerts(true)),
		}
	}

	if Experiments != nil {
		for _, exp := range Experiments.List() {
			samples := 0
			for _, vid := range exp.VariantOrder {
				samples += Experiments.SampleCount(exp.ID, vid)
			}
			result.experiments = append(result.experiments, experimentSnapshot{
				id:      exp.ID,
				status:  string(exp.Status),
				winner:  exp.Winner,
				samples: samples,
			})
		}
	}

	if Controller != nil {
		for _, a := range Controller.Backlog() {
			result.actions = append(result.actions, actionSnapshot{
				priority: string(a.Priority),
				title:    a.Title,
				impact:   a.Impact,
				effort:   a.Effort,
				status:   string(a.Status),
			})
		}
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for metrics, experiments, and actions",
	Long: `Launch an interactive terminal dashboard showing the watched metrics,
experiment status, and the optimization action backlog.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Metrics == nil {
			return fmt.Errorf("metric store not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
