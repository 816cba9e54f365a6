package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ehudso7/vrux-observe/pkg/models"
)

// Dracula theme colors.
const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaOrange     = "#FFB86C"
	draculaPink       = "#FF79C6"
	draculaPurple     = "#BD93F9"
	draculaRed        = "#FF5555"
	draculaYellow     = "#F1FA8C"
	draculaComment    = "#6272A4"
)

const (
	defaultServer        = "http://localhost:8090"
	defaultPollInterval  = 5 * time.Second
	minPollInterval      = time.Second
	statusRequestTimeout = 10 * time.Second
	scoreBarWidth        = 20
	appPadding           = 2
)

var (
	errUnexpectedStatus = errors.New("unexpected status response")
	errEmptyServer      = errors.New("server address cannot be empty")
)

// statusClient fetches health snapshots from the observed status API.
type statusClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newStatusClient(server, apiKey string) (*statusClient, error) {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		return nil, errEmptyServer
	}

	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}

	return &statusClient{
		baseURL:    server,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: statusRequestTimeout},
	}, nil
}

func (c *statusClient) fetch(ctx context.Context) (*models.HealthSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))

		return nil, fmt.Errorf("%w: %s %s", errUnexpectedStatus, resp.Status, strings.TrimSpace(string(body)))
	}

	var snapshot models.HealthSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &snapshot, nil
}

type keyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

var defaultKeyMap = keyMap{
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Styling with lipgloss.
func newStyles() struct {
	title, label, value, help, healthy, degraded, unhealthy, disabled, errText, app lipgloss.Style
} {
	return struct {
		title, label, value, help, healthy, degraded, unhealthy, disabled, errText, app lipgloss.Style
	}{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPink)).
			Bold(true),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaYellow)),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaForeground)),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)),
		healthy: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)).
			Bold(true),
		degraded: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaOrange)).
			Bold(true),
		unhealthy: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
		disabled: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)),
		errText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
		app: lipgloss.NewStyle().
			Padding(1, appPadding).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(draculaCyan)).
			Foreground(lipgloss.Color(draculaForeground)),
	}
}

type statusMsg struct {
	snapshot *models.HealthSnapshot
}

type statusErrMsg struct {
	err error
}

type tickMsg struct {
	gen int
}

type model struct {
	client      *statusClient
	interval    time.Duration
	keys        keyMap
	snapshot    *models.HealthSnapshot
	fetchErr    error
	lastUpdated time.Time
	fetching    bool
	tickGen     int
	styles      struct {
		title, label, value, help, healthy, degraded, unhealthy, disabled, errText, app lipgloss.Style
	}
}

func initialModel(client *statusClient, interval time.Duration) *model {
	return &model{
		client:   client,
		interval: interval,
		keys:     defaultKeyMap,
		fetching: true,
		styles:   newStyles(),
	}
}

func (m *model) Init() tea.Cmd {
	return m.fetchCmd()
}

func (m *model) fetchCmd() tea.Cmd {
	client := m.client

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statusRequestTimeout)
		defer cancel()

		snapshot, err := client.fetch(ctx)
		if err != nil {
			return statusErrMsg{err: err}
		}

		return statusMsg{snapshot: snapshot}
	}
}

// scheduleTick arms the next poll. The generation counter makes a manual
// refresh supersede any tick already in flight, so refreshes never
// multiply the polling chain.
func (m *model) scheduleTick() tea.Cmd {
	m.tickGen++
	gen := m.tickGen

	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.fetching {
				return m, nil
			}

			m.fetching = true
			m.tickGen++ // invalidate the pending tick

			return m, m.fetchCmd()
		}

	case statusMsg:
		m.fetching = false
		m.snapshot = msg.snapshot
		m.fetchErr = nil
		m.lastUpdated = time.Now()

		return m, m.scheduleTick()

	case statusErrMsg:
		m.fetching = false
		m.fetchErr = msg.err

		return m, m.scheduleTick()

	case tickMsg:
		if msg.gen != m.tickGen {
			return m, nil
		}

		m.fetching = true

		return m, m.fetchCmd()
	}

	return m, nil
}

func (m *model) View() string {
	var content strings.Builder

	styles := m.styles

	title := styles.title.Render("vrux-observe status")
	content.WriteString(title + "  " + styles.help.Render(m.client.baseURL) + "\n\n")

	if m.snapshot == nil {
		if m.fetchErr != nil {
			content.WriteString(styles.errText.Render(fmt.Sprintf("Error: %v", m.fetchErr)) + "\n\n")
		} else {
			content.WriteString(styles.help.Render("Connecting...") + "\n\n")
		}

		content.WriteString(m.renderFooter())

		return styles.app.Render(content.String())
	}

	content.WriteString(m.renderScore(m.snapshot) + "\n\n")
	content.WriteString(m.renderSystem(&m.snapshot.System) + "\n")
	content.WriteString(m.renderBuffers(m.snapshot.Buffers) + "\n\n")
	content.WriteString(m.renderProviders(m.snapshot.Providers) + "\n")
	content.WriteString(m.renderAlerts(m.snapshot.ActiveAlerts) + "\n")

	if m.fetchErr != nil {
		content.WriteString(styles.errText.Render(fmt.Sprintf("Poll failed: %v", m.fetchErr)) + "\n\n")
	}

	content.WriteString(m.renderFooter())

	return styles.app.Render(content.String())
}

func (m *model) statusStyle(status models.HealthStatus) lipgloss.Style {
	switch status {
	case models.HealthStatusHealthy:
		return m.styles.healthy
	case models.HealthStatusDegraded:
		return m.styles.degraded
	default:
		return m.styles.unhealthy
	}
}

func (m *model) renderScore(snapshot *models.HealthSnapshot) string {
	filled := int(snapshot.Score / 100 * scoreBarWidth)
	if filled < 0 {
		filled = 0
	} else if filled > scoreBarWidth {
		filled = scoreBarWidth
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", scoreBarWidth-filled)
	badge := m.statusStyle(snapshot.Status)

	return fmt.Sprintf("%s %s  %s %s",
		badge.Render(strings.ToUpper(string(snapshot.Status))),
		badge.Render(bar),
		m.styles.value.Render(fmt.Sprintf("%.0f/100", snapshot.Score)),
		m.styles.help.Render(snapshot.Timestamp.Format(time.TimeOnly)),
	)
}

func (m *model) renderSystem(stats *models.SystemStats) string {
	var content strings.Builder

	content.WriteString(m.styles.label.Render("System") + "\n")

	rows := []struct {
		name  string
		value string
	}{
		{"Memory", fmt.Sprintf("%.1f%%", stats.MemoryUsedPercent)},
		{"RSS", formatBytes(stats.ProcessRSSBytes)},
		{"CPU", fmt.Sprintf("%.1f%%", stats.CPUPercent)},
		{"Goroutines", fmt.Sprintf("%d", stats.Goroutines)},
		{"Error rate", fmt.Sprintf("%.2f/s", stats.ErrorRate)},
		{"Avg response", fmt.Sprintf("%.1f ms", stats.AvgResponseMs)},
		{"Request rate", fmt.Sprintf("%.1f/s", stats.RequestRate)},
	}

	for _, row := range rows {
		content.WriteString(fmt.Sprintf("  %s %s\n",
			m.styles.help.Render(fmt.Sprintf("%-14s", row.name)),
			m.styles.value.Render(row.value)))
	}

	return content.String()
}

func (m *model) renderBuffers(buffers models.BufferStats) string {
	return m.styles.label.Render("Buffers") + "  " + m.styles.value.Render(
		fmt.Sprintf("metrics %d | logs %d | traces %d", buffers.Metrics, buffers.Logs, buffers.Traces))
}

func (m *model) renderProviders(providers map[string]models.ProviderHealth) string {
	var content strings.Builder

	content.WriteString(m.styles.label.Render("Providers") + "\n")

	if len(providers) == 0 {
		content.WriteString(m.styles.help.Render("  none configured") + "\n")

		return content.String()
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		provider := providers[name]

		var state string

		switch {
		case !provider.Enabled:
			state = m.styles.disabled.Render("○ disabled")
		case provider.Healthy:
			state = m.styles.healthy.Render("● healthy")
		default:
			detail := provider.Error
			if provider.BreakerState != "" && provider.BreakerState != "closed" {
				detail = fmt.Sprintf("breaker %s", provider.BreakerState)
			}

			state = m.styles.unhealthy.Render("✗ " + strings.TrimSpace("unhealthy "+detail))
		}

		content.WriteString(fmt.Sprintf("  %s %s\n", m.styles.value.Render(fmt.Sprintf("%-12s", name)), state))
	}

	return content.String()
}

func (m *model) renderAlerts(alerts []models.ActiveAlert) string {
	var content strings.Builder

	content.WriteString(m.styles.label.Render(fmt.Sprintf("Active alerts (%d)", len(alerts))) + "\n")

	if len(alerts) == 0 {
		content.WriteString(m.styles.help.Render("  none") + "\n")

		return content.String()
	}

	sorted := make([]models.ActiveAlert, len(alerts))
	copy(sorted, alerts)
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := severityRank(sorted[i].Rule.Severity), severityRank(sorted[j].Rule.Severity)
		if ri != rj {
			return ri < rj
		}

		return sorted[i].RuleID < sorted[j].RuleID
	})

	for _, alert := range sorted {
		badge := m.severityStyle(alert.Rule.Severity).Render(fmt.Sprintf("[%s]", alert.Rule.Severity))
		content.WriteString(fmt.Sprintf("  %s %s  %s\n",
			badge,
			m.styles.value.Render(alert.RuleID),
			m.styles.help.Render(fmt.Sprintf("%s (current %.2f)", alert.Message, alert.CurrentValue))))
	}

	return content.String()
}

func severityRank(severity models.AlertSeverity) int {
	switch severity {
	case models.SeverityCritical:
		return 0
	case models.SeverityWarning:
		return 1
	default:
		return 2
	}
}

func (m *model) severityStyle(severity models.AlertSeverity) lipgloss.Style {
	switch severity {
	case models.SeverityCritical:
		return m.styles.unhealthy
	case models.SeverityWarning:
		return m.styles.degraded
	default:
		return m.styles.help
	}
}

func (m *model) renderFooter() string {
	parts := []string{"r → refresh", "q/Esc → quit"}

	if m.fetching {
		parts = append(parts, "fetching...")
	} else if !m.lastUpdated.IsZero() {
		parts = append(parts, fmt.Sprintf("updated %s ago", time.Since(m.lastUpdated).Truncate(time.Second)))
	}

	return m.styles.help.Render(strings.Join(parts, " | "))
}

func formatBytes(n uint64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// fetchOnce handles non-interactive mode: one snapshot printed as JSON.
func fetchOnce(client *statusClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), statusRequestTimeout)
	defer cancel()

	snapshot, err := client.fetch(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	fmt.Println(string(out))

	return nil
}

func main() {
	server := flag.String("server", defaultServer, "observed status API address")
	apiKey := flag.String("api-key", os.Getenv("OBSERVE_API_KEY"), "status API key (default from OBSERVE_API_KEY)")
	interval := flag.Duration("interval", defaultPollInterval, "poll interval")
	once := flag.Bool("once", false, "fetch a single snapshot, print JSON, and exit")
	flag.Parse()

	client, err := newStatusClient(*server, *apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *once || !isOutputToTerminal() {
		if err := fetchOnce(client); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	pollInterval := *interval
	if pollInterval < minPollInterval {
		pollInterval = minPollInterval
	}

	p := tea.NewProgram(initialModel(client, pollInterval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func isOutputToTerminal() bool {
	fileInfo, _ := os.Stdout.Stat()

	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
