package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"insights/internal/config"
	"insights/internal/dashboard"
	"insights/internal/render"
	"insights/internal/util"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("4"))
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("8"))
	buttonStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	buttonDisabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Background(lipgloss.Color("236")).Padding(0, 1)
)

// changedMsg is delivered whenever the dashboard reports a state change.
type changedMsg struct{}

func waitForChange(d *dashboard.Dashboard) tea.Cmd {
	return func() tea.Msg {
		<-d.Changes()
		return changedMsg{}
	}
}

type model struct {
	dash     *dashboard.Dashboard
	view     dashboard.View
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	logger   *slog.Logger
}

func initialModel(d *dashboard.Dashboard, logger *slog.Logger) model {
	ti := textinput.New()
	ti.Prompt = "Symbols: "
	ti.Placeholder = "AAPL,MSFT,AMZN"
	ti.SetValue(d.SymbolsText())
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		dash:    d,
		view:    d.Snapshot(),
		input:   ti,
		spinner: sp,
		logger:  logger,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForChange(m.dash))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.dash.Close()
			return m, tea.Quit
		case "enter":
			if m.dash.CanSubmit() {
				m.dash.SetSymbolsText(m.input.Value())
				m.dash.Submit()
				m.logger.Info("submitted", "symbols", m.input.Value())
			}
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.dash.SetSymbolsText(m.input.Value())
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// header, input, status, footer
		vpHeight := max(m.height-4, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.input.Width = max(m.width-len(m.input.Prompt)-12, 10)
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case changedMsg:
		m.view = m.dash.Snapshot()
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, waitForChange(m.dash)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.ready && m.loading() {
			m.viewport.SetContent(m.renderContent())
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// loading reports whether anything on screen is still waiting.
func (m model) loading() bool {
	if m.view.Phase == dashboard.PhaseLoading {
		return true
	}
	for _, c := range m.view.Cards {
		if c.Phase == dashboard.PhaseLoading {
			return true
		}
	}
	return false
}

func (m model) renderContent() string {
	return render.Cards(m.view.Cards, m.width, m.spinner.View())
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := headerStyle.Render(padOrTrunc(" Holdings Review", m.width))

	button := buttonDisabledStyle.Render("Analyzing…")
	if m.view.CanSubmit {
		button = buttonStyle.Render("Analyze")
	}
	inputLine := m.input.View() + " " + button

	status := render.Status(m.view, m.spinner.View())

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " enter analyze  pgup/pgdn scroll  esc quit"
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := max(m.width-len(footerLeft)-len(footerRight), 0)
	footer := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return header + "\n" + inputLine + "\n" + status + "\n" + m.viewport.View() + "\n" + footer
}

func padOrTrunc(s string, width int) string {
	if len(s) >= width {
		return s[:max(width, 0)]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func main() {
	cfgPath := "config/insights.yaml"
	if p := os.Getenv("INSIGHTS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = fmt.Sprintf("%s/insights-tui.log", os.TempDir())
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level)
	util.SetDefault(logger)

	d := dashboard.NewFromConfig(cfg, logger)
	defer d.Close()
	logger.Info("starting", "analysis", cfg.Services.AnalysisURL, "marketdata", cfg.Services.MarketDataURL)

	p := tea.NewProgram(
		initialModel(d, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
