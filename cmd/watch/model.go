package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"coinsight/internal/domain"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 10 * time.Second

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)
	upStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type tickMsg time.Time

type snapshotMsg struct {
	prices     []*domain.PriceSnapshot
	signals    []*domain.Signal
	sentiments map[string]sentimentView
	err        error
}

type model struct {
	client      *apiClient
	spin        spinner.Model
	prices      []*domain.PriceSnapshot
	signals     []*domain.Signal
	sentiments  map[string]sentimentView
	err         error
	lastUpdated time.Time
	loading     bool
	width       int
}

func newModel(client *apiClient) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return model{
		client:     client,
		spin:       sp,
		sentiments: map[string]sentimentView{},
		loading:    true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.refresh())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.refresh()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case snapshotMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.prices = msg.prices
			m.signals = msg.signals
			m.sentiments = msg.sentiments
			m.lastUpdated = time.Now()
		}
		return m, tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
	case tickMsg:
		m.loading = true
		return m, m.refresh()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) refresh() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		prices, err := client.fetchPrices()
		if err != nil {
			return snapshotMsg{err: err}
		}
		signals, err := client.fetchSignals(10)
		if err != nil {
			return snapshotMsg{err: err}
		}
		sentiments := map[string]sentimentView{}
		for _, symbol := range domain.SupportedSymbols {
			view, err := client.fetchSentiment(symbol)
			if err != nil || view == nil {
				continue
			}
			sentiments[symbol] = *view
		}
		return snapshotMsg{prices: prices, signals: signals, sentiments: sentiments}
	}
}

func (m model) View() string {
	var sb strings.Builder

	status := dimStyle.Render("updated " + m.lastUpdated.Format("15:04:05"))
	if m.lastUpdated.IsZero() {
		status = dimStyle.Render("waiting for data")
	}
	if m.loading {
		status = m.spin.View() + " refreshing"
	}
	sb.WriteString(titleStyle.Render("coinsight watch") + "  " + status + "\n")

	if m.err != nil {
		sb.WriteString(errStyle.Render("error: "+m.err.Error()) + "\n")
		sb.WriteString(dimStyle.Render("press r to retry, q to quit") + "\n")
		return sb.String()
	}

	sb.WriteString(sectionStyle.Render("Prices") + "\n")
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %14s %9s %16s", "SYM", "PRICE", "24H%", "VOLUME")) + "\n")
	for _, p := range m.prices {
		line := fmt.Sprintf("%-6s %14s %9s %16s",
			p.Symbol,
			fmt.Sprintf("$%.2f", p.PriceUSD),
			fmt.Sprintf("%+.2f%%", p.Change24hPct),
			fmt.Sprintf("$%.0f", p.Volume24h),
		)
		if p.Change24hPct >= 0 {
			sb.WriteString(upStyle.Render(line) + "\n")
		} else {
			sb.WriteString(downStyle.Render(line) + "\n")
		}
	}

	if len(m.sentiments) > 0 {
		sb.WriteString(sectionStyle.Render("Sentiment") + "\n")
		sb.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %7s %6s %-6s %5s %6s", "SYM", "SCORE", "CONF", "DIR", "RISK", "ITEMS")) + "\n")
		symbols := make([]string, 0, len(m.sentiments))
		for symbol := range m.sentiments {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			s := m.sentiments[symbol]
			sb.WriteString(fmt.Sprintf("%-6s %+7.2f %6.2f %-6s %5d %6d\n",
				s.Symbol, s.Score, s.Confidence, strings.ToUpper(string(s.Direction)), s.Risk, s.ItemCount))
		}
	}

	sb.WriteString(sectionStyle.Render("Signals") + "\n")
	if len(m.signals) == 0 {
		sb.WriteString(dimStyle.Render("no recent signals") + "\n")
	}
	for _, s := range m.signals {
		line := fmt.Sprintf("%s %-6s %-4s %-20s %-6s risk=%d",
			s.Timestamp.UTC().Format("01-02 15:04"),
			s.Symbol, s.Interval, s.Indicator,
			strings.ToUpper(string(s.Direction)), s.Risk)
		switch s.Direction {
		case domain.DirectionLong:
			sb.WriteString(upStyle.Render(line) + "\n")
		case domain.DirectionShort:
			sb.WriteString(downStyle.Render(line) + "\n")
		default:
			sb.WriteString(line + "\n")
		}
	}

	sb.WriteString("\n" + dimStyle.Render("r refresh · q quit") + "\n")
	return sb.String()
}
