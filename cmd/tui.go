// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings and notices
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	mon           *monitor
	errorLog      []errorLogEntry
	maxLogEntries int
	spinner       spinner.Model
	width         int
	height        int
	quitting      bool
	linkErr       error
	linkClosed    bool
}

type tickMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		mon:           newMonitor(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(warningStyle)),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.mon.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.mon.stats.CalculateRates()
		return m, tickCmd()

	case spinner.TickMsg:
		// The spinner only runs until the link is synchronized
		if m.mon.synchronized {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case linkClosedMsg:
		m.linkClosed = true
		m.linkErr = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Link error: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", false)
		}

	case eventMsg:
		m.apply(m.mon.observe(msg.event, msg.anomalies))
	}

	return m, nil
}

// apply turns an observation into log entries.
func (m *model) apply(obs observation) {
	switch ev := obs.event.(type) {
	case *rdac.ReadingEvent:
		msgType := rdac.FormatMessageType(ev.Reading.Type())
		for _, a := range obs.anomalies {
			m.addLogEntry(fmt.Sprintf("%s: %s", msgType, a.Message), true)
		}
		if len(obs.anomalies) == 0 && m.showAll {
			m.addLogEntry(fmt.Sprintf("%s (valid)", msgType), false)
		}

	case *rdac.StatusEvent:
		switch {
		case obs.synced && m.mon.invalidBytes > 0:
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", m.mon.invalidBytes), false)
		case obs.synced:
			m.addLogEntry("Synchronized", false)
		case obs.fault:
			text := ev.Text
			if ev.Skipped > 0 {
				text += fmt.Sprintf(" (skipped %d bytes)", ev.Skipped)
			}
			m.addLogEntry(text, ev.Severity == rdac.SeverityError || ev.Result.Invalid())
		}
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("RDACMON - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' resets stats, 'q' quits", m.connInfo, mode)))
	s.WriteString("\n\n")

	switch {
	case m.linkClosed:
		s.WriteString(errorStyle.Render("✗ Link closed"))
	case !m.mon.synchronized:
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Waiting for synchronization..."))
		if m.mon.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (%d bytes discarded)", m.mon.invalidBytes)))
		}
	default:
		s.WriteString(valueStyle.Render("✓ Synchronized"))
		if m.mon.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.mon.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.statsView()))
	s.WriteString("\n\n")

	if readings := m.readingsView(); readings != "" {
		s.WriteString(labelStyle.Render("Latest Readings:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(readings))
		s.WriteString("\n\n")
	}

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.logView()))

	return s.String()
}

func (m model) statsView() string {
	st := m.mon.stats
	st.CalculateRates()

	errors := st.Errors() + st.AnomalousValues
	var validPercent, errorPercent float64
	if seen := st.TotalFrames + st.Errors(); seen > 0 {
		validPercent = float64(st.TotalFrames) * 100.0 / float64(seen)
		errorPercent = float64(errors) * 100.0 / float64(seen)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errors, errorPercent)),
	)

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("By type:"), headerStyle.Render(fmt.Sprintf(
		"fuel/volts %d, env %d, rpm %d, thermo %d",
		st.FramesByType[rdac.MsgFuelVoltage], st.FramesByType[rdac.MsgEnvironment],
		st.FramesByType[rdac.MsgRPMPulse], st.FramesByType[rdac.MsgThermocouple],
	)))

	if st.Errors() > 0 || st.SkippedBytes > 0 {
		fmt.Fprintf(&b, "%s %s   %s %s   %s %s   %s %s\n",
			labelStyle.Render("Checksum A:"), errorStyle.Render(fmt.Sprintf("%d", st.ChecksumAErrors)),
			labelStyle.Render("Checksum B:"), errorStyle.Render(fmt.Sprintf("%d", st.ChecksumBErrors)),
			labelStyle.Render("Bad type:"), errorStyle.Render(fmt.Sprintf("%d", st.InvalidTypes)),
			labelStyle.Render("Skipped:"), warningStyle.Render(fmt.Sprintf("%d B", st.SkippedBytes)),
		)
	}

	if st.OverflowBytes > 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Overflow:"), errorStyle.Render(fmt.Sprintf("%d bytes dropped", st.OverflowBytes)))
	}

	if st.AnomalousValues > 0 {
		fmt.Fprintf(&b, "%s %s", labelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", st.AnomalousValues)))
		var parts []string
		for a := rdac.AnomalyHighRPM; a <= rdac.AnomalyVoltage; a++ {
			if n := st.AnomaliesByType[a]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s: %d", strings.ToLower(a.String()), n))
			}
		}
		fmt.Fprintf(&b, " (%s)\n", headerStyle.Render(strings.Join(parts, ", ")))
	}

	errRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		labelStyle.Render("Error Rate:"), errRate,
		labelStyle.Render("Running:"), valueStyle.Render(time.Since(st.StartTime).Round(time.Second).String()),
	)
	return b.String()
}

func (m model) readingsView() string {
	var b strings.Builder

	if r, ok := m.mon.latest[rdac.MsgRPMPulse].(*rdac.RPMReading); ok {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("RPM:"), valueStyle.Render(fmt.Sprintf("%.0f", r.RPM)))
	}
	if r, ok := m.mon.latest[rdac.MsgFuelVoltage].(*rdac.FuelVoltage); ok {
		fmt.Fprintf(&b, "%s %s   %s %s\n",
			labelStyle.Render("Fuel flow:"), valueStyle.Render(fmt.Sprintf("%.0f", r.FuelFlow)),
			labelStyle.Render("Bus:"), valueStyle.Render(fmt.Sprintf("%.1f V", r.Voltage)),
		)
	}
	if r, ok := m.mon.latest[rdac.MsgEnvironment].(*rdac.EnvElectrical); ok {
		fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
			labelStyle.Render("Oil:"), valueStyle.Render(fmt.Sprintf("%.0f°C %.2f bar", r.OilTemp, r.OilPressure)),
			labelStyle.Render("OAT/IAT:"), valueStyle.Render(fmt.Sprintf("%.1f/%.1f°C", r.OutsideAirTemp, r.InsideAirTemp)),
			labelStyle.Render("MAP:"), valueStyle.Render(fmt.Sprintf("%.0f", r.ManifoldPressure)),
		)
	}
	if r, ok := m.mon.latest[rdac.MsgThermocouple].(*rdac.Thermocouple); ok {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("EGT:"), valueStyle.Render(joinTemps(r.EGT[:])))
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("CHT:"), valueStyle.Render(joinTemps(r.CHT[:])))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func joinTemps(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.0f", v)
	}
	return strings.Join(parts, " / ")
}

func (m model) logView() string {
	logHeight := m.height - 20 // header, stats and readings
	if logHeight < 5 {
		logHeight = 5
	}

	if len(m.errorLog) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var b strings.Builder
	for _, entry := range m.errorLog[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("01/02/06 15:04:05.000"))
		if entry.isError {
			fmt.Fprintf(&b, "%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&b, "%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message))
		}
	}
	return b.String()
}
