// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/xbusmon/pkg/railway"
	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// TUI model
type model struct {
	connInfo      string
	showAll       bool
	started       time.Time
	stats         *xpressnet.Statistics
	version       xpressnet.Version
	layout        *railway.State
	eventLog      []eventLogEntry
	maxLogEntries int
	log           viewport.Model
	synchronized  bool
	skipped       int
	connErr       error
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type busDataMsg struct {
	event busEvent
}
type layoutMsg struct {
	state   railway.State
	version xpressnet.Version
}
type connectionLostMsg struct {
	err error
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
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

// formatElapsed formats a duration as a human-friendly string
func formatElapsed(d time.Duration) string {
	total := int64(d / time.Second)
	if total <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := total / u.size
		total %= u.size
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, showAll bool, version xpressnet.Version) model {
	return model{
		connInfo:      connInfo,
		showAll:       showAll,
		started:       time.Now(),
		stats:         xpressnet.NewStatistics(),
		version:       version,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 500,
		log:           viewport.New(76, 5),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
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
		}
		// Remaining keys scroll the event log
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLog()

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case layoutMsg:
		state := msg.state
		m.layout = &state
		m.version = msg.version

	case connectionLostMsg:
		m.connErr = msg.err
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)

	case busDataMsg:
		m.handleEvent(msg.event)
	}

	return m, nil
}

func (m *model) handleEvent(ev busEvent) {
	if ev.synced {
		m.synchronized = true
		m.skipped = ev.skipped
		if ev.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid frames", ev.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	r := ev.result
	m.stats.Update(r.Message, r.Err, ev.anomalies)

	switch {
	case r.Err != nil && r.Message == nil:
		m.addLogEntry(xpressnet.FormatError(r.Err), true)
	case len(ev.anomalies) > 0:
		for _, a := range ev.anomalies {
			m.addLogEntry(fmt.Sprintf("%s: %s", r.Message.Name(), a.Message), true)
		}
	case r.Message.Name() == xpressnet.MsgSoftwareVersionReport23 || r.Message.Name() == xpressnet.MsgSoftwareVersionReport30:
		m.addLogEntry(strings.TrimSpace(xpressnet.FormatPayload(r.Message)), false)
	case m.showAll:
		m.addLogEntry(fmt.Sprintf("%s [%s]", r.Message.Name(), xpressnet.FormatBytes(r.Message.Raw())), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}

	following := m.log.AtBottom()
	m.log.SetContent(m.renderLog())
	if following {
		m.log.GotoBottom()
	}
}

// resizeLog fits the event log into the space left below the summary boxes
func (m *model) resizeLog() {
	height := m.height - 22
	if height < 5 {
		height = 5
	}
	width := m.width - 8
	if width < 20 {
		width = 20
	}
	m.log.Width = width
	m.log.Height = height
	m.log.SetContent(m.renderLog())
}

func (m model) renderLog() string {
	if len(m.eventLog) == 0 {
		return headerStyle.Render("  (no events yet)")
	}
	var b strings.Builder
	for i, entry := range m.eventLog {
		if i > 0 {
			b.WriteString("\n")
		}
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			b.WriteString(headerStyle.Render(timestamp) + " " + errorStyle.Render("✗ "+entry.message))
		} else {
			b.WriteString(headerStyle.Render(timestamp) + " " + warningStyle.Render("ℹ "+entry.message))
		}
	}
	return b.String()
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("XBUSMON - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Running %s | 'q' to quit, arrows scroll",
		m.connInfo, mode, formatElapsed(time.Since(m.started)))))
	s.WriteString("\n\n")

	switch {
	case m.connErr != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Connection lost: %v", m.connErr)))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid frames)", m.skipped)))
		}
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("  Protocol %s", m.version)))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.renderStats()))
	s.WriteString("\n\n")

	if m.layout != nil {
		s.WriteString(statsLabelStyle.Render("Layout:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderLayout(m.layout)))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.log.View()))

	return s.String()
}

func (m model) renderStats() string {
	st := m.stats
	var validPercent, errorPercent float64
	errs := st.Errors() + st.Anomalies
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
		errorPercent = float64(errs) * 100.0 / float64(st.TotalFrames)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errs, errorPercent)),
	))

	if st.ChecksumErrors > 0 || st.ParityErrors > 0 {
		b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.ChecksumErrors)),
			statsLabelStyle.Render("Parity Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.ParityErrors)),
		))
	}

	if st.NoMatch > 0 || st.Ambiguous > 0 || st.Overflows > 0 {
		b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("No Match:"), errorStyle.Render(fmt.Sprintf("%d", st.NoMatch)),
			statsLabelStyle.Render("Ambiguous:"), errorStyle.Render(fmt.Sprintf("%d", st.Ambiguous)),
			statsLabelStyle.Render("Overflows:"), errorStyle.Render(fmt.Sprintf("%d", st.Overflows)),
		))
	}

	if st.Anomalies > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", st.Anomalies)),
		))
	}

	if top := st.TopMessages(3); len(top) > 0 {
		names := make([]string, len(top))
		for i, n := range top {
			names[i] = fmt.Sprintf("%s %d", n, st.MessagesPerName[n])
		}
		b.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Top:"), headerStyle.Render(strings.Join(names, ", "))))
	}

	b.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))
	return b.String()
}

// renderLayout summarizes the layout state
func renderLayout(l *railway.State) string {
	var b strings.Builder

	power := statsValueStyle.Render(l.Power.String())
	if l.Power == railway.PowerOff || l.Power == railway.PowerEmergencyStop {
		power = errorStyle.Render(l.Power.String())
	}
	station := "unknown"
	if l.Station.HasVersion {
		station = "version " + l.Station.Version.String()
		if l.Station.HasType {
			station = xpressnet.StationTypeName(l.Station.Type) + " " + station
		}
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		statsLabelStyle.Render("Power:"), power,
		statsLabelStyle.Render("Station:"), statsValueStyle.Render(station),
	))

	occupied := 0
	for _, on := range l.Feedback {
		if on {
			occupied++
		}
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Switches:"), statsValueStyle.Render(fmt.Sprintf("%d", len(l.Switches))),
		statsLabelStyle.Render("Feedback:"), statsValueStyle.Render(fmt.Sprintf("%d/%d occupied", occupied, len(l.Feedback))),
		statsLabelStyle.Render("Locos:"), statsValueStyle.Render(fmt.Sprintf("%d", len(l.Locos)+len(l.DeviceLocos))),
	))

	if len(l.Switches) > 0 {
		addrs := make([]int, 0, len(l.Switches))
		for a := range l.Switches {
			addrs = append(addrs, a)
		}
		sort.Ints(addrs)
		if len(addrs) > 8 {
			addrs = addrs[len(addrs)-8:]
		}
		parts := make([]string, len(addrs))
		for i, a := range addrs {
			sw := l.Switches[a]
			parts[i] = fmt.Sprintf("%d:%s", a, sw.Position)
			if sw.Moving {
				parts[i] += "*"
			}
		}
		b.WriteString(headerStyle.Render("  " + strings.Join(parts, "  ")))
		b.WriteString("\n")
	}

	lastError := "none"
	if l.LastError != nil {
		lastError = fmt.Sprintf("%s (0x%02X) at %s", l.LastError.Name, l.LastError.Code, l.LastError.At.Format("15:04:05"))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %d",
		statsLabelStyle.Render("Last Error:"), warningStyle.Render(lastError),
		statsLabelStyle.Render("Transmission Errors:"), l.TransmissionErrors,
	))
	return b.String()
}
