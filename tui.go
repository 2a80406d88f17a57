package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hotscribe/bus"
	"hotscribe/config"
)

// TUI message types
type statusMsg struct{ Profile, Text string }
type outputMsg struct {
	Profile string
	Text    string
}
type errorMsg struct {
	Profile string
	Err     error
}
type startedMsg struct{}
type failedMsg struct{ Err error }
type tickMsg time.Time

type profileLine struct {
	name   string
	key    string
	mode   string
	status string
	since  time.Time
}

type tuiModel struct {
	profiles  []profileLine
	frame     int
	width     int
	started   bool
	startErr  error
	lastText  string
	lastFrom  string
	count     int
	lastError string
	now       func() time.Time
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	spinnerFrame = []string{"◐", "◓", "◑", "◒"}
)

func newTUIModel(cfg *config.Config) tuiModel {
	m := tuiModel{now: time.Now}
	for _, p := range cfg.Active() {
		m.profiles = append(m.profiles, profileLine{
			name: p.Name,
			key:  p.ActivationKey,
			mode: string(p.RecordingOptions.RecordingMode),
		})
	}
	return m
}

func tuiTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case startedMsg:
		m.started = true
		m.startErr = nil

	case failedMsg:
		m.started = false
		m.startErr = msg.Err

	case statusMsg:
		for i := range m.profiles {
			if m.profiles[i].name == msg.Profile {
				if m.profiles[i].status == "" || msg.Text == "" {
					m.profiles[i].since = m.now()
				}
				m.profiles[i].status = msg.Text
			}
		}

	case outputMsg:
		if strings.TrimSpace(msg.Text) != "" {
			m.count++
			m.lastText = msg.Text
			m.lastFrom = msg.Profile
		}

	case errorMsg:
		m.lastError = fmt.Sprintf("(%s) %v", msg.Profile, msg.Err)
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("hotscribe "+version) + "\n\n")

	switch {
	case m.startErr != nil:
		b.WriteString(errStyle.Render("startup failed: "+m.startErr.Error()) + "\n\n")
	case !m.started:
		b.WriteString(idleStyle.Render("starting...") + "\n\n")
	}

	for _, p := range m.profiles {
		b.WriteString(m.renderProfile(p) + "\n")
	}

	width := m.width - 2
	if width < 20 {
		width = 60
	}
	if m.lastText != "" {
		b.WriteString("\n" + idleStyle.Render(fmt.Sprintf("Last transcription (#%d, %s)", m.count, m.lastFrom)) + "\n")
		for _, line := range wrapText(m.lastText, width) {
			b.WriteString(textStyle.Render(line) + "\n")
		}
	}
	if m.lastError != "" {
		b.WriteString("\n")
		for _, line := range wrapText("⚠ "+m.lastError, width) {
			b.WriteString(errStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + helpStyle.Render("q or ctrl+c to quit") + "\n")
	return b.String()
}

func (m tuiModel) renderProfile(p profileLine) string {
	head := fmt.Sprintf("%-12s %s  %s", p.name, keyStyle.Render(p.key), helpStyle.Render(p.mode))
	switch {
	case p.status == "":
		return idleStyle.Render("○ ") + head
	case strings.HasSuffix(p.status, "Transcribing..."):
		spin := spinnerFrame[m.frame%len(spinnerFrame)]
		return busyStyle.Render(spin+" ") + head + "  " + busyStyle.Render("transcribing")
	default:
		elapsed := m.now().Sub(p.since).Seconds()
		label := "REC"
		if strings.HasSuffix(p.status, "Streaming...") {
			label = "LIVE"
		}
		return recStyle.Render("● ") + head + "  " + recStyle.Render(fmt.Sprintf("%s %.1fs", label, elapsed))
	}
}

// wrapText breaks text at spaces so that no line exceeds width runes,
// splitting long words when there is no space to break at.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		r := []rune(para)
		for len(r) > width {
			splitAt := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, string(r[:splitAt]))
			r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
		}
		lines = append(lines, string(r))
	}
	return lines
}

// statusView runs the TUI and forwards bus events to it.
type statusView struct {
	program *tea.Program
}

func newStatusView(b *bus.Bus, cfg *config.Config) *statusView {
	v := &statusView{program: tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())}
	send := v.program.Send

	b.Subscribe(bus.CoreComponentsStarted, func(any) { send(startedMsg{}) })
	b.Subscribe(bus.InitializationFailed, func(payload any) {
		if f, ok := bus.Expect[bus.Failure](bus.InitializationFailed, payload); ok {
			send(failedMsg{Err: f.Err})
		}
	})
	b.Subscribe(bus.ProfileStateChange, func(payload any) {
		if st, ok := bus.Expect[bus.Status](bus.ProfileStateChange, payload); ok {
			send(statusMsg{Profile: st.Profile, Text: st.Text})
		}
	})
	b.Subscribe(bus.TranscriptionOutput, func(payload any) {
		if out, ok := bus.Expect[bus.Output](bus.TranscriptionOutput, payload); ok {
			send(outputMsg{Profile: out.Profile, Text: out.Processed})
		}
	})
	b.Subscribe(bus.TranscriptionError, func(payload any) {
		if f, ok := bus.Expect[bus.Failure](bus.TranscriptionError, payload); ok {
			send(errorMsg{Profile: f.Profile, Err: f.Err})
		}
	})
	return v
}

func (v *statusView) Run() error {
	_, err := v.program.Run()
	return err
}

func (v *statusView) Quit() {
	v.program.Quit()
	v.program.Wait()
}
