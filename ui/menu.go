package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MenuBackend is what the interactive menu drives.
type MenuBackend interface {
	ListEntries() ([]string, error)
	CreateEntry(name, presharedKey string) error
	Connect(ctx context.Context, req ConnectRequest) error
	Disconnect(ctx context.Context) error
	RemoveEntry(name string) error
	PublicIPString(ctx context.Context) (string, error)
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type screen int

const (
	screenMenu screen = iota
	screenForm
	screenBusy
	screenConnected
	screenResult
)

type action int

const (
	actionList action = iota
	actionCreate
	actionConnect
	actionRemove
)

var menuOptions = []string{
	"List all connections",
	"Create new IPsec connection",
	"Connect/Disconnect demo",
	"Remove IPsec connection",
}

type entriesMsg struct {
	names []string
	err   error
}

type doneMsg struct {
	text string
	err  error
}

type connectedMsg struct {
	entry    string
	publicIP string
	err      error
}

type disconnectedMsg struct {
	publicIP string
	err      error
}

// MenuModel is the bubbletea model of the interactive menu.
type MenuModel struct {
	backend MenuBackend
	screen  screen
	cursor  int
	action  action

	entries    []string
	entriesErr error

	inputs []textinput.Model
	focus  int

	spinner  spinner.Model
	busyText string

	connected string
	publicIP  string

	result    string
	resultErr error
	quitting  bool
}

// NewMenuModel returns the menu in its initial state.
func NewMenuModel(backend MenuBackend) MenuModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return MenuModel{backend: backend, spinner: s}
}

// RunMenu runs the interactive menu until the user quits.
func RunMenu(backend MenuBackend) error {
	_, err := tea.NewProgram(NewMenuModel(backend)).Run()
	return err
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.screen != screenBusy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case entriesMsg:
		m.entries, m.entriesErr = msg.names, msg.err
		if m.action == actionList {
			m.screen = screenResult
			m.result, m.resultErr = "", msg.err
			return m, nil
		}
		cmd := m.openForm()
		return m, cmd

	case doneMsg:
		m.screen = screenResult
		m.result, m.resultErr = msg.text, msg.err
		return m, nil

	case connectedMsg:
		if msg.err != nil {
			m.screen = screenResult
			m.result, m.resultErr = "", msg.err
			return m, nil
		}
		m.screen = screenConnected
		m.connected = msg.entry
		m.publicIP = msg.publicIP
		return m, nil

	case disconnectedMsg:
		m.screen = screenResult
		m.resultErr = msg.err
		m.result = "Disconnected from " + m.connected
		if msg.publicIP != "" {
			m.result += "\nPublic IP: " + msg.publicIP
		}
		m.connected = ""
		return m, nil
	}

	if m.screen == screenForm {
		return m.updateInputs(msg)
	}
	return m, nil
}

func (m MenuModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenMenu:
		switch msg.String() {
		case "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(menuOptions)-1 {
				m.cursor++
			}
		case "1", "2", "3", "4":
			m.cursor = int(msg.String()[0] - '1')
			return m.choose()
		case "enter":
			return m.choose()
		}
		return m, nil

	case screenForm:
		switch msg.Type {
		case tea.KeyEsc:
			m.screen = screenMenu
			return m, nil
		case tea.KeyTab, tea.KeyDown:
			cmd := m.focusInput(m.focus + 1)
			return m, cmd
		case tea.KeyShiftTab, tea.KeyUp:
			cmd := m.focusInput(m.focus - 1)
			return m, cmd
		case tea.KeyEnter:
			if m.focus < len(m.inputs)-1 {
				cmd := m.focusInput(m.focus + 1)
				return m, cmd
			}
			return m.submit()
		}
		return m.updateInputs(msg)

	case screenConnected:
		if msg.Type == tea.KeyEnter {
			return m.busy("Disconnecting from "+m.connected, disconnectCmd(m.backend))
		}
		return m, nil

	case screenResult:
		m.screen = screenMenu
		m.result, m.resultErr = "", nil
		return m, nil
	}
	return m, nil
}

// choose starts the selected option. Every option shows the phonebook
// entries first.
func (m MenuModel) choose() (tea.Model, tea.Cmd) {
	m.action = action(m.cursor)
	return m.busy("Loading connections", listCmd(m.backend))
}

func (m MenuModel) busy(text string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.screen = screenBusy
	m.busyText = text
	return m, tea.Batch(m.spinner.Tick, cmd)
}

func (m *MenuModel) openForm() tea.Cmd {
	var fields []string
	switch m.action {
	case actionCreate:
		fields = []string{"IPsec connection name", "Preshared key"}
	case actionConnect:
		fields = []string{"IPsec connection name", "Server address", "Username", "Password"}
	case actionRemove:
		fields = []string{"IPsec connection name"}
	}

	m.inputs = make([]textinput.Model, len(fields))
	for i, label := range fields {
		ti := textinput.New()
		ti.Prompt = fmt.Sprintf("%-22s ", label+":")
		ti.CharLimit = 256
		if label == "Preshared key" || label == "Password" {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		m.inputs[i] = ti
	}
	m.screen = screenForm
	m.focus = -1
	return m.focusInput(0)
}

func (m *MenuModel) focusInput(i int) tea.Cmd {
	if i < 0 || i >= len(m.inputs) {
		return nil
	}
	if m.focus >= 0 && m.focus < len(m.inputs) {
		m.inputs[m.focus].Blur()
	}
	m.focus = i
	return m.inputs[i].Focus()
}

func (m MenuModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.focus < 0 || m.focus >= len(m.inputs) {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m MenuModel) value(i int) string {
	return strings.TrimSpace(m.inputs[i].Value())
}

func (m MenuModel) submit() (tea.Model, tea.Cmd) {
	switch m.action {
	case actionCreate:
		return m.busy("Creating "+m.value(0), createCmd(m.backend, m.value(0), m.inputs[1].Value()))
	case actionConnect:
		req := ConnectRequest{
			EntryName: m.value(0),
			Server:    m.value(1),
			Username:  m.value(2),
			Password:  m.inputs[3].Value(),
		}
		return m.busy("Connecting to "+req.EntryName, connectCmd(m.backend, req))
	case actionRemove:
		return m.busy("Removing "+m.value(0), removeCmd(m.backend, m.value(0)))
	}
	return m, nil
}

func listCmd(b MenuBackend) tea.Cmd {
	return func() tea.Msg {
		names, err := b.ListEntries()
		return entriesMsg{names: names, err: err}
	}
}

func createCmd(b MenuBackend, name, psk string) tea.Cmd {
	return func() tea.Msg {
		if err := b.CreateEntry(name, psk); err != nil {
			return doneMsg{err: err}
		}
		return doneMsg{text: fmt.Sprintf("VPN connection %s created successfully.", name)}
	}
}

func removeCmd(b MenuBackend, name string) tea.Cmd {
	return func() tea.Msg {
		if err := b.RemoveEntry(name); err != nil {
			return doneMsg{err: err}
		}
		return doneMsg{text: fmt.Sprintf("VPN connection %s removed successfully.", name)}
	}
}

func connectCmd(b MenuBackend, req ConnectRequest) tea.Cmd {
	return func() tea.Msg {
		if err := b.Connect(context.Background(), req); err != nil {
			return connectedMsg{err: err}
		}
		ip, err := b.PublicIPString(context.Background())
		if err != nil {
			ip = "unknown (" + err.Error() + ")"
		}
		return connectedMsg{entry: req.EntryName, publicIP: ip}
	}
}

func disconnectCmd(b MenuBackend) tea.Cmd {
	return func() tea.Msg {
		if err := b.Disconnect(context.Background()); err != nil {
			return disconnectedMsg{err: err}
		}
		ip, err := b.PublicIPString(context.Background())
		if err != nil {
			ip = "unknown (" + err.Error() + ")"
		}
		return disconnectedMsg{publicIP: ip}
	}
}

func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("IPsec Client") + "\n\n")

	switch m.screen {
	case screenMenu:
		b.WriteString("Type number for option you wish:\n\n")
		for i, opt := range menuOptions {
			line := fmt.Sprintf("%d) %s", i+1, opt)
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("> "+line) + "\n")
			} else {
				b.WriteString("  " + line + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ select • enter choose • q quit"))

	case screenForm:
		b.WriteString(m.entriesView() + "\n")
		for _, in := range m.inputs {
			b.WriteString(in.View() + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("tab next field • enter submit • esc back"))

	case screenBusy:
		b.WriteString(m.spinner.View() + " " + m.busyText + "...")

	case screenConnected:
		body := successStyle.Render("Connected to "+m.connected) + "\nPublic IP: " + m.publicIP
		b.WriteString(boxStyle.Render(body) + "\n\n")
		b.WriteString(dimStyle.Render("Press <ENTER> to Disconnect..."))

	case screenResult:
		if m.action == actionList && m.resultErr == nil {
			b.WriteString(m.entriesView())
		}
		if m.resultErr != nil {
			b.WriteString(errorStyle.Render("ERROR: "+m.resultErr.Error()) + "\n")
		} else if m.result != "" {
			b.WriteString(successStyle.Render(m.result) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("press any key to continue"))
	}
	return b.String() + "\n"
}

func (m MenuModel) entriesView() string {
	if m.entriesErr != nil {
		return errorStyle.Render("ERROR: "+m.entriesErr.Error()) + "\n"
	}
	var b strings.Builder
	b.WriteString("VPN connections:\n")
	if len(m.entries) == 0 {
		b.WriteString(dimStyle.Render("\t(none)") + "\n")
	}
	for _, name := range m.entries {
		b.WriteString("\t" + name + "\n")
	}
	return b.String()
}
