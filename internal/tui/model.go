/*
Package tui is the terminal front end of the chat client.

The Model renders the client state held by the view Router and the user Registry and
forwards keyboard input to the actions. State changes reach the bubbletea loop through a
buffered channel fed by the Router and Registry observers.
*/
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"chatroom/internal/app/actions"
	"chatroom/internal/app/registry"
	"chatroom/internal/app/rpc"
	"chatroom/internal/app/session"
	"chatroom/internal/app/user"
	"chatroom/internal/app/view"
	"chatroom/internal/pkg/errs"
)

const (
	sidebarWidth = 24
	updateBuffer = 64

	// header, typing line, input and status line
	chromeHeight = 4
)

// StatusUpdater changes the presence status of the signed-in user.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, status user.Status) error
}

// Deps are the client components the Model drives.
type Deps struct {
	Session  *session.Session
	Auth     *actions.Auth
	Composer *actions.Composer
	Router   *view.Router
	Registry *registry.Registry
	Status   StatusUpdater

	// Start runs once after joining. It loads the initial state and starts the
	// event stream; the returned channel delivers the error that ended the stream.
	Start func(ctx context.Context) (<-chan error, error)
}

type (
	changeMsg      view.Change
	usersMsg       struct{}
	joinedMsg      struct{ streamDone <-chan error }
	sentMsg        struct{ text string }
	errMsg         struct{ err error }
	startFailedMsg struct{ err error }
	streamEndedMsg struct{ err error }
)

// Model is the bubbletea model of the chat client.
type Model struct {
	ctx  context.Context
	deps Deps

	updates     chan tea.Msg
	unsubscribe []func()

	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int

	joined  bool
	joining bool
	status  string
}

// New returns a Model showing the join prompt.
func New(ctx context.Context, deps Deps) *Model {
	ti := textinput.New()
	ti.Placeholder = "Choose a name"
	ti.CharLimit = 4096
	ti.Prompt = "> "
	ti.PromptStyle = headerStyle
	ti.Focus()

	m := &Model{
		ctx:      ctx,
		deps:     deps,
		updates:  make(chan tea.Msg, updateBuffer),
		input:    ti,
		viewport: viewport.New(80, 20),
	}

	m.unsubscribe = append(m.unsubscribe,
		deps.Router.Subscribe(func(c view.Change) { m.post(changeMsg(c)) }),
		deps.Registry.Subscribe(func() { m.post(usersMsg{}) }),
	)

	return m
}

// post hands msg to the bubbletea loop. It never blocks the reducer; when the
// buffer is full the update is dropped and the next one redraws anyway.
func (m *Model) post(msg tea.Msg) {
	select {
	case m.updates <- msg:
	default:
	}
}

// Close detaches the Model from the client state.
func (m *Model) Close() {
	for _, fn := range m.unsubscribe {
		fn()
	}
	m.unsubscribe = nil
}

// errText prefers the server's message over the full error form.
func errText(err error) string {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		return customErr.Message
	}
	return err.Error()
}

func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.updates:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

func waitStream(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return streamEndedMsg{err: <-done}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changeMsg:
		if msg.Key == m.deps.Router.Active() {
			m.refresh(msg.Scroll)
		}
		return m, m.listen()

	case usersMsg:
		return m, m.listen()

	case joinedMsg:
		m.joined, m.joining = true, false
		m.status = ""
		m.input.Reset()
		m.input.Placeholder = "Message #global"
		m.refresh(true)
		return m, waitStream(msg.streamDone)

	case sentMsg:
		if m.input.Value() == msg.text {
			m.input.Reset()
		}
		m.status = ""
		return m, nil

	case errMsg:
		m.joining = false
		m.status = errText(msg.err)
		return m, nil

	case startFailedMsg:
		m.joining = false
		m.status = errText(msg.err) + " Press enter to retry."
		return m, nil

	case streamEndedMsg:
		if errors.Is(msg.err, rpc.ErrSessionEnded) {
			m.status = "You are no longer in the chatroom."
		} else if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.status = "Disconnected: " + errText(msg.err)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.joined && m.deps.Router.Active() != view.GlobalKey {
			m.switchTo(view.GlobalKey)
			return m, nil
		}
		return m, tea.Quit

	case "enter":
		if !m.joined {
			return m, m.join()
		}
		return m, m.submit()

	case "tab":
		m.cycle(1)
		return m, nil

	case "shift+tab":
		m.cycle(-1)
		return m, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	if m.joined && m.input.Value() != before && !strings.HasPrefix(m.input.Value(), "/") {
		return m, tea.Batch(cmd, m.typed(m.input.Value()))
	}
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.Width = max(width-4, 10)
	m.viewport.Width = max(width-sidebarWidth-2, 10)
	m.viewport.Height = max(height-chromeHeight, 3)
	m.refresh(false)
}

// refresh re-renders the active conversation.
func (m *Model) refresh(scroll bool) {
	events := m.deps.Router.View(m.deps.Router.Active()).Events()
	m.viewport.SetContent(renderEvents(events))
	if scroll {
		m.viewport.GotoBottom()
	}
}

func (m *Model) switchTo(key view.Key) {
	m.deps.Router.SetActive(key)
	m.input.Placeholder = "Message " + conversationLabel(key, m.deps.Registry.Get)
	m.refresh(true)
}

func (m *Model) cycle(step int) {
	if !m.joined {
		return
	}

	keys := m.deps.Router.Keys()
	active := m.deps.Router.Active()
	for i, k := range keys {
		if k == active {
			m.switchTo(keys[(i+step+len(keys))%len(keys)])
			return
		}
	}
}

func (m *Model) join() tea.Cmd {
	name := strings.TrimSpace(m.input.Value())
	if m.joining || (name == "" && !m.deps.Session.Authenticated()) {
		return nil
	}
	m.joining = true
	m.status = "Joining..."

	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		// a session from an earlier attempt whose Start failed is reused
		if !deps.Session.Authenticated() {
			if err := deps.Auth.Join(ctx, name); err != nil {
				return errMsg{err}
			}
		}
		done, err := deps.Start(ctx)
		if err != nil {
			return startFailedMsg{err}
		}
		return joinedMsg{streamDone: done}
	}
}

func (m *Model) typed(text string) tea.Cmd {
	ctx, composer := m.ctx, m.deps.Composer
	return func() tea.Msg {
		if err := composer.Input(ctx, text); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}

	ctx, composer := m.ctx, m.deps.Composer
	return func() tea.Msg {
		if err := composer.Submit(ctx, text); err != nil {
			return errMsg{err}
		}
		return sentMsg{text: text}
	}
}

// command runs a slash command typed into the input.
func (m *Model) command(text string) tea.Cmd {
	fields := strings.Fields(text)
	arg := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))

	switch fields[0] {
	case "/quit":
		return tea.Quit

	case "/all":
		m.input.Reset()
		m.switchTo(view.GlobalKey)
		return nil

	case "/dm":
		id, ok := m.findUser(arg)
		if !ok {
			m.status = fmt.Sprintf("No active user named %q.", arg)
			return nil
		}
		if id == m.deps.Session.UserID() {
			m.status = "You cannot message yourself."
			return nil
		}
		m.input.Reset()
		m.switchTo(id)
		return nil

	case "/status":
		var status user.Status
		if err := status.UnmarshalText([]byte(arg)); err != nil {
			m.status = "Usage: /status default|busy|away"
			return nil
		}
		m.input.Reset()
		ctx, api := m.ctx, m.deps.Status
		return func() tea.Msg {
			if err := api.UpdateStatus(ctx, status); err != nil {
				return errMsg{err}
			}
			return nil
		}
	}

	m.status = "Commands: /dm <name>, /all, /status <status>, /quit"
	return nil
}

func (m *Model) findUser(name string) (uuid.UUID, bool) {
	for _, u := range m.deps.Registry.Users() {
		if strings.EqualFold(u.Details.Name, name) {
			return u.ID, true
		}
	}
	return uuid.Nil, false
}

func (m *Model) View() string {
	if !m.joined {
		return m.joinView()
	}

	var tabs []string
	active := m.deps.Router.Active()
	for _, k := range m.deps.Router.Keys() {
		label := conversationLabel(k, m.deps.Registry.Get)
		if k == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}

	sidebar := sidebarStyle.
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(renderUsers(m.deps.Registry.Users(), m.deps.Session.UserID()))

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", m.viewport.View())
	typing := typingStyle.Render(typingLine(m.deps.Router.View(active).TypingUsers()))

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		body,
		typing,
		m.input.View(),
		errorStyle.Render(m.status),
	)
}

func (m *Model) joinView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("chatroom"),
		"",
		"Pick a display name to join.",
		m.input.View(),
		"",
		errorStyle.Render(m.status),
	)
}
