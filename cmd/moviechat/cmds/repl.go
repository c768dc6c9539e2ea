package cmds

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/go-go-golems/moviechat/pkg/app"
	"github.com/go-go-golems/moviechat/pkg/events"
	"github.com/go-go-golems/moviechat/pkg/session"
)

type answerMsg struct {
	text string
	err  error
}

// toolMsg reports a tool call of the running turn.
type toolMsg struct {
	tool string
}

type askFunc func(ctx context.Context, prompt string) (string, error)

// replModel is the interactive chat: a single input line, a spinner while a
// turn runs, and answers printed above the input.
type replModel struct {
	ctx      context.Context
	ask      askFunc
	render   func(string) string
	greeting string

	input   textinput.Model
	spinner spinner.Model
	busy    bool
	status  string
}

func newReplModel(ctx context.Context, ask askFunc, render func(string) string, greeting string) replModel {
	ti := textinput.New()
	ti.Placeholder = "Ask me about the movie dataset..."
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line

	return replModel{
		ctx:      ctx,
		ask:      ask,
		render:   render,
		greeting: greeting,
		input:    ti,
		spinner:  sp,
	}
}

func (m replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tea.Println(m.render(m.greeting)))
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			return m.submit()
		}
		if m.busy {
			return m, nil
		}

	case answerMsg:
		m.busy = false
		m.status = ""
		if msg.err != nil {
			return m, tea.Println("An error occurred: " + msg.err.Error())
		}
		return m, tea.Println(m.render(msg.text))

	case toolMsg:
		m.status = "Running tool: " + msg.tool + "..."
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m replModel) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	switch prompt {
	case "":
		return m, nil
	case "exit", "quit":
		return m, tea.Quit
	}
	m.input.Reset()
	m.busy = true
	m.status = "Thinking..."
	return m, tea.Batch(tea.Println("> "+prompt), m.runTurn(prompt), m.spinner.Tick)
}

func (m replModel) runTurn(prompt string) tea.Cmd {
	ctx, ask := m.ctx, m.ask
	return func() tea.Msg {
		text, err := ask(ctx, prompt)
		return answerMsg{text: text, err: err}
	}
}

func (m replModel) View() string {
	if m.busy {
		return m.spinner.View() + " " + m.status + "\n"
	}
	return m.input.View() + "\n"
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// repl chats until the user quits. Tool calls of the session show up in the
// status line while a turn runs.
func repl(ctx context.Context, a *app.App, sess *session.Session, in io.Reader, w io.Writer, out *printer) error {
	ask := func(ctx context.Context, prompt string) (string, error) {
		return a.Agent.RunTurn(ctx, sess, prompt)
	}
	m := newReplModel(ctx, ask, out.render, a.Prompts.Greeting)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(w))

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	err := a.Bus.Subscribe(subCtx, "cli", func(_ context.Context, e events.Event) error {
		if e.SessionID == sess.ID && e.Type == events.TypeToolCall {
			p.Send(toolMsg{tool: e.Tool})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "run chat")
	}
	return nil
}
