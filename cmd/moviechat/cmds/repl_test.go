package cmds

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func typeText(t *testing.T, m tea.Model, s string) tea.Model {
	t.Helper()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func enter(m tea.Model) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func echoModel() replModel {
	ask := func(_ context.Context, prompt string) (string, error) {
		if prompt == "fail" {
			return "", errors.New("model down")
		}
		return "answer to " + prompt, nil
	}
	return newReplModel(context.Background(), ask, func(s string) string { return s }, "hello")
}

func TestReplSubmitRunsTurn(t *testing.T) {
	m := typeText(t, echoModel(), "top movies")
	m, cmd := enter(m)
	require.NotNil(t, cmd)

	rm := m.(replModel)
	require.True(t, rm.busy)
	require.Equal(t, "", rm.input.Value())
	require.Contains(t, rm.View(), "Thinking...")

	msg := rm.runTurn("top movies")()
	require.Equal(t, answerMsg{text: "answer to top movies"}, msg)

	m, cmd = m.Update(msg)
	require.NotNil(t, cmd)
	require.False(t, m.(replModel).busy)
}

func TestReplIgnoresInputWhileBusy(t *testing.T) {
	m := typeText(t, echoModel(), "first")
	m, _ = enter(m)

	m = typeText(t, m, "second")
	m, cmd := enter(m)
	require.Nil(t, cmd)
	require.True(t, m.(replModel).busy)
	require.Equal(t, "", m.(replModel).input.Value())
}

func TestReplShowsToolStatus(t *testing.T) {
	m := typeText(t, echoModel(), "count")
	m, _ = enter(m)
	m, _ = m.Update(toolMsg{tool: "query_database"})
	require.Contains(t, m.View(), "Running tool: query_database...")
}

func TestReplReportsErrors(t *testing.T) {
	m := echoModel()
	msg := m.runTurn("fail")()
	require.Equal(t, "model down", msg.(answerMsg).err.Error())

	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	require.False(t, next.(replModel).busy)
}

func TestReplBlankLineDoesNothing(t *testing.T) {
	m := typeText(t, echoModel(), "   ")
	m, cmd := enter(m)
	require.Nil(t, cmd)
	require.False(t, m.(replModel).busy)
}

func TestReplQuits(t *testing.T) {
	for _, word := range []string{"exit", "quit"} {
		m := typeText(t, echoModel(), word)
		_, cmd := enter(m)
		require.NotNil(t, cmd)
		require.Equal(t, tea.QuitMsg{}, cmd())
	}

	_, cmd := echoModel().Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.Equal(t, tea.QuitMsg{}, cmd())
}
