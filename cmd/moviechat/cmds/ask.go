package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/moviechat/pkg/app"
)

func newAskCommand(st *state) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question, or chat interactively when no question is given",
		Long: "With arguments, ask them as one question. Otherwise read the question from piped\n" +
			"stdin, or start an interactive chat when stdin is a terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.Build(ctx, st.settings)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn().Err(err).Msg("close app")
				}
			}()
			if err := a.Start(ctx); err != nil {
				return err
			}

			out := newPrinter(cmd.OutOrStdout(), plain)
			sess, _ := a.Sessions.GetOrCreate("")

			in := cmd.InOrStdin()
			if len(args) == 0 && isTerminal(in) {
				return repl(ctx, a, sess, in, cmd.OutOrStdout(), out)
			}

			question := strings.Join(args, " ")
			if len(args) == 0 {
				// piped input is a single question
				raw, err := io.ReadAll(in)
				if err != nil {
					return errors.Wrap(err, "read question")
				}
				question = strings.TrimSpace(string(raw))
			}
			if question == "" {
				return errors.New("no question given")
			}
			answer, err := a.Agent.RunTurn(ctx, sess, question)
			if err != nil {
				return err
			}
			return out.markdown(answer)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print raw markdown instead of rendering it")
	return cmd
}

// printer renders markdown with glamour when writing to a terminal.
type printer struct {
	w        io.Writer
	renderer *glamour.TermRenderer
}

func newPrinter(w io.Writer, plain bool) *printer {
	p := &printer{w: w}
	if plain {
		return p
	}
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return p
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		log.Debug().Err(err).Msg("glamour unavailable, printing raw markdown")
		return p
	}
	p.renderer = r
	return p
}

// render returns md as terminal output, or unchanged when not rendering.
func (p *printer) render(md string) string {
	if p.renderer == nil {
		return md
	}
	rendered, err := p.renderer.Render(md)
	if err != nil {
		log.Debug().Err(err).Msg("render markdown")
		return md
	}
	return strings.TrimRight(rendered, "\n")
}

func (p *printer) markdown(md string) error {
	_, err := fmt.Fprintln(p.w, p.render(md))
	return errors.Wrap(err, "write answer")
}
