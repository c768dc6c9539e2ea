package webchat

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/go-go-golems/moviechat/pkg/moviedb"
	"github.com/go-go-golems/moviechat/pkg/turns"
)

//go:embed templates/*.html
var templateFS embed.FS

type messageView struct {
	Role  string
	Label string
	HTML  template.HTML
}

type statsView struct {
	TotalMovies string
	TotalVotes  string
}

type pageData struct {
	Messages      []messageView
	Error         string
	Stats         *statsView
	Table         string
	Schema        string
	SampleQueries []string
}

// renderer turns chat history into the single page UI. Message text is
// markdown; the generated HTML is sanitized before it reaches the page.
type renderer struct {
	tmpl    *template.Template
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	printer *message.Printer
}

func newRenderer() (*renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	return &renderer{
		tmpl:    tmpl,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:  bluemonday.UGCPolicy(),
		printer: message.NewPrinter(language.English),
	}, nil
}

func (r *renderer) markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

func (r *renderer) messages(history []turns.Turn) []messageView {
	ret := make([]messageView, 0, len(history))
	for _, t := range history {
		label := "Assistant"
		if t.Role == turns.RoleUser {
			label = "You"
		}
		ret = append(ret, messageView{Role: string(t.Role), Label: label, HTML: r.markdown(t.Text)})
	}
	return ret
}

func (r *renderer) stats(st moviedb.Stats) *statsView {
	if !st.Available {
		return nil
	}
	return &statsView{
		TotalMovies: r.printer.Sprintf("%d", st.TotalMovies),
		TotalVotes:  r.printer.Sprintf("%d", st.TotalVotes),
	}
}

func (r *renderer) page(w io.Writer, data pageData) error {
	return errors.Wrap(r.tmpl.ExecuteTemplate(w, "index.html", data), "render page")
}
