package cmds

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/moviechat/pkg/prompts"
)

func newSchemaCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the table description and sample questions given to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := prompts.LoadFile(st.settings.PromptsFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Table: %s\n\n%s\n", p.Table, p.Schema)
			_, _ = fmt.Fprintln(w, "Sample questions:")
			for _, q := range p.SampleQueries {
				_, _ = fmt.Fprintf(w, "  - %s\n", q)
			}
			return nil
		},
	}
}
