package cmds

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/moviechat/pkg/moviedb"
)

func newQueryCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run SQL through the same read-only gate the model uses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := moviedb.NewStore(st.settings.DBPath)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), store.Query(cmd.Context(), strings.Join(args, " ")))
			return err
		},
	}
}
