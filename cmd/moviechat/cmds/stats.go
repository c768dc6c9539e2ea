package cmds

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/go-go-golems/moviechat/pkg/moviedb"
	"github.com/go-go-golems/moviechat/pkg/prompts"
)

func newStatsCommand(st *state) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the movie count and total votes",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := prompts.LoadFile(st.settings.PromptsFile)
			if err != nil {
				return err
			}
			stats, err := moviedb.NewStore(st.settings.DBPath, moviedb.WithTable(p.Table)).Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			pr := message.NewPrinter(language.English)
			_, err = pr.Fprintf(cmd.OutOrStdout(), "Total movies: %d\nTotal votes:  %d\n", stats.TotalMovies, stats.TotalVotes)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")
	return cmd
}
