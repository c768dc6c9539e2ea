package cmds

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/moviechat/pkg/app"
	"github.com/go-go-golems/moviechat/pkg/config"
	"github.com/go-go-golems/moviechat/pkg/webchat"
)

func newServeCommand(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat web UI",
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

			srv, err := webchat.NewServer(a, st.settings.Addr)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("addr", config.DefaultAddr, "HTTP listen address")
	cmd.Flags().Duration("session-idle-timeout", config.DefaultSessionIdleTimeout, "Forget chat sessions idle for this long (0 keeps them)")
	return cmd
}
