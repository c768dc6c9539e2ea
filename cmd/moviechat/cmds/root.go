package cmds

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/moviechat/pkg/config"
	"github.com/go-go-golems/moviechat/pkg/logging"
)

// state is shared by the subcommands once the root pre-run has loaded it.
type state struct {
	v        *viper.Viper
	settings *config.Settings
}

func NewRootCommand() *cobra.Command {
	st := &state{v: config.New()}

	root := &cobra.Command{
		Use:          config.AppName,
		Short:        "Chat with an LLM about a movie dataset stored in SQLite",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load(cmd)
		},
	}
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCommand(st),
		newAskCommand(st),
		newQueryCommand(st),
		newSchemaCommand(st),
		newStatsCommand(st),
	)
	return root
}

func (st *state) load(cmd *cobra.Command) error {
	if err := config.BindFlags(st.v, cmd.Flags()); err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("config")
	if err := config.ReadConfigFile(st.v, path); err != nil {
		return err
	}
	s, err := config.Load(st.v)
	if err != nil {
		return err
	}
	// reinitialize the logger now that --log-level and co are parsed
	if err := logging.InitLogger(s.Logging()); err != nil {
		return err
	}
	st.settings = s
	return nil
}
