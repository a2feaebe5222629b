package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/picklr-io/tether/internal/config"
	"github.com/picklr-io/tether/internal/kinds"
	"github.com/picklr-io/tether/internal/logging"
)

var (
	cfgFile string
	noColor bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tether",
		Short: "Sync notification resources between the API and local files",
		Long: `Tether pulls workflows, layouts, partials, message types, guides and
translations from the management API into plain files, and pushes them back.

Large content fields live in their own files next to each resource's JSON
descriptor, so templates can be edited and reviewed like any other source.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(cfgFile); err != nil {
				return err
			}
			logging.Init(viper.GetString("log_level"), viper.GetString("log_format"))
			if noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			return nil
		},
	}

	cmd.SetGlobalNormalizationFunc(normalizeFlag)

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/tether/config.yaml)")
	flags.String("service-token", "", "service token for the management API")
	flags.String("api-origin", "", "origin of the management API")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text or json)")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	_ = viper.BindPFlag("service_token", flags.Lookup("service-token"))
	_ = viper.BindPFlag("api_origin", flags.Lookup("api-origin"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())
	for _, k := range kinds.Default().All() {
		cmd.AddCommand(newKindCmd(k))
	}
	return cmd
}

// normalizeFlag accepts config-file style names, so --service_token and
// --service-token are the same flag.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
