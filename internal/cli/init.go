package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picklr-io/tether/internal/config"
	"github.com/picklr-io/tether/internal/ir"
)

func newInitCmd() *cobra.Command {
	var (
		resourcesDir string
		force        bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new tether project",
		Long:  `Creates a tether.json project file in the current directory.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			path, err := config.WriteProject(wd, &ir.ProjectConfig{ResourcesDir: resourcesDir}, force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", path)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. Set TETHER_SERVICE_TOKEN or pass --service-token")
			fmt.Fprintln(out, "  2. Run 'tether workflow pull --all' to fetch your workflows")
			return nil
		},
	}
	cmd.Flags().StringVar(&resourcesDir, "resources-dir", ".", "directory holding the resource index directories")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing project file")
	return cmd
}
