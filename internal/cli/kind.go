package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picklr-io/tether/internal/engine"
	"github.com/picklr-io/tether/internal/kinds"
	"github.com/picklr-io/tether/internal/marshal"
)

var askOne = survey.AskOne

func newKindCmd(k *kinds.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   k.Command,
		Short: fmt.Sprintf("Manage %s resources", k.Name),
	}
	cmd.AddCommand(newListCmd(k))
	cmd.AddCommand(newPullCmd(k))
	cmd.AddCommand(newPushCmd(k))
	cmd.AddCommand(newValidateCmd(k))
	return cmd
}

func newListCmd(k *kinds.Kind) *cobra.Command {
	var rf remoteFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s resources on the remote", k.Name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			entries, err := s.engine.List(cmd.Context(), k, engine.Options{Params: rf.params(s)})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tUPDATED AT")
			for _, e := range entries {
				updated, _ := e["updated_at"].(string)
				fmt.Fprintf(tw, "%s\t%s\n", k.EntryKey(e), updated)
			}
			return tw.Flush()
		},
	}
	rf.register(cmd, true)
	return cmd
}

func newPullCmd(k *kinds.Kind) *cobra.Command {
	var (
		rf          remoteFlags
		all         bool
		dir         string
		force       bool
		bucket      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "pull [key]",
		Short: fmt.Sprintf("Pull %s resources into local files", k.Name),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := target(args, all)
			if err != nil {
				return err
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			opts := engine.Options{Params: rf.params(s), Callback: progress(out)}

			if key != "" {
				_, err := s.engine.PullOne(cmd.Context(), k, s.resourceDir(k, key, dir), key, opts)
				return err
			}

			indexDir := s.indexDir(k, dir)
			if !force && hasEntries(indexDir) {
				ok := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Pull all %s into %s? Local entries missing on the remote will be deleted.", k.Collection, indexDir),
				}
				if err := askOne(prompt, &ok); err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Pull cancelled.")
					return nil
				}
			}

			if s.engine.Archiver, err = s.archiver(bucket); err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				s.engine.Concurrency = concurrency
			}

			result, err := s.engine.PullAll(cmd.Context(), k, indexDir, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nPulled %d %s into %s", len(result.Keys), k.Collection, indexDir)
			if len(result.Removed) > 0 {
				fmt.Fprintf(out, ", removed %d stale entries", len(result.Removed))
				if s.engine.Archiver != nil {
					fmt.Fprintf(out, " (backed up to %s)", s.engine.Archiver.Location())
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	rf.register(cmd, true)
	cmd.Flags().BoolVar(&all, "all", false, "pull every resource of this kind")
	cmd.Flags().StringVar(&dir, "dir", "", "resource directory, or index directory with --all")
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	cmd.Flags().StringVar(&bucket, "backup-bucket", "", "S3 bucket receiving a copy of pruned entries")
	cmd.Flags().IntVar(&concurrency, "concurrency", engine.DefaultConcurrency, "parallel fetches with --all")
	return cmd
}

func newPushCmd(k *kinds.Kind) *cobra.Command {
	var (
		rf            remoteFlags
		all           bool
		dir           string
		commit        bool
		commitMessage string
	)
	cmd := &cobra.Command{
		Use:   "push [key]",
		Short: fmt.Sprintf("Push local %s resources to the remote", k.Name),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if commitMessage != "" && !commit {
				return fmt.Errorf("--commit-message requires --commit")
			}
			key, err := target(args, all)
			if err != nil {
				return err
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			params := rf.params(s)
			params.Commit = commit
			params.CommitMessage = commitMessage
			opts := engine.Options{Params: params, Callback: progress(out)}

			if key != "" {
				dctx, err := marshal.NewDirContext(k.Kind, s.resourceDir(k, key, dir), key)
				if err != nil {
					return err
				}
				return reportErrors(out, "push", s.engine.Push(cmd.Context(), k, dctx, opts))
			}
			return reportErrors(out, "push", s.engine.PushAll(cmd.Context(), k, s.indexDir(k, dir), opts))
		},
	}
	rf.register(cmd, false)
	cmd.Flags().BoolVar(&all, "all", false, "push every resource in the index directory")
	cmd.Flags().StringVar(&dir, "dir", "", "resource directory, or index directory with --all")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit the pushed changes")
	cmd.Flags().StringVar(&commitMessage, "commit-message", "", "commit message, used with --commit")
	return cmd
}

func newValidateCmd(k *kinds.Kind) *cobra.Command {
	var (
		rf  remoteFlags
		all bool
		dir string
	)
	cmd := &cobra.Command{
		Use:   "validate [key]",
		Short: fmt.Sprintf("Validate local %s resources against the remote", k.Name),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := target(args, all)
			if err != nil {
				return err
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			opts := engine.Options{Params: rf.params(s), Callback: progress(out)}

			if key != "" {
				dctx, err := marshal.NewDirContext(k.Kind, s.resourceDir(k, key, dir), key)
				if err != nil {
					return err
				}
				return reportErrors(out, "validate", s.engine.Validate(cmd.Context(), k, dctx, opts))
			}
			return reportErrors(out, "validate", s.engine.ValidateAll(cmd.Context(), k, s.indexDir(k, dir), opts))
		},
	}
	rf.register(cmd, false)
	cmd.Flags().BoolVar(&all, "all", false, "validate every resource in the index directory")
	cmd.Flags().StringVar(&dir, "dir", "", "resource directory, or index directory with --all")
	return cmd
}

// hasEntries reports whether dir exists and is not empty.
func hasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
