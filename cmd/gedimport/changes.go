package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gedimport/internal/core"
	"github.com/JonMunkholm/gedimport/internal/database"
)

func newAcceptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accept TREE [XREF]",
		Short: "Apply pending changes of one record, or of the whole tree",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd.Context())

			var (
				res *core.ChangeResult
				err error
			)
			if len(args) == 2 {
				res, err = a.service.AcceptAllChanges(ctx, args[0], args[1])
			} else {
				res, err = a.service.AcceptTree(ctx, args[0])
			}
			if res != nil {
				fmt.Fprintf(a.out, "accepted %d changes in %d records of %s\n", res.Accepted, len(res.Xrefs), res.Tree)
			}
			return err
		},
	}
}

func newRejectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reject TREE XREF",
		Short: "Discard the pending changes of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.service.RejectAllChanges(a.context(cmd.Context()), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "rejected %d changes to %s\n", res.Rejected, args[1])
			return nil
		},
	}
}

func newEmptyCmd(a *app) *cobra.Command {
	var keepMedia bool

	cmd := &cobra.Command{
		Use:   "empty TREE",
		Short: "Delete every record of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd.Context())
			if !cmd.Flags().Changed("keep-media") {
				settings, err := a.service.TreeSettings(ctx, args[0])
				if err != nil {
					return err
				}
				keepMedia = settings.KeepMedia
			}
			if err := a.service.EmptyTree(ctx, args[0], keepMedia, a.user); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "emptied %s (media kept: %t)\n", args[0], keepMedia)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepMedia, "keep-media", false, "Keep media objects and their links (default: the tree's keep_media setting)")
	return cmd
}

func newSettingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "settings TREE [NAME VALUE]",
		Short: "Show a tree's settings, or change one",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return fmt.Errorf("accepts TREE or TREE NAME VALUE, received %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd.Context())
			if len(args) == 3 {
				if err := a.service.SetTreeSetting(ctx, args[0], args[1], args[2]); err != nil {
					return err
				}
			}
			s, err := a.service.TreeSettings(ctx, args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\t%t\n", core.SettingGenerateUIDs, s.GenerateUIDs)
			fmt.Fprintf(tw, "%s\t%t\n", core.SettingUseRIN, s.UseRIN)
			fmt.Fprintf(tw, "%s\t%t\n", core.SettingKeepMedia, s.KeepMedia)
			fmt.Fprintf(tw, "%s\t%t\n", core.SettingWordWrappedNotes, s.WordWrappedNotes)
			fmt.Fprintf(tw, "%s\t%s\n", core.SettingMediaPath, s.MediaPath)
			fmt.Fprintf(tw, "%s\t%s\n", core.SettingMediaIDPrefix, s.MediaIDPrefix)
			return tw.Flush()
		},
	}
}

func newTreesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trees",
		Short: "List trees with their record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			trees, err := a.service.ListTrees(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TREE\tINDIVIDUALS\tFAMILIES\tSOURCES\tMEDIA\tOTHER\tPLACES\tPENDING")
			for _, t := range trees {
				s, err := a.service.TreeStats(ctx, t.Name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
					s.Name, s.Individuals, s.Families, s.Sources, s.Media, s.Other, s.Places, s.PendingChanges)
			}
			return tw.Flush()
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.pool == nil {
				return fmt.Errorf("migrate needs a database connection")
			}
			if err := database.Migrate(cmd.Context(), a.pool); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "schema up to date")
			return nil
		},
	}
}
