package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"media-catalog/internal/catalog"
)

func newGroupsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List, create, rename, merge and edit face groups",
	}
	cmd.AddCommand(
		newGroupsListCmd(opts),
		newGroupsCreateCmd(opts),
		newGroupsRenameCmd(opts),
		newGroupsMergeCmd(opts),
		newGroupsAssignCmd(opts),
		newGroupsFacesCmd(opts),
	)
	return cmd
}

// withStore runs fn against the configured catalog without building a
// detector or scanner.
func withStore(cmd *cobra.Command, opts *options, fn func(store backend) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newGroupsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List face groups, largest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(store backend) error {
				groups, err := store.ListGroups(cmd.Context())
				if err != nil {
					return err
				}
				if opts.format == formatJSON {
					if groups == nil {
						groups = []catalog.FaceGroup{}
					}
					return printJSON(cmd.OutOrStdout(), groups)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tFACES\tUPDATED")
				for _, g := range groups {
					name := "-"
					if g.Name != nil {
						name = *g.Name
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", g.ID, name, g.FaceCount, g.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
}

func newGroupsRenameCmd(opts *options) *cobra.Command {
	var clearName bool

	cmd := &cobra.Command{
		Use:   "rename <group-id> [name]",
		Short: "Name a face group, or clear its name with --clear",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name *string
			switch {
			case clearName && len(args) == 2:
				return fmt.Errorf("--clear takes no name")
			case !clearName && len(args) == 1:
				return fmt.Errorf("a name is required unless --clear is set")
			case !clearName:
				name = &args[1]
			}

			return withStore(cmd, opts, func(store backend) error {
				if err := store.RenameGroup(cmd.Context(), args[0], name); err != nil {
					return err
				}
				if name == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "cleared name of %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %q\n", args[0], *name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearName, "clear", false, "Remove the group's name")
	return cmd
}

func newGroupsMergeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <from-group-id> <into-group-id>",
		Short: "Move every face of one group into another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == args[1] {
				return fmt.Errorf("cannot merge a group into itself")
			}
			return withStore(cmd, opts, func(store backend) error {
				if err := store.MergeGroup(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "merged %s into %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newGroupsCreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create an empty face group",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name *string
			if len(args) == 1 {
				name = &args[0]
			}
			return withStore(cmd, opts, func(store backend) error {
				id, err := store.CreateGroup(cmd.Context(), name)
				if err != nil {
					return err
				}
				if opts.format == formatJSON {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"id": id, "name": name})
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newGroupsAssignCmd(opts *options) *cobra.Command {
	var score float64

	cmd := &cobra.Command{
		Use:   "assign <face-id> <group-id>",
		Short: "Move a face into a group, leaving its other groups",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if score < -1 || score > 1 {
				return fmt.Errorf("--score must be within [-1, 1]")
			}
			return withStore(cmd, opts, func(store backend) error {
				if err := store.ReassignGroup(cmd.Context(), args[0], args[1], score); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "assigned %s to %s\n", args[0], args[1])
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&score, "score", 1.0, "Similarity score recorded for the membership")
	return cmd
}

func newGroupsFacesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "faces <group-id>",
		Short: "List the faces of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(store backend) error {
				members, err := groupMembers(cmd, store, args[0])
				if err != nil {
					return err
				}
				if opts.format == formatJSON {
					return printJSON(cmd.OutOrStdout(), members)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FACE\tSCORE")
				for _, m := range members {
					fmt.Fprintf(tw, "%s\t%s\n", m.FaceID, strconv.FormatFloat(m.SimilarityScore, 'f', 3, 64))
				}
				return tw.Flush()
			})
		},
	}
}

// groupMembers returns the memberships of groupID, or ErrNotFound when the
// group does not exist.
func groupMembers(cmd *cobra.Command, store backend, groupID string) ([]catalog.Membership, error) {
	groups, err := store.ListGroups(cmd.Context())
	if err != nil {
		return nil, err
	}
	found := false
	for _, g := range groups {
		if g.ID == groupID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("group %s: %w", groupID, catalog.ErrNotFound)
	}

	all, err := store.ListMemberships(cmd.Context())
	if err != nil {
		return nil, err
	}
	members := []catalog.Membership{}
	for _, m := range all {
		if m.GroupID == groupID {
			members = append(members, m)
		}
	}
	return members, nil
}
