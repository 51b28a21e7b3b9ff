package nugcmd

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/brendoncarroll/go-state/posixfs"
	"github.com/spf13/cobra"

	"github.com/nugrepo/nug/nugmd"
)

func newPackageCmd(ctx context.Context) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "lists packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := repo.QueryPackages(ctx, nugmd.Query{})
			if err != nil {
				return err
			}
			bufw := bufio.NewWriter(cmd.OutOrStdout())
			fmtStr := "%-8v %-30v %-16v %-40v %v\n"
			fmt.Fprintf(bufw, fmtStr, "ID", "NAME", "VERSION", "UPSTREAM", "CID")
			for _, p := range ps {
				var ustr string
				if p.Upstream != nil {
					ustr = p.Upstream.String()
				}
				fmt.Fprintf(bufw, fmtStr, p.ID, p.Name, p.Version, ustr, p.Root.CID.String())
			}
			return bufw.Flush()
		},
	}

	versionsCmd := &cobra.Command{
		Use:   "versions <name>",
		Short: "lists the versions held for a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := repo.ListVersions(ctx, args[0])
			if err != nil {
				return err
			}
			bufw := bufio.NewWriter(cmd.OutOrStdout())
			for _, v := range vs {
				fmt.Fprintln(bufw, v)
			}
			return bufw.Flush()
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <path>",
		Short: "adds a .nupkg file to the repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			pid, err := repo.AddNupkg(ctx, posixfs.NewOSFS(), p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pid)
			return err
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <id> <path>",
		Short: "writes a package's .nupkg to the filesystem",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			p, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			return repo.Export(ctx, pid, posixfs.NewOSFS(), p)
		},
	}

	c := &cobra.Command{
		Use: "package",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			p := getRepoPath()
			return loadRepo(ctx, p)
		},
	}
	for _, child := range []*cobra.Command{
		listCmd,
		versionsCmd,
		addCmd,
		exportCmd,
	} {
		c.AddCommand(child)
	}
	return c
}
