package nugcmd

import (
	"bufio"
	"context"
	"fmt"
	"strconv"

	"github.com/brendoncarroll/stdctx/logctx"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/nugrepo/nug/sources"
)

func newSearchCmd(ctx context.Context) *cobra.Command {
	c := &cobra.Command{
		Use:   "search",
		Short: "search a source for a package",
		Args:  cobra.MinimumNArgs(1),
	}
	shouldFetch := c.Flags().Bool("fetch", false, "--fetch")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := loadRepo(ctx, getRepoPath()); err != nil {
			return err
		}
		srcURL, err := sources.ParseURL(args[0])
		if err != nil {
			return err
		}
		if *shouldFetch {
			logctx.Infof(ctx, "fetching...")
			if err := repo.Fetch(ctx, *srcURL); err != nil {
				return err
			}
		}
		// where clause
		jqpred, err := gojq.Parse("true")
		if err != nil {
			return err
		}
		if len(args) > 1 {
			jqpred, err = gojq.Parse(args[1])
			if err != nil {
				return err
			}
		}
		jqcode, err := gojq.Compile(jqpred)
		if err != nil {
			return err
		}

		pkgs, err := repo.ListPackagesBySource(ctx, srcURL, jqcode)
		if err != nil {
			return err
		}
		bufw := bufio.NewWriter(cmd.OutOrStdout())
		fmtStr := "%-3s %-25s %s\n"
		fmt.Fprintf(bufw, fmtStr, "#", "ID", "LABELS")
		for i, p := range pkgs {
			idStr := strconv.Itoa(int(p.ID))
			if p.Upstream != nil {
				idStr = p.Upstream.ID
			}
			_, err := fmt.Fprintf(bufw, fmtStr, strconv.Itoa(i), idStr, p.Labels)
			if err != nil {
				return err
			}
		}
		return bufw.Flush()
	}
	return c
}

func newFetchCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "download package metadata from a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := sources.ParseURL(args[0])
			if err != nil {
				return err
			}
			if err := loadRepo(ctx, getRepoPath()); err != nil {
				return err
			}
			return repo.Fetch(ctx, *u)
		},
	}
}

func newFetchAllCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-all",
		Short: "download package metadata from every known source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadRepo(ctx, getRepoPath()); err != nil {
				return err
			}
			return repo.FetchAll(ctx)
		},
	}
}

func newGetCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "get <source> <id>",
		Short: "get pulls a package from a source by id",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			p := getRepoPath()
			return loadRepo(ctx, p)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceURL, err := sources.ParseURL(args[0])
			if err != nil {
				return err
			}
			idstr := args[1]
			pid, err := repo.Pull(ctx, *sourceURL, idstr)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pid)
			return err
		},
	}
}
