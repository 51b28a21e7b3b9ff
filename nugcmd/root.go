package nugcmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brendoncarroll/stdctx/logctx"
	"github.com/spf13/cobra"

	"github.com/nugrepo/nug"
	"github.com/nugrepo/nug/nugmd"
)

var (
	repo *nug.Repo
)

// NewCmd creates a new root command
func NewCmd(ctx context.Context) *cobra.Command {
	c := &cobra.Command{
		Use:   "nug",
		Short: "nug is a package repository",
	}
	for _, child := range []*cobra.Command{
		// repo
		newInitCmd(ctx),
		newStatusCmd(ctx),

		newFetchCmd(ctx),
		newFetchAllCmd(ctx),
		newSearchCmd(ctx),
		newGetCmd(ctx),

		newNormalizeCmd(ctx),
		newPackageCmd(ctx),
		newServeCmd(ctx),
	} {
		c.AddCommand(child)
	}
	return c
}

func newInitCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "initializes a repository in the current directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p string
			if len(args) > 0 {
				var err error
				p, err = filepath.Abs(args[0])
				if err != nil {
					return err
				}
			} else {
				var err error
				p, err = os.Getwd()
				if err != nil {
					return err
				}
			}
			return nug.Init(ctx, p)
		},
	}
}

func newStatusCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "prints status information",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			p := getRepoPath()
			return loadRepo(ctx, p)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			bw := bufio.NewWriter(cmd.OutOrStdout())
			fmt.Fprintln(bw, repo)
			return bw.Flush()
		},
	}
}

func newNormalizeCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <version>",
		Short: "prints the normalized form of a version string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := nugmd.Normalize(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
}

func loadRepo(ctx context.Context, p string) error {
	r, err := nug.Open(p)
	if err != nil {
		return err
	}
	logctx.Infof(ctx, "loaded repo at %s", p)
	repo = r
	return nil
}

func getRepoPath() string {
	p, ok := os.LookupEnv("NUG_PATH")
	if ok {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./" // current directory
	}
	return filepath.Join(homeDir, "pkg")
}
