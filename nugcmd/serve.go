package nugcmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nugrepo/nug/nughttp"
)

func newServeCmd(ctx context.Context) *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "serves the repository over HTTP",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			p := getRepoPath()
			return loadRepo(ctx, p)
		},
	}
	addr := c.Flags().String("addr", "127.0.0.1:8080", "--addr=<host:port>")
	auth := c.Flags().StringArray("auth", nil, "--auth=<user>:<password>")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := nughttp.DefaultConfig()
		for _, a := range *auth {
			user, pass, ok := strings.Cut(a, ":")
			if !ok {
				return errors.New("auth entries have the form user:password")
			}
			if cfg.Users == nil {
				cfg.Users = map[string]string{}
			}
			cfg.Users[user] = pass
		}
		s := nughttp.NewServer(repo, cfg)
		return s.Serve(ctx, *addr)
	}
	return c
}
