package main

import (
	"context"
	"log"

	"github.com/brendoncarroll/stdctx/logctx"
	"go.uber.org/zap"

	"github.com/nugrepo/nug/nugcmd"
)

func main() {
	ctx := context.Background()
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	ctx = logctx.NewContext(ctx, l)
	cmd := nugcmd.NewCmd(ctx)
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
