package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sifan077/linkguard/internal/infra/logger"
)

func main() {
	logger.MustInit(logger.Config{Level: "warn", Encoding: "console", Development: true})
	root, e := newRootCmd(logger.For(logger.ComponentAdmin))
	err := root.ExecuteContext(context.Background())
	_ = e.close()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
