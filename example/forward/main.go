package main

import (
	"context"
	"io"
	"net/http"
	"os"

	lg "github.com/go-puzzles/puzzles/plog"

	"github.com/superwhys/tunnelify"
)

// Assumes remote-server is reachable with plain `ssh remote-server` and
// serves HTTP on port 3000.
func main() {
	ctx := context.Background()

	tunnel, err := tunnelify.New(&tunnelify.Config{
		Host: "remote-server",
		Port: 3000,
	})
	lg.PanicError(err)

	lg.PanicError(tunnel.Open(ctx))
	defer func() {
		if err := tunnel.Close(ctx); err != nil {
			lg.Errorc(ctx, "close tunnel: %v", err)
		}
	}()

	resp, err := http.Get("http://localhost:3000")
	if err != nil {
		lg.Errorc(ctx, "request through tunnel: %v", err)
		return
	}
	defer resp.Body.Close()

	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		lg.Errorc(ctx, "read response: %v", err)
	}
}
