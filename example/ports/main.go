package main

import (
	"context"
	"net"
	"time"

	lg "github.com/go-puzzles/puzzles/plog"

	"github.com/superwhys/tunnelify"
)

func main() {
	ctx := context.Background()

	done := make(chan struct{})
	db, err := tunnelify.New(&tunnelify.Config{
		Host: "bastion",
		Tunnels: map[string]string{
			"15432": "db.internal:5432",
			"16379": "redis.internal:6379",
		},
	}, tunnelify.WithOpenCallback(ctx, func(t *tunnelify.Tunnel, err error) {
		defer close(done)
		lg.PanicError(err)
		lg.Infoc(ctx, "forwarding %v via %s", t.ForwardSpecs(), t.ControlSocket())
	}))
	lg.PanicError(err)
	<-done
	defer db.Close(ctx)

	// Run closes the session again once the probe returns.
	err = tunnelify.Run(ctx, &tunnelify.Config{Host: "bastion", Ports: []int{8080, 8443}}, func(t *tunnelify.Tunnel) error {
		for _, addr := range []string{"localhost:8080", "localhost:8443"} {
			conn, err := net.DialTimeout("tcp", addr, time.Second)
			if err != nil {
				return err
			}
			conn.Close()
		}
		return nil
	})
	lg.PanicError(err)
}
