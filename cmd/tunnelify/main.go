package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	lg "github.com/go-puzzles/puzzles/plog"

	"github.com/superwhys/tunnelify"
)

type flags struct {
	configFile string
	host       string
	ports      []int
	tunnels    map[string]string
	verbose    bool
	quiet      bool
	binary     string
	options    []string
}

func (f *flags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configFile, "config", "c", "", "YAML file with a list of tunnels")
	fs.StringVar(&f.host, "host", "", "ssh destination")
	fs.IntSliceVarP(&f.ports, "port", "p", nil, "forward localhost:PORT to PORT on the remote side (repeatable)")
	fs.StringToStringVarP(&f.tunnels, "tunnel", "L", nil, "forward LOCAL_PORT=REMOTE_HOST:REMOTE_PORT (repeatable)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show ssh output and pass -v")
	fs.BoolVarP(&f.quiet, "quiet", "q", true, "hide ssh output")
	fs.StringVar(&f.binary, "ssh", "", "ssh client to run (default \"ssh\")")
	fs.StringArrayVarP(&f.options, "option", "o", nil, "extra ssh -o option (repeatable)")
}

// configs turns the flags into tunnel configs. --config excludes the other
// tunnel flags.
func (f *flags) configs(fs *pflag.FlagSet) ([]*tunnelify.Config, error) {
	if f.configFile != "" {
		if f.host != "" || len(f.ports) > 0 || len(f.tunnels) > 0 {
			return nil, errors.New("--config cannot be combined with --host, --port or --tunnel")
		}
		return loadConfigFile(f.configFile)
	}

	conf := &tunnelify.Config{
		Host:    f.host,
		Verbose: f.verbose,
		Binary:  f.binary,
		Options: f.options,
	}
	if fs.Changed("quiet") {
		quiet := f.quiet
		conf.Quiet = &quiet
	}
	if len(f.ports) > 0 {
		conf.Ports = f.ports
	}
	if len(f.tunnels) > 0 {
		conf.Tunnels = f.tunnels
	}
	return []*tunnelify.Config{conf}, nil
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "tunnelify",
		Short:         "Forward local ports through ssh until interrupted",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			confs, err := f.configs(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, confs)
		},
	}
	f.register(cmd.Flags())
	return cmd
}

// serve opens every tunnel, waits for ctx to be done and closes them again.
// If any tunnel fails to open, the ones that did open are closed.
func serve(ctx context.Context, cmd *cobra.Command, confs []*tunnelify.Config) error {
	tunnels := make([]*tunnelify.Tunnel, 0, len(confs))
	for _, c := range confs {
		t, err := tunnelify.New(c)
		if err != nil {
			return err
		}
		tunnels = append(tunnels, t)
	}
	defer closeAll(cmd, tunnels)

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tunnels {
		t := t
		g.Go(func() error {
			if err := t.Open(gctx); err != nil {
				cmd.Printf("%s %s: %v\n", failColor.Sprint("fail"), t.Host(), err)
				return err
			}
			cmd.Printf("%s %s %s\n", openColor.Sprint("open"), t.Host(), strings.Join(t.ForwardSpecs(), ", "))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	lg.Infoc(ctx, "%d tunnel(s) open, interrupt to close", len(tunnels))
	<-ctx.Done()
	return nil
}

func closeAll(cmd *cobra.Command, tunnels []*tunnelify.Tunnel) {
	var g errgroup.Group
	for _, t := range tunnels {
		t := t
		if !t.IsOpen() {
			continue
		}
		g.Go(func() error {
			if err := t.Close(context.Background()); err != nil {
				cmd.Printf("%s %s: %v\n", failColor.Sprint("fail"), t.Host(), err)
				return err
			}
			cmd.Printf("%s %s\n", closeColor.Sprint("closed"), t.Host())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		lg.Errorf("close tunnels: %v", err)
	}
}

var (
	openColor  = color.New(color.FgGreen, color.Bold)
	closeColor = color.New(color.Bold)
	failColor  = color.New(color.BgRed, color.FgWhite, color.Bold)
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
