package tunnelify

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const defaultBinary = "ssh"

// Config describes one forwarding session. Exactly one of Port, Ports or
// Tunnels must be set.
type Config struct {
	Host string `yaml:"host"`

	// Port forwards localhost:Port to Port on the remote side.
	Port int `yaml:"port,omitempty"`
	// Ports forwards each port to itself.
	Ports []int `yaml:"ports,omitempty"`
	// Tunnels maps a local port to a remote "host:port" endpoint.
	Tunnels map[string]string `yaml:"tunnels,omitempty"`

	Verbose bool `yaml:"verbose,omitempty"`
	// Quiet defaults to true unless Verbose is set.
	Quiet *bool `yaml:"quiet,omitempty"`

	// Binary is the ssh client to run, looked up in PATH. Defaults to "ssh".
	Binary string `yaml:"binary,omitempty"`
	// ControlDir holds the control socket. Defaults to os.TempDir().
	ControlDir string `yaml:"control_dir,omitempty"`
	// Options are passed to ssh as "-o option" before the forwards.
	Options []string `yaml:"options,omitempty"`
}

func (c *Config) SetDefaults() {
	if c.Binary == "" {
		c.Binary = defaultBinary
	}
	if c.ControlDir == "" {
		c.ControlDir = os.TempDir()
	}
	if c.Quiet == nil {
		quiet := !c.Verbose
		c.Quiet = &quiet
	}
}

// Validate checks the config without applying defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrMissingHost
	}
	if c.Verbose && c.Quiet != nil && *c.Quiet {
		return errors.Wrapf(ErrVerboseQuiet, "host %s", c.Host)
	}

	set := 0
	if c.Port != 0 {
		set++
	}
	if c.Ports != nil {
		set++
	}
	if c.Tunnels != nil {
		set++
	}
	switch {
	case set > 1:
		return errors.Wrapf(ErrConflictingForwards, "host %s", c.Host)
	case set == 0:
		return errors.Wrapf(ErrNoForwards, "host %s", c.Host)
	}

	if c.Port != 0 {
		return checkPort(c.Port)
	}
	if c.Ports != nil {
		if len(c.Ports) == 0 {
			return errors.Wrap(ErrNoForwards, "empty ports")
		}
		for _, p := range c.Ports {
			if err := checkPort(p); err != nil {
				return err
			}
		}
		return nil
	}

	if len(c.Tunnels) == 0 {
		return errors.Wrap(ErrNoForwards, "empty tunnels")
	}
	for local, remote := range c.Tunnels {
		p, err := strconv.Atoi(local)
		if err != nil || strconv.Itoa(p) != local {
			return errors.Wrapf(ErrInvalidForward, "local port %q", local)
		}
		if err := checkPort(p); err != nil {
			return err
		}
		if strings.TrimSpace(remote) == "" {
			return errors.Wrapf(ErrInvalidForward, "empty endpoint for local port %s", local)
		}
	}
	return nil
}

func checkPort(p int) error {
	if p < 1 || p > 65535 {
		return errors.Wrapf(ErrInvalidForward, "port %d out of range", p)
	}
	return nil
}

// ForwardSpecs returns the "local:host:remote" arguments for ssh -L.
// Tunnels are ordered by local port.
func (c *Config) ForwardSpecs() []string {
	if c.Port != 0 {
		return []string{localSpec(c.Port)}
	}
	if c.Ports != nil {
		specs := make([]string, 0, len(c.Ports))
		for _, p := range c.Ports {
			specs = append(specs, localSpec(p))
		}
		return specs
	}

	locals := make([]string, 0, len(c.Tunnels))
	for local := range c.Tunnels {
		locals = append(locals, local)
	}
	sort.Slice(locals, func(i, j int) bool {
		a, _ := strconv.Atoi(locals[i])
		b, _ := strconv.Atoi(locals[j])
		if a != b {
			return a < b
		}
		return locals[i] < locals[j]
	})

	specs := make([]string, 0, len(locals))
	for _, local := range locals {
		specs = append(specs, local+":"+c.Tunnels[local])
	}
	return specs
}

func localSpec(p int) string {
	return fmt.Sprintf("%d:localhost:%d", p, p)
}

// inheritStdio reports whether ssh should share the caller's stdio.
func (c *Config) inheritStdio() bool {
	return c.Verbose || (c.Quiet != nil && !*c.Quiet)
}

func (c *Config) clone() *Config {
	cp := *c
	if c.Ports != nil {
		cp.Ports = append([]int(nil), c.Ports...)
	}
	if c.Tunnels != nil {
		cp.Tunnels = make(map[string]string, len(c.Tunnels))
		for k, v := range c.Tunnels {
			cp.Tunnels[k] = v
		}
	}
	if c.Options != nil {
		cp.Options = append([]string(nil), c.Options...)
	}
	if c.Quiet != nil {
		q := *c.Quiet
		cp.Quiet = &q
	}
	return &cp
}
