package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/superwhys/tunnelify"
)

// fileConfig is the layout of the --config file:
//
//	tunnels:
//	  - host: db-bastion
//	    tunnels:
//	      "15432": db.internal:5432
//	  - host: web
//	    ports: [8080, 8443]
type fileConfig struct {
	Tunnels []*tunnelify.Config `yaml:"tunnels"`
}

func loadConfigFile(path string) ([]*tunnelify.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var fc fileConfig
	if err := yaml.UnmarshalStrict(b, &fc); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if len(fc.Tunnels) == 0 {
		return nil, errors.Errorf("config %s: no tunnels", path)
	}
	for i, c := range fc.Tunnels {
		if c == nil {
			return nil, errors.Errorf("config %s: tunnel %d is empty", path, i)
		}
		if err := c.Validate(); err != nil {
			return nil, errors.Wrapf(err, "config %s: tunnel %d", path, i)
		}
	}
	return fc.Tunnels, nil
}
