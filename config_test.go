package tunnelify

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		err  error
	}{
		{"port", Config{Host: "remote", Port: 3000}, nil},
		{"ports", Config{Host: "remote", Ports: []int{80, 443}}, nil},
		{"tunnels", Config{Host: "remote", Tunnels: map[string]string{"5432": "db:5432"}}, nil},
		{"verbose", Config{Host: "remote", Port: 22, Verbose: true}, nil},
		{"verbose not quiet", Config{Host: "remote", Port: 22, Verbose: true, Quiet: boolPtr(false)}, nil},
		{"missing host", Config{Port: 3000}, ErrMissingHost},
		{"blank host", Config{Host: "  ", Port: 3000}, ErrMissingHost},
		{"verbose and quiet", Config{Host: "remote", Port: 3000, Verbose: true, Quiet: boolPtr(true)}, ErrVerboseQuiet},
		{"port and ports", Config{Host: "remote", Port: 1, Ports: []int{2}}, ErrConflictingForwards},
		{"ports and tunnels", Config{Host: "remote", Ports: []int{2}, Tunnels: map[string]string{"3": "x:3"}}, ErrConflictingForwards},
		{"nothing to forward", Config{Host: "remote"}, ErrNoForwards},
		{"empty ports", Config{Host: "remote", Ports: []int{}}, ErrNoForwards},
		{"port out of range", Config{Host: "remote", Port: 70000}, ErrInvalidForward},
		{"negative port in list", Config{Host: "remote", Ports: []int{80, -1}}, ErrInvalidForward},
		{"tunnel key not a port", Config{Host: "remote", Tunnels: map[string]string{"http": "web:80"}}, ErrInvalidForward},
		{"tunnel key with sign", Config{Host: "remote", Tunnels: map[string]string{"+80": "web:80"}}, ErrInvalidForward},
		{"tunnel key with leading zero", Config{Host: "remote", Tunnels: map[string]string{"0080": "web:80"}}, ErrInvalidForward},
		{"tunnel key with space", Config{Host: "remote", Tunnels: map[string]string{" 80": "web:80"}}, ErrInvalidForward},
		{"tunnel without endpoint", Config{Host: "remote", Tunnels: map[string]string{"8080": ""}}, ErrInvalidForward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestConfigSetDefaults(t *testing.T) {
	c := &Config{Host: "remote", Port: 1}
	c.SetDefaults()
	assert.Equal(t, "ssh", c.Binary)
	assert.NotEmpty(t, c.ControlDir)
	require.NotNil(t, c.Quiet)
	assert.True(t, *c.Quiet)
	assert.False(t, c.inheritStdio())

	v := &Config{Host: "remote", Port: 1, Verbose: true}
	v.SetDefaults()
	assert.False(t, *v.Quiet)
	assert.True(t, v.inheritStdio())

	loud := &Config{Host: "remote", Port: 1, Quiet: boolPtr(false)}
	loud.SetDefaults()
	assert.True(t, loud.inheritStdio())
}

func TestForwardSpecsPort(t *testing.T) {
	for _, p := range []int{1, 22, 3000, 65535} {
		c := &Config{Host: "remote", Port: p}
		require.NoError(t, c.Validate())
		assert.Equal(t, []string{localSpec(p)}, c.ForwardSpecs())
	}
	assert.Equal(t, []string{"3000:localhost:3000"}, (&Config{Port: 3000}).ForwardSpecs())
}

func TestForwardSpecsPorts(t *testing.T) {
	c := &Config{Host: "remote", Ports: []int{8080, 22, 443}}
	assert.Equal(t, []string{
		"8080:localhost:8080",
		"22:localhost:22",
		"443:localhost:443",
	}, c.ForwardSpecs())
}

func TestForwardSpecsTunnels(t *testing.T) {
	tunnels := map[string]string{
		"8080":  "web.internal:80",
		"15432": "db.internal:5432",
		"636":   "ldap:636",
	}
	specs := (&Config{Host: "remote", Tunnels: tunnels}).ForwardSpecs()
	require.Len(t, specs, len(tunnels))

	// ordered by local port
	assert.Equal(t, []string{
		"636:ldap:636",
		"8080:web.internal:80",
		"15432:db.internal:5432",
	}, specs)

	var want []string
	for k, v := range tunnels {
		want = append(want, k+":"+v)
	}
	sort.Strings(want)
	got := append([]string(nil), specs...)
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func TestConfigClone(t *testing.T) {
	c := &Config{Host: "remote", Ports: []int{1, 2}, Options: []string{"Port=2222"}, Quiet: boolPtr(true)}
	cp := c.clone()
	cp.Ports[0] = 9
	cp.Options[0] = "User=x"
	*cp.Quiet = false

	assert.Equal(t, []int{1, 2}, c.Ports)
	assert.Equal(t, []string{"Port=2222"}, c.Options)
	assert.True(t, *c.Quiet)
}
