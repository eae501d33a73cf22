package tunnelify

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	lg "github.com/go-puzzles/puzzles/plog"
	uuid "github.com/satori/go.uuid"
)

// Tunnel is one ssh forwarding session. The forwarding itself is done by a
// background ssh process bound to the tunnel's control socket; that process
// outlives the Tunnel value until Close is called.
type Tunnel struct {
	conf    *Config
	specs   []string
	id      uuid.UUID
	control string

	mu    sync.Mutex
	state State

	wg sync.WaitGroup
}

// Option customizes New.
type Option func(*Tunnel)

// WithOpenCallback opens the tunnel in the background right after New
// returns. cb is called exactly once, with the tunnel on success or with the
// error. If the caller opened the tunnel first, cb sees the outcome of Open on
// an already open tunnel (success) or ErrStarting.
func WithOpenCallback(ctx context.Context, cb func(*Tunnel, error)) Option {
	return func(t *Tunnel) {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if err := t.Open(ctx); err != nil {
				cb(nil, err)
				return
			}
			cb(t, nil)
		}()
	}
}

// New validates conf and prepares a closed tunnel. It does not run ssh
// unless WithOpenCallback is given.
func New(conf *Config, opts ...Option) (*Tunnel, error) {
	if conf == nil {
		return nil, ErrMissingHost
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "tunnel config")
	}
	c := conf.clone()
	c.SetDefaults()

	id := uuid.NewV4()
	t := &Tunnel{
		conf:    c,
		specs:   c.ForwardSpecs(),
		id:      id,
		control: filepath.Join(c.ControlDir, "tunnelify-"+id.String()+".sock"),
		state:   StateClosed,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Dial creates a tunnel and opens it.
func Dial(ctx context.Context, conf *Config) (*Tunnel, error) {
	t, err := New(conf)
	if err != nil {
		return nil, err
	}
	if err := t.Open(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Run opens a tunnel for the duration of fn and always closes it afterwards.
// A close error is only returned when fn succeeded.
func Run(ctx context.Context, conf *Config, fn func(*Tunnel) error) (err error) {
	t, err := Dial(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		// the caller's ctx may already be done; teardown must still run
		cerr := t.Close(context.WithoutCancel(ctx))
		if err == nil {
			err = cerr
		}
	}()
	return fn(t)
}

func (t *Tunnel) Host() string {
	return t.conf.Host
}

// ControlSocket is the path of the ssh control master socket.
func (t *Tunnel) ControlSocket() string {
	return t.control
}

// ForwardSpecs returns the -L arguments of this tunnel.
func (t *Tunnel) ForwardSpecs() []string {
	return append([]string(nil), t.specs...)
}

func (t *Tunnel) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tunnel) IsOpen() bool {
	return t.State() == StateOpen
}

// Wait blocks until background operations started by WithOpenCallback,
// OpenAsync or CloseAsync have delivered their result.
func (t *Tunnel) Wait() {
	t.wg.Wait()
}

// logKey tags every log line of a session with its id.
const logKey = "tunnel"

func (t *Tunnel) logCtx(ctx context.Context) context.Context {
	return lg.With(ctx, logKey, t.id.String())
}

// Open starts the background ssh process and returns once every forward is
// established. It is a no-op on an open tunnel, fails with ErrStarting while
// another Open is in flight and with ErrClosing while a Close is.
func (t *Tunnel) Open(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case StateOpen:
		t.mu.Unlock()
		return nil
	case StateStarting:
		t.mu.Unlock()
		return ErrStarting
	case StateClosing:
		t.mu.Unlock()
		return ErrClosing
	}
	t.state = StateStarting
	t.mu.Unlock()

	ctx = t.logCtx(ctx)
	code, err := runSsh(ctx, t.conf, openArgs(t.conf, t.control, t.specs))

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = StateClosed
		lg.Errorc(ctx, "open tunnel to %s: %v", t.conf.Host, err)
		return errors.Wrapf(err, "open tunnel to %s", t.conf.Host)
	}
	if code != 0 {
		t.state = StateClosed
		lg.Errorc(ctx, "ssh to %s exited with status %d", t.conf.Host, code)
		return &ExitError{Host: t.conf.Host, Code: code}
	}
	t.state = StateOpen
	lg.Infoc(ctx, "tunnel to %s open: %v", t.conf.Host, t.specs)
	return nil
}

// Close asks the background ssh to exit through the control socket. The
// exit status of the control command is not checked; only a failure to run
// ssh is reported. Close fails with ErrStarting while an Open is in flight,
// since the control socket may not exist yet, and with ErrClosing while
// another Close is.
func (t *Tunnel) Close(ctx context.Context) error {
	t.mu.Lock()
	prev := t.state
	switch prev {
	case StateStarting:
		t.mu.Unlock()
		return ErrStarting
	case StateClosing:
		t.mu.Unlock()
		return ErrClosing
	}
	t.state = StateClosing
	t.mu.Unlock()

	ctx = t.logCtx(ctx)
	code, err := runSsh(ctx, t.conf, closeArgs(t.conf, t.control))

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = prev
		lg.Errorc(ctx, "close tunnel to %s: %v", t.conf.Host, err)
		return errors.Wrapf(err, "close tunnel to %s", t.conf.Host)
	}
	if code != 0 {
		lg.Warnc(ctx, "ssh -O exit for %s exited with status %d", t.conf.Host, code)
	}
	t.state = StateClosed
	lg.Infoc(ctx, "tunnel to %s closed", t.conf.Host)
	return nil
}

// OpenAsync runs Open in the background. The returned channel yields exactly
// one value and is then closed.
func (t *Tunnel) OpenAsync(ctx context.Context) <-chan error {
	return t.async(func() error { return t.Open(ctx) })
}

// CloseAsync runs Close in the background, see OpenAsync.
func (t *Tunnel) CloseAsync(ctx context.Context) <-chan error {
	return t.async(func() error { return t.Close(ctx) })
}

func (t *Tunnel) async(fn func() error) <-chan error {
	done := make(chan error, 1)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(done)
		done <- fn()
	}()
	return done
}
