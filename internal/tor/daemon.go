package tor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds how long Start waits for Tor to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// ErrNotRunning is returned when the daemon has not been started.
var ErrNotRunning = errors.New("embedded Tor daemon is not running")

// Daemon manages an embedded Tor process.
//
// Bootstrapping downloads directory information and builds circuits, so
// Start usually takes between several seconds and a few minutes.
type Daemon struct {
	// process is the running Tor process, nil when stopped.
	process *tornago.TorProcess

	// socksAddr is set after a successful Start.
	socksAddr string

	// startupTimeout is passed to tornago as the bootstrap deadline.
	startupTimeout time.Duration
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithStartupTimeout sets the bootstrap deadline.
func WithStartupTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		d.startupTimeout = timeout
	}
}

// NewDaemon creates a stopped daemon.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor on OS assigned ports and blocks until it has bootstrapped.
func (d *Daemon) Start(ctx context.Context) error {
	if d.process != nil {
		return nil
	}

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts Tor down. It is safe to call on a stopped daemon.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// IsRunning reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) IsRunning() bool {
	return d.process != nil
}

// SocksAddr returns the SOCKS5 "host:port" address, or "" when stopped.
func (d *Daemon) SocksAddr() string {
	return d.socksAddr
}

// ProxyURL returns the SOCKS5 address as a URL for browser proxies.
func (d *Daemon) ProxyURL() (string, error) {
	if !d.IsRunning() {
		return "", ErrNotRunning
	}
	return "socks5://" + d.socksAddr, nil
}
