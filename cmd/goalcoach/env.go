package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goalcoach/goalcoach/internal/app"
	"github.com/goalcoach/goalcoach/internal/config"
	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/logging"
	"github.com/goalcoach/goalcoach/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// env carries what every command shares: settings, output and the lazily
// opened App.
type env struct {
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	// interactive enables prompts. It requires a terminal on both ends.
	interactive bool

	app *app.App
}

func newEnv() *env {
	return &env{
		v:           config.New(),
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		now:         time.Now,
		interactive: term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (e *env) ui() *ui.UI {
	return ui.New(e.out)
}

// open loads the settings and opens the App on first use.
func (e *env) open(cmd *cobra.Command) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}

	cfg, err := config.Load(e.v, cmd.Flags())
	if err != nil {
		return nil, err
	}

	var console io.Writer
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		console = e.errOut
	}
	lg, err := logging.NewWithWriter(cfg.Log, console)
	if err != nil {
		return nil, err
	}

	a, err := app.Open(cmd.Context(), cfg, lg)
	if err != nil {
		_ = lg.Close()
		return nil, err
	}
	e.app = a
	return a, nil
}

// openSignedIn is open for commands that act on the signed-in user's
// records.
func (e *env) openSignedIn(cmd *cobra.Command) (*app.App, error) {
	a, err := e.open(cmd)
	if err != nil {
		return nil, err
	}
	if a.Identity.Current() == "" {
		return nil, errNotSignedIn
	}
	return a, nil
}

// close waits for pending remote writes, bounded by the push timeout, and
// releases the App.
func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	a := e.app
	e.app = nil

	timeout := a.Config.Sync.PushTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := a.Close(ctx)
	if lerr := a.Log.Close(); err == nil {
		err = lerr
	}
	return err
}

var errNotSignedIn = fmt.Errorf("not signed in, run 'goalcoach signin <user-id>': %w", identity.ErrNoSession)
