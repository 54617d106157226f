// Package browser runs work against short-lived headless Chrome processes.
// Each Run owns one browser process exclusively and kills it on return.
package browser

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// Config controls browser process creation.
type Config struct {
	// ExecPath is the Chrome/Chromium binary. Empty lets chromedp search PATH.
	ExecPath string
	// MaxInstances bounds concurrently running browser processes.
	MaxInstances int
	// NoSandbox disables the Chrome sandbox. Needed when running as root in
	// containers; leave false otherwise.
	NoSandbox bool
	// Flags are extra command-line switches passed to the browser.
	Flags map[string]any
}

// Pool bounds the number of live browser processes.
type Pool struct {
	opts      []chromedp.ExecAllocatorOption
	sem       *semaphore.Weighted
	sandboxed bool
}

func NewPool(cfg Config) *Pool {
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = 2
	}
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for k, v := range cfg.Flags {
		opts = append(opts, chromedp.Flag(k, v))
	}
	return &Pool{opts: opts, sem: semaphore.NewWeighted(int64(cfg.MaxInstances)), sandboxed: !cfg.NoSandbox}
}

// Sandboxed reports whether browsers start with the Chrome sandbox enabled.
func (p *Pool) Sandboxed() bool { return p.sandboxed }

// Run starts a fresh browser, calls fn with a chromedp context bound to it,
// and tears the process down when fn returns, fails or ctx expires.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for browser slot: %w", err)
	}
	defer p.sem.Release(1)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, p.opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Start the process under the allocator's lifetime so that timeouts
	// derived inside fn only abort actions, not the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	return fn(browserCtx)
}

// Available reports whether a browser binary can be found.
func Available(execPath string) bool {
	if execPath != "" {
		_, err := exec.LookPath(execPath)
		return err == nil
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
