// Package app wires configuration into the running components shared by
// the binaries.
package app

import (
    "context"
    "fmt"
    "log"
    "time"
    _ "time/tzdata"

    "pricechecker/internal/aggregate"
    "pricechecker/internal/browser"
    "pricechecker/internal/command"
    "pricechecker/internal/config"
    "pricechecker/internal/httpx"
    "pricechecker/internal/provider"
    "pricechecker/internal/provider/cache"
    "pricechecker/internal/provider/dd373"
    "pricechecker/internal/provider/p7881"
    "pricechecker/internal/provider/ratelimit"
    "pricechecker/internal/provider/scrape"
    "pricechecker/internal/provider/uu898"
    "pricechecker/internal/render"
    "pricechecker/internal/trend"
)

type App struct {
    Config     config.Config
    Store      *trend.Store
    Browser    *browser.Pool
    Aggregator *aggregate.Aggregator
    Renderer   *render.Screenshotter
    Command    *command.Handler
}

// New opens and migrates the store and builds every component from cfg.
// The caller owns Close.
func New(ctx context.Context, cfg config.Config) (*App, error) {
    loc, err := time.LoadLocation(cfg.TimeZone)
    if err != nil { return nil, fmt.Errorf("timezone %q: %w", cfg.TimeZone, err) }

    store, err := trend.Open(trend.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
    if err != nil { return nil, err }
    if err := store.Initialize(ctx); err != nil {
        _ = store.Close()
        return nil, err
    }

    pool := browser.NewPool(browser.Config{ExecPath: cfg.Browser.ExecPath, MaxInstances: cfg.Browser.MaxInstances, NoSandbox: cfg.Browser.NoSandbox})
    hc := httpx.New(seconds(cfg.Fetch.TimeoutSec, 10))
    if cfg.Fetch.UserAgent != "" { hc.UserAgent = cfg.Fetch.UserAgent }

    sources := Sources(cfg, hc, pool)
    if len(sources) == 0 { log.Println("warning: no platform enabled with URLs; every cycle will return no data") }

    agg := aggregate.New(store, sources,
        aggregate.WithLocation(loc),
        aggregate.WithUnit(cfg.Unit),
        aggregate.WithCycleTimeout(seconds(cfg.Server.RequestTimeoutSec, 120)))
    rnd := render.NewScreenshotter(render.Config{
        Title:       cfg.Render.Title,
        Unit:        cfg.Unit,
        TimeZone:    cfg.TimeZone,
        WaitTimeout: seconds(cfg.Browser.WaitTimeoutSec, 10),
        DumpPath:    cfg.Render.DumpPath,
    }, pool)

    return &App{
        Config:     cfg,
        Store:      store,
        Browser:    pool,
        Aggregator: agg,
        Renderer:   rnd,
        Command:    command.NewHandler(agg, rnd),
    }, nil
}

func (a *App) Close() error { return a.Store.Close() }

// Sources builds one rate-limited, optionally cached fetcher per enabled
// platform that has URLs. Unknown platform names are skipped.
func Sources(cfg config.Config, hc scrape.HTTPClient, r p7881.Runner) []aggregate.Source {
    fetchTimeout := seconds(cfg.Fetch.TimeoutSec, 10)
    waitTimeout := seconds(cfg.Browser.WaitTimeoutSec, 10)

    var out []aggregate.Source
    for _, name := range cfg.Names() {
        p := cfg.Platforms[name]
        if !p.Enabled { continue }
        if len(p.URLs) == 0 {
            log.Printf("warning: %s enabled but has no urls; skipping", name)
            continue
        }

        var f provider.Fetcher
        switch name {
        case config.DD373:
            f = dd373.New(dd373.WithHTTPClient(hc), dd373.WithTimeout(fetchTimeout))
        case config.UU898:
            f = uu898.New(uu898.Config{Name: name, Timeout: fetchTimeout}, hc)
        case config.P7881:
            // browser start-up counts against the per-URL budget
            f = p7881.New(p7881.Config{Name: name, WaitTimeout: waitTimeout, Timeout: fetchTimeout + waitTimeout}, r)
        default:
            log.Printf("warning: unknown platform %q; skipping", name)
            continue
        }

        f = ratelimit.Wrap(f, p.MaxRequestsPerMinute, p.Burst, time.Duration(p.MinRequestIntervalSec)*time.Second)
        if p.CacheTTLSeconds > 0 {
            f = &cache.Fetcher{F: f, TTL: time.Duration(p.CacheTTLSeconds) * time.Second}
        }
        out = append(out, aggregate.Source{Platform: name, URLs: p.URLs, Fetcher: f})
    }
    return out
}

func seconds(n, def int) time.Duration {
    if n <= 0 { n = def }
    return time.Duration(n) * time.Second
}
