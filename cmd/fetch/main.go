package main

import (
    "context"
    "encoding/json"
    "errors"
    "flag"
    "fmt"
    "io"
    "log"
    "os"
    "strings"
    "time"

    "github.com/joho/godotenv"

    "pricechecker/internal/app"
    "pricechecker/internal/config"
)

var errNoData = errors.New("no price data")

func main() {
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        log.Printf("warning: .env: %v", err)
    }
    err := run(os.Args[1:], os.Stdout)
    switch {
    case errors.Is(err, errNoData):
        fmt.Fprintln(os.Stderr, err)
        os.Exit(2)
    case err != nil:
        log.Fatalf("fetch: %v", err)
    }
}

// run returns instead of exiting so deferred cleanup always runs.
func run(args []string, stdout io.Writer) error {
    var configPath string
    var platformsCSV string
    var timeout int
    var imagePath string

    fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
    fs.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
    fs.StringVar(&platformsCSV, "platforms", "", "comma-separated platforms to run (default: all enabled)")
    fs.IntVar(&timeout, "timeout", 0, "cycle timeout seconds (default: server request timeout)")
    fs.StringVar(&imagePath, "image", "", "also render the result to this PNG path")
    if err := fs.Parse(args); err != nil { return err }

    cfg, err := config.Load(configPath)
    if err != nil { return fmt.Errorf("config: %w", err) }
    if platformsCSV != "" { onlyPlatforms(&cfg, splitCSV(platformsCSV)) }
    if timeout <= 0 { timeout = cfg.Server.RequestTimeoutSec }

    ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
    defer cancel()

    a, err := app.New(ctx, cfg)
    if err != nil { return fmt.Errorf("init: %w", err) }
    defer a.Close()

    prices, err := a.Aggregator.Prices(ctx)
    if err != nil { return fmt.Errorf("cycle: %w", err) }
    if len(prices) == 0 { return errNoData }

    enc := json.NewEncoder(stdout)
    enc.SetEscapeHTML(false)
    enc.SetIndent("", "  ")
    if err := enc.Encode(prices); err != nil { return fmt.Errorf("encode: %w", err) }

    if imagePath != "" {
        png, err := a.Renderer.Render(ctx, prices)
        if err != nil {
            if errors.Is(err, context.DeadlineExceeded) { log.Printf("render timed out; raise -timeout") }
            return fmt.Errorf("render: %w", err)
        }
        if err := os.WriteFile(imagePath, png, 0o644); err != nil { return fmt.Errorf("write image: %w", err) }
        log.Printf("wrote %s (%d bytes)", imagePath, len(png))
    }
    return nil
}

// onlyPlatforms disables every platform not named in keep.
func onlyPlatforms(cfg *config.Config, keep []string) {
    want := make(map[string]bool, len(keep))
    for _, k := range keep { want[strings.ToUpper(k)] = true }
    for name, p := range cfg.Platforms {
        if !want[strings.ToUpper(name)] { p.Enabled = false }
        cfg.Platforms[name] = p
    }
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
