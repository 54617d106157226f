package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "log"
    "os"
    "strings"
    "time"

    "github.com/joho/godotenv"

    "pricechecker/internal/config"
    "pricechecker/internal/trend"
)

type platformHistory struct {
    Platform string                 `json:"platform"`
    Records  []trend.PlatformRecord `json:"records"`
}

func main() {
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        log.Printf("warning: .env: %v", err)
    }
    if err := run(os.Args[1:], os.Stdout); err != nil { log.Fatalf("trend_dump: %v", err) }
}

// run returns instead of exiting so the store is always closed.
func run(args []string, stdout io.Writer) error {
    var (
        cfgPath  string
        outPath  string
        platform string
        count    int
    )
    fs := flag.NewFlagSet("trend_dump", flag.ContinueOnError)
    fs.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
    fs.StringVar(&outPath, "out", "", "output JSON file path (default: stdout)")
    fs.StringVar(&platform, "platform", "", "comma-separated platforms (default: every stored platform)")
    fs.IntVar(&count, "count", 3, "rows per platform, newest first; 0 for all")
    if err := fs.Parse(args); err != nil { return err }

    cfg, err := config.Load(cfgPath)
    if err != nil { return fmt.Errorf("config: %w", err) }

    store, err := trend.Open(trend.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
    if err != nil { return fmt.Errorf("store: %w", err) }
    defer store.Close()

    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()
    if err := store.Initialize(ctx); err != nil { return fmt.Errorf("store: %w", err) }

    var names []string
    if platform != "" {
        for _, p := range strings.Split(platform, ",") {
            if p = strings.TrimSpace(p); p != "" { names = append(names, p) }
        }
    } else if names, err = store.Platforms(ctx); err != nil {
        return fmt.Errorf("platforms: %w", err)
    }

    out := make([]platformHistory, 0, len(names))
    for _, name := range names {
        rows, err := store.Records(ctx, name, count)
        if err != nil { return fmt.Errorf("history %s: %w", name, err) }
        out = append(out, platformHistory{Platform: name, Records: rows})
    }

    w := stdout
    if outPath != "" {
        f, err := os.Create(outPath)
        if err != nil { return fmt.Errorf("create %s: %w", outPath, err) }
        defer f.Close()
        w = f
    }
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    enc.SetIndent("", "  ")
    if err := enc.Encode(out); err != nil { return fmt.Errorf("encode: %w", err) }
    if outPath != "" { log.Printf("wrote %d platforms to %s", len(out), outPath) }
    return nil
}
