package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "sort"
    "strings"
)

// Platform names recognized in configuration and urls.json.
const (
    DD373 = "DD373"
    P7881 = "7881"
    UU898 = "UU898"
)

type Server struct {
    Port               string `json:"port"`
    RequestTimeoutSec  int    `json:"request_timeout_sec"`
}

type Store struct {
    Driver string `json:"driver"`
    DSN    string `json:"dsn"`
}

type Fetch struct {
    TimeoutSec int    `json:"timeout_sec"`
    UserAgent  string `json:"user_agent"`
    // URLsFile is an optional {"DD373": [...], "7881": [...]} file whose
    // lists replace the configured platform URLs.
    URLsFile string `json:"urls_file"`
}

type Browser struct {
    ExecPath       string `json:"exec_path"`
    MaxInstances   int    `json:"max_instances"`
    WaitTimeoutSec int    `json:"wait_timeout_sec"`
    NoSandbox      bool   `json:"no_sandbox"`
}

type Render struct {
    Title    string `json:"title"`
    DumpPath string `json:"dump_path"`
}

type Platform struct {
    Enabled               bool     `json:"enabled"`
    URLs                  []string `json:"urls"`
    MaxRequestsPerMinute  int      `json:"max_requests_per_minute"`
    MinRequestIntervalSec int      `json:"min_request_interval_sec"`
    Burst                 int      `json:"burst"`
    CacheTTLSeconds       int      `json:"cache_ttl_sec"`
}

type Config struct {
    Server    Server              `json:"server"`
    Store     Store               `json:"store"`
    Fetch     Fetch               `json:"fetch"`
    Browser   Browser             `json:"browser"`
    Render    Render              `json:"render"`
    TimeZone  string              `json:"timezone"`
    Unit      string              `json:"unit"`
    Platforms map[string]Platform `json:"platforms"`
}

func Default() Config {
    return Config{
        Server:  Server{Port: "8080", RequestTimeoutSec: 120},
        Store:   Store{Driver: "sqlite", DSN: "data/price_checker/silver_price.db"},
        Fetch:   Fetch{TimeoutSec: 10},
        Browser: Browser{MaxInstances: 2, WaitTimeoutSec: 10},
        Render:  Render{Title: "今日银价"},
        TimeZone: "Asia/Shanghai",
        Unit:     "元/万银",
        Platforms: map[string]Platform{
            DD373: {Enabled: true, MinRequestIntervalSec: 1, Burst: 1},
            P7881: {Enabled: true, Burst: 1},
            UU898: {Enabled: true, MinRequestIntervalSec: 1, Burst: 1},
        },
    }
}

// Names returns the platform names in display order.
func (c Config) Names() []string {
    out := make([]string, 0, len(c.Platforms))
    for name := range c.Platforms { out = append(out, name) }
    sort.Strings(out)
    return out
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. A urls.json file and environment variables are
// applied on top, in that order.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := json.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    if v := os.Getenv("URLS_FILE"); v != "" { cfg.Fetch.URLsFile = v }
    if cfg.Fetch.URLsFile != "" {
        if err := applyURLsFile(&cfg, cfg.Fetch.URLsFile); err != nil { return cfg, err }
    }
    applyEnv(&cfg)
    return cfg, nil
}

// applyURLsFile merges a platform → URL list file into cfg. Platforms found
// in the file are enabled unless configured otherwise.
func applyURLsFile(cfg *Config, path string) error {
    b, err := os.ReadFile(path)
    if err != nil { return fmt.Errorf("read urls file: %w", err) }
    var lists map[string][]string
    if err := json.Unmarshal(b, &lists); err != nil { return fmt.Errorf("parse urls file: %w", err) }
    if cfg.Platforms == nil { cfg.Platforms = map[string]Platform{} }
    for name, urls := range lists {
        p, ok := cfg.Platforms[name]
        if !ok { p = Platform{Enabled: true, Burst: 1} }
        p.URLs = urls
        cfg.Platforms[name] = p
    }
    return nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("STORE_DRIVER"); v != "" { cfg.Store.Driver = v }
    if v := os.Getenv("STORE_DSN"); v != "" { cfg.Store.DSN = v }
    if v := os.Getenv("FETCH_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Fetch.TimeoutSec = x }
    }
    if v := os.Getenv("USER_AGENT"); v != "" { cfg.Fetch.UserAgent = v }
    if v := os.Getenv("CHROMIUM_PATH"); v != "" { cfg.Browser.ExecPath = v }
    if v := os.Getenv("BROWSER_MAX_INSTANCES"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Browser.MaxInstances = x }
    }
    if v := os.Getenv("BROWSER_WAIT_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Browser.WaitTimeoutSec = x }
    }
    if v := os.Getenv("BROWSER_NO_SANDBOX"); v != "" {
        switch strings.ToLower(v) {
        case "1","true","yes","y": cfg.Browser.NoSandbox = true
        case "0","false","no","n": cfg.Browser.NoSandbox = false
        }
    }
    if v := os.Getenv("TIMEZONE"); v != "" { cfg.TimeZone = v }
    if v := os.Getenv("PRICE_UNIT"); v != "" { cfg.Unit = v }
    if v := os.Getenv("RENDER_DUMP_PATH"); v != "" { cfg.Render.DumpPath = v }

    for name, p := range cfg.Platforms {
        pre := EnvPrefix(name)
        if v := os.Getenv(pre + "_ENABLED"); v != "" {
            switch strings.ToLower(v) {
            case "1","true","yes","y": p.Enabled = true
            case "0","false","no","n": p.Enabled = false
            }
        }
        if v := os.Getenv(pre + "_URLS"); v != "" { p.URLs = splitCSV(v) }
        if v := os.Getenv(pre + "_MIN_INTERVAL_SEC"); v != "" {
            var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { p.MinRequestIntervalSec = x }
        }
        if v := os.Getenv(pre + "_MAX_RPM"); v != "" {
            var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { p.MaxRequestsPerMinute = x }
        }
        if v := os.Getenv(pre + "_BURST"); v != "" {
            var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { p.Burst = x }
        }
        if v := os.Getenv(pre + "_CACHE_TTL_SEC"); v != "" {
            var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { p.CacheTTLSeconds = x }
        }
        cfg.Platforms[name] = p
    }
}

// EnvPrefix returns the environment variable prefix for a platform. Names
// starting with a digit get a leading P so they stay valid shell names.
func EnvPrefix(name string) string {
    s := strings.ToUpper(name)
    if s != "" && s[0] >= '0' && s[0] <= '9' { s = "P" + s }
    return s
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
