package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"os"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"pricechecker/internal/aggregate"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"cell": func(v string) string {
		if v == NotAvailable { return "na" }
		return "value"
	},
}).ParseFS(templateFS, "templates/index.html"))

// Runner runs fn against an exclusively owned browser. *browser.Pool
// satisfies it.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	Title    string
	Unit     string
	TimeZone string
	Width    int64
	Height   int64
	Scale    float64
	// ReadySelector must appear before the screenshot is taken.
	ReadySelector string
	WaitTimeout   time.Duration
	// DumpPath, when set, receives the display rows as JSON on each render.
	DumpPath string
}

func (c *Config) withDefaults() {
	if c.Title == "" { c.Title = "今日银价" }
	if c.Unit == "" { c.Unit = aggregate.DefaultUnit }
	if c.TimeZone == "" { c.TimeZone = "Asia/Shanghai" }
	if c.Width <= 0 { c.Width = 375 }
	if c.Height <= 0 { c.Height = 812 }
	if c.Scale <= 0 { c.Scale = 3 }
	if c.ReadySelector == "" { c.ReadySelector = ".platform-card" }
	if c.WaitTimeout <= 0 { c.WaitTimeout = 10 * time.Second }
}

// Screenshotter renders prices to a PNG in a mobile-sized headless browser.
type Screenshotter struct {
	cfg    Config
	runner Runner
	now    func() time.Time
}

func NewScreenshotter(cfg Config, r Runner) *Screenshotter {
	cfg.withDefaults()
	return &Screenshotter{cfg: cfg, runner: r, now: time.Now}
}

type pageData struct {
	Title       string
	GeneratedAt string
	Platforms   []Display
}

// HTML renders the card page for prices without a browser.
func (s *Screenshotter) HTML(prices aggregate.Prices) (string, error) {
	rows, err := Build(prices, s.cfg.Unit)
	if err != nil { return "", err }
	if s.cfg.DumpPath != "" {
		if err := dump(s.cfg.DumpPath, rows); err != nil { log.Printf("render: dump display rows: %v", err) }
	}

	now := s.now()
	if loc, err := time.LoadLocation(s.cfg.TimeZone); err == nil { now = now.In(loc) }
	var buf bytes.Buffer
	data := pageData{Title: s.cfg.Title, GeneratedAt: now.Format("2006-01-02 15:04"), Platforms: rows}
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: template: %v", ErrRenderFailure, err)
	}
	return buf.String(), nil
}

// Render returns a full-page PNG of the card page.
func (s *Screenshotter) Render(ctx context.Context, prices aggregate.Prices) ([]byte, error) {
	html, err := s.HTML(prices)
	if err != nil { return nil, err }

	var png []byte
	err = s.runner.Run(ctx, func(bctx context.Context) error {
		err := chromedp.Run(bctx,
			chromedp.EmulateViewport(s.cfg.Width, s.cfg.Height, chromedp.EmulateScale(s.cfg.Scale), chromedp.EmulateMobile, chromedp.EmulateTouch),
			emulation.SetTimezoneOverride(s.cfg.TimeZone),
			chromedp.Navigate("about:blank"),
			setContent(html),
		)
		if err != nil { return err }

		waitCtx, cancel := context.WithTimeout(bctx, s.cfg.WaitTimeout)
		defer cancel()
		if err := chromedp.Run(waitCtx, chromedp.WaitVisible(s.cfg.ReadySelector, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("waiting for %q: %w", s.cfg.ReadySelector, err)
		}
		return chromedp.Run(bctx, chromedp.FullScreenshot(&png, 100))
	})
	if err != nil { return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err) }
	return png, nil
}

func setContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil { return err }
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

func dump(path string, rows []Display) error {
	b, err := json.MarshalIndent(rows, "", "    ")
	if err != nil { return err }
	return os.WriteFile(path, b, 0o644)
}
