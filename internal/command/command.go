package command

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	"pricechecker/internal/aggregate"
	"pricechecker/internal/render"
)

const (
	MsgNoData       = "未获取到银价信息，请稍后重试。"
	msgRenderFailed = "图片渲染失败：%v"
	msgFailed       = "生成银价图片失败：%v"
)

// Triggers are the command words that request a price image.
var Triggers = []string{"银价", "查银价", "价格"}

//go:generate mockgen -package=command_test -destination=mock_command_test.go -source=command.go PriceSource,Renderer

// PriceSource runs one aggregation cycle. *aggregate.Aggregator satisfies it.
type PriceSource interface {
	Prices(ctx context.Context) (aggregate.Prices, error)
}

// Renderer turns prices into an image. *render.Screenshotter satisfies it.
type Renderer interface {
	Render(ctx context.Context, prices aggregate.Prices) ([]byte, error)
}

// Reply is what the user receives: either a text or an image.
type Reply struct {
	Text  string `json:"text,omitempty"`
	Image []byte `json:"-"`
}

// ImageBase64 returns the image encoded for chat adapters.
func (r Reply) ImageBase64() string {
	if len(r.Image) == 0 { return "" }
	return base64.StdEncoding.EncodeToString(r.Image)
}

type Handler struct {
	prices   PriceSource
	renderer Renderer
}

func NewHandler(p PriceSource, r Renderer) *Handler {
	return &Handler{prices: p, renderer: r}
}

// Match reports whether msg invokes the price command. A leading '/' is
// accepted.
func Match(msg string) bool {
	msg = strings.TrimPrefix(strings.TrimSpace(msg), "/")
	word, _, _ := strings.Cut(msg, " ")
	for _, t := range Triggers {
		if word == t { return true }
	}
	return false
}

// Handle runs a cycle and renders it. Every outcome becomes a Reply; the
// returned error is only for logging.
func (h *Handler) Handle(ctx context.Context) (Reply, error) {
	log.Printf("command: price query started")
	prices, err := h.prices.Prices(ctx)
	if err != nil {
		log.Printf("command: %v", err)
		return Reply{Text: fmt.Sprintf(msgFailed, err)}, err
	}
	if len(prices) == 0 {
		log.Printf("command: no price data")
		return Reply{Text: MsgNoData}, nil
	}

	img, err := h.renderer.Render(ctx, prices)
	if err != nil {
		log.Printf("command: render: %v", err)
		reply := Reply{Text: fmt.Sprintf(msgRenderFailed, err)}
		if !errors.Is(err, render.ErrRenderFailure) { err = fmt.Errorf("%w: %v", render.ErrRenderFailure, err) }
		return reply, err
	}
	log.Printf("command: rendered %d bytes for %d platforms", len(img), len(prices))
	return Reply{Image: img}, nil
}
