package main

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "net/http"
    "strconv"
    "time"

    "pricechecker/internal/aggregate"
    "pricechecker/internal/command"
    "pricechecker/internal/trend"
)

const maxHistory = 90

type priceSource interface {
    Prices(ctx context.Context) (aggregate.Prices, error)
}

type historySource interface {
    Snapshot(ctx context.Context, platform string, count int) (trend.TrendSnapshot, error)
}

type commandHandler interface {
    Handle(ctx context.Context) (command.Reply, error)
}

type handlers struct {
    prices  priceSource
    history historySource
    command commandHandler
    timeout time.Duration
}

func (h *handlers) routes() *http.ServeMux {
    mux := http.NewServeMux()
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.HandleFunc("/api/prices", h.getPrices)
    mux.HandleFunc("/api/history", h.getHistory)
    mux.HandleFunc("/api/command", h.postCommand)
    return mux
}

func (h *handlers) getPrices(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
    defer cancel()

    prices, err := h.prices.Prices(ctx)
    if err != nil {
        log.Printf("prices: %v", err)
        status := http.StatusInternalServerError
        if errors.Is(err, trend.ErrStoreUnavailable) { status = http.StatusServiceUnavailable }
        http.Error(w, err.Error(), status)
        return
    }
    if len(prices) == 0 {
        w.WriteHeader(http.StatusNoContent)
        return
    }
    writeJSON(w, http.StatusOK, prices)
}

func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    platform := r.URL.Query().Get("platform")
    if platform == "" {
        http.Error(w, "missing platform query param", http.StatusBadRequest)
        return
    }
    count := aggregate.TrendDays
    if v := r.URL.Query().Get("count"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n <= 0 || n > maxHistory {
            http.Error(w, "count must be between 1 and 90", http.StatusBadRequest)
            return
        }
        count = n
    }

    snap, err := h.history.Snapshot(r.Context(), platform, count)
    if err != nil {
        log.Printf("history %s: %v", platform, err)
        http.Error(w, err.Error(), http.StatusServiceUnavailable)
        return
    }
    if snap.Points == nil { snap.Points = []trend.TrendPoint{} }
    writeJSON(w, http.StatusOK, snap)
}

type commandBody struct {
    Text string `json:"text"`
}

type commandResponse struct {
    Text        string `json:"text,omitempty"`
    ImageBase64 string `json:"image_base64,omitempty"`
}

func (h *handlers) postCommand(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    var b commandBody
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&b); err != nil {
        http.Error(w, "invalid JSON body", http.StatusBadRequest)
        return
    }
    if !command.Match(b.Text) {
        http.Error(w, "unknown command", http.StatusNotFound)
        return
    }

    ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
    defer cancel()
    // failures are already rendered into the reply text
    reply, _ := h.command.Handle(ctx)
    writeJSON(w, http.StatusOK, commandResponse{Text: reply.Text, ImageBase64: reply.ImageBase64()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.WriteHeader(status)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    if err := enc.Encode(v); err != nil { log.Printf("write response: %v", err) }
}
