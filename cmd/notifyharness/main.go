// Command notifyharness is a stand-in for the remote notify service,
// for local development and integration testing. It implements the
// /notify-json/{targetId} contract: token auth, JSON echo, optional
// failure injection, and rate limiting.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	logx "triggerd/pkg/logx"
)

type notifyBody struct {
	Text      string `json:"text"`
	Title     string `json:"title,omitempty"`
	GroupType string `json:"groupType,omitempty"`
	IconURL   string `json:"iconUrl,omitempty"`
}

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:9000", "listen address")
		token      = flag.String("token", "", "required token; empty accepts any")
		failRate   = flag.Float64("fail-rate", 0, "probability [0,1] of injecting a failure")
		failStatus = flag.Int("fail-status", http.StatusInternalServerError, "status code for injected failures")
		failBody   = flag.String("fail-body", "json", "injected failure body shape: json | text | empty")
		rps        = flag.Float64("rate", 0, "max requests per second; 0 disables throttling")
	)
	flag.Parse()

	log := logx.NewConsole("DEBUG").With(logx.String("comp", "harness"))

	var limiter *rate.Limiter
	if *rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(*rps), int(*rps)+1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /notify-json/{targetId}", func(w http.ResponseWriter, r *http.Request) {
		targetID := r.PathValue("targetId")

		if limiter != nil && !limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded"})
			return
		}
		if *token != "" && r.URL.Query().Get("token") != *token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}

		var body notifyBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
			return
		}
		if strings.TrimSpace(body.Text) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Field 'text' is required"})
			return
		}
		if *failRate > 0 && rand.Float64() < *failRate {
			switch *failBody {
			case "empty":
				w.WriteHeader(*failStatus)
			case "text":
				http.Error(w, "injected failure", *failStatus)
			default:
				writeJSON(w, *failStatus, map[string]string{"error": "Injected failure"})
			}
			return
		}

		group := strings.HasPrefix(targetID, "GRP")
		log.Info("notification received",
			logx.String("target", targetID),
			logx.Bool("group", group),
			logx.String("text", body.Text),
			logx.String("title", body.Title),
		)
		writeJSON(w, http.StatusOK, map[string]any{"delivered": true, "target": targetID, "group": group})
	})

	srv := &http.Server{Addr: *addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info("harness listening", logx.String("addr", *addr), logx.Bool("token_set", *token != ""))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
