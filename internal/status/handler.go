package status

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string     `json:"status"`
	Timestamp string     `json:"timestamp"`
	Bot       botPayload `json:"bot"`
}

type botPayload struct {
	IsRunning    bool    `json:"isRunning"`
	LastPostTime string  `json:"lastPostTime"`
	TotalPosts   int64   `json:"totalPosts"`
	LastError    *string `json:"lastError"`
}

// Handler returns the /health endpoint. It always answers 200 while the
// process is alive; the payload is the only external signal of loop health.
func Handler(bot *Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := bot.Snapshot()

		var lastError *string
		if snap.LastError != "" {
			lastError = &snap.LastError
		}

		resp := healthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Bot: botPayload{
				IsRunning:    snap.IsRunning,
				LastPostTime: snap.LastPostTime.UTC().Format(time.RFC3339),
				TotalPosts:   snap.TotalPosts,
				LastError:    lastError,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
