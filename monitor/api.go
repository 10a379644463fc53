package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type registerJSON struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Value   uint8  `json:"value"`
	Error   string `json:"error,omitempty"`
}

type snapshotJSON struct {
	Time      time.Time      `json:"time"`
	Registers []registerJSON `json:"registers"`
}

// SnapshotHandler serves the newest snapshot of latest as JSON. It never
// touches the bus itself.
func SnapshotHandler(latest *Latest[*Snapshot]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := latest.Value()
		if snap == nil {
			http.Error(w, "No register snapshot yet", http.StatusServiceUnavailable)
			return
		}

		out := snapshotJSON{Time: snap.Time, Registers: make([]registerJSON, 0, len(snap.Values))}
		for _, v := range snap.Values {
			entry := registerJSON{
				Address: fmt.Sprintf("0x%02X", uint8(v.Reg)),
				Name:    v.Reg.Name(),
				Value:   v.Value,
			}
			if v.Err != nil {
				entry.Error = v.Err.Error()
			}
			out.Registers = append(out.Registers, entry)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			slog.Error("Failed to encode register snapshot", "error", err)
		}
	}
}
