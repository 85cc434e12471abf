package auditdb

import (
	"encoding/json"
	"net/http"

	"github.com/klauspost/compress/gzip"
)

// ExportHandler returns an HTTP handler that streams the most recent n
// events as gzip-compressed newline-delimited JSON.
func ExportHandler(db *DB, n int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events, err := db.RecentEvents(r.Context(), n)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		defer zw.Close()

		e := json.NewEncoder(zw)
		for _, ev := range events {
			if err := e.Encode(ev); err != nil {
				return
			}
		}
	})
}
