package ssgs

import (
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/sensorseal/ssgs/pkg/ssgscp"
)

//go:embed monitor.html
var monitorHTML []byte

// DebugMonitorHandler returns an HTTP handler serving a webpage to watch
// sent and received SSGSCP datagrams in real-time, via server-sent events.
// A fleet of gateways shares one monitor socket, so the "uid" query
// parameter (hex, e.g. "?sse&uid=aabbccdd") restricts the stream to a
// single gateway; an unparseable or absent value streams everything.
func DebugMonitorHandler(s *Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, no-cache, no-store")
		w.Header().Set("Expires", "0")
		w.Header().Set("Pragma", "no-cache")

		q := r.URL.Query()
		if _, sse := q["sse"]; !sse {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Content-Length", strconv.Itoa(len(monitorHTML)))
			w.WriteHeader(http.StatusOK)
			w.Write(monitorHTML)
			return
		}

		f, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "cannot stream events", http.StatusInternalServerError)
			return
		}

		uid, filtered := parseMonitorUID(q.Get("uid"))

		c := make(chan MonitorPacket, 16)
		go s.Monitor(r.Context(), c)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		io.WriteString(w, "event: init\ndata: ")
		if addr := s.LocalAddr(); addr != nil {
			io.WriteString(w, addr.String())
		}
		io.WriteString(w, "\n\n")
		f.Flush()

		e := json.NewEncoder(w)
		for p := range c {
			if filtered && p.UID != uid {
				continue
			}
			io.WriteString(w, "event: packet\ndata: ")
			e.Encode(map[string]any{
				"in":     p.In,
				"remote": p.Remote.String(),
				"uid":    hex.EncodeToString(p.UID[:]),
				"desc":   p.Desc,
				"data":   hex.Dump(p.Data),
			})
			io.WriteString(w, "\n")
			f.Flush()
		}
	})
}

// parseMonitorUID decodes a gateway UID given as plain hex (e.g.
// "aabbccdd"), returning ok=false if v is empty or not a valid UID.
func parseMonitorUID(v string) (uid ssgscp.GatewayUID, ok bool) {
	b, err := hex.DecodeString(v)
	if err != nil || len(b) != len(uid) {
		return uid, false
	}
	copy(uid[:], b)
	return uid, true
}
