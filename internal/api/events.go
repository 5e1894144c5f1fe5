package api

import (
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/tmplsync/internal/notifier"
)

// eventSignals is the signal patch pushed for each finished run.
type eventSignals struct {
	LastRun notifier.Event `json:"lastRun"`
}

// handleEvents streams finished sync runs as server-sent signal patches
// until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	sse := datastar.NewSSE(w, r)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.MarshalAndPatchSignals(eventSignals{LastRun: ev}); err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}
