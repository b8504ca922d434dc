package httpd

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"glossa/internal/logging"
	"glossa/internal/translator"
)

// streamTranslation runs the job while emitting Server-Sent Events, one
// `data:` frame per progress event and a final [DONE] sentinel. Errors
// after the headers are sent surface as an error event, not a status code.
func (s *Server) streamTranslation(w http.ResponseWriter, r *http.Request, req translator.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(event translator.Event) error {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		flusher.Flush()
		return nil
	}

	resp, err := s.svc.TranslateStream(r.Context(), req, emit)
	s.metrics.observeTranslate(resp, err)
	if err != nil {
		s.logger.Warn("stream ended with error", logging.Error(err))
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
