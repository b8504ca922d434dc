package translator

import (
	"context"

	"glossa/internal/translation"
)

// EventType discriminates streamed progress messages.
type EventType string

const (
	EventStatus EventType = "status"
	EventChunk  EventType = "chunk"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// Event is one progress message emitted while a streamed translation runs.
// Chunk events carry the translated text of the chunk that just resolved;
// the terminal done event carries the reassembled document.
type Event struct {
	Type        EventType `json:"type"`
	JobID       string    `json:"job_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	ChunkIndex  *int      `json:"chunk_index,omitempty"`
	ChunksTotal int       `json:"chunks_total,omitempty"`
	Progress    int       `json:"progress,omitempty"`
	Text        string    `json:"text,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
	Error       string    `json:"error,omitempty"`

	InputTokens      int64   `json:"input_tokens,omitempty"`
	OutputTokens     int64   `json:"output_tokens,omitempty"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd,omitempty"`
}

// TranslateStream runs the same pipeline as Translate but invokes emit for
// every status change, chunk resolution, and the terminal outcome. An emit
// error cancels the job and stops further gateway calls; chunks already
// completed stay persisted.
func (s *Service) TranslateStream(ctx context.Context, req Request, emit func(Event) error) (*Response, error) {
	resp, err := s.run(ctx, req, emit)
	if err != nil {
		// Best effort: tell the client why the stream ended early.
		_ = emit(Event{Type: EventError, Error: err.Error()})
		return nil, err
	}
	return resp, nil
}

func statusEvent(jobID string, status translation.JobStatus, chunksTotal int) Event {
	return Event{
		Type:        EventStatus,
		JobID:       jobID,
		Status:      string(status),
		ChunksTotal: chunksTotal,
	}
}

func chunkEvent(jobID string, chunk *translation.Chunk, chunksTotal int) Event {
	index := chunk.ChunkIndex
	text := chunk.TranslatedText
	if chunk.Status == translation.ChunkFailed {
		text = failedChunkMarker
	}
	progress := 100
	if chunksTotal > 0 {
		progress = min(100, (index+1)*100/chunksTotal)
	}
	return Event{
		Type:        EventChunk,
		JobID:       jobID,
		Status:      string(chunk.Status),
		ChunkIndex:  &index,
		ChunksTotal: chunksTotal,
		Progress:    progress,
		Text:        text,
	}
}

func doneEvent(jobID string, resp *Response) Event {
	return Event{
		Type:             EventDone,
		JobID:            jobID,
		Status:           string(resp.Status),
		ChunksTotal:      resp.ChunksTotal,
		Progress:         resp.Progress,
		Text:             resp.TranslatedText,
		Cached:           resp.Cached,
		Error:            resp.ErrorMessage,
		InputTokens:      resp.InputTokens,
		OutputTokens:     resp.OutputTokens,
		EstimatedCostUSD: resp.EstimatedCostUSD,
	}
}
