package api

import (
	"glossa/internal/textutil"
	"glossa/internal/translation"
	"glossa/internal/translator"
)

// FromTranslatorResponse converts an orchestrator result to the wire form.
func FromTranslatorResponse(resp *translator.Response) TranslateResponse {
	out := TranslateResponse{
		JobID:            resp.JobID,
		Status:           string(resp.Status),
		TranslatedText:   resp.TranslatedText,
		Cached:           resp.Cached,
		Progress:         resp.Progress,
		ChunksTotal:      resp.ChunksTotal,
		ChunksCompleted:  resp.ChunksCompleted,
		ChunksFailed:     resp.ChunksFailed,
		InputTokens:      resp.InputTokens,
		OutputTokens:     resp.OutputTokens,
		EstimatedCostUSD: resp.EstimatedCostUSD,
		ProcessingTimeMS: resp.ProcessingTimeMS,
		ErrorMessage:     resp.ErrorMessage,
	}
	for _, chunk := range resp.Chunks {
		out.Chunks = append(out.Chunks, ChunkFromDomain(chunk))
	}
	return out
}

// ToTranslatorRequest converts the wire request plus resolved principal
// into an orchestrator request.
func (r TranslateRequest) ToTranslatorRequest(principal Principal) translator.Request {
	return translator.Request{
		Text:               r.Text,
		SourceLang:         r.SourceLang,
		TargetLang:         r.TargetLang,
		PageURL:            r.PageURL,
		UserID:             principal.UserID,
		SessionID:          principal.SessionID,
		Model:              r.Model,
		Temperature:        r.Temperature,
		MaxTokens:          r.MaxTokens,
		ChunkSize:          r.ChunkSize,
		MaxChunks:          r.MaxChunks,
		PreserveCodeBlocks: r.PreserveCodeBlocks,
	}
}

// ChunkFromDomain converts a persisted chunk to the wire form.
func ChunkFromDomain(chunk *translation.Chunk) ChunkDTO {
	return ChunkDTO{
		Index:          chunk.ChunkIndex,
		Status:         string(chunk.Status),
		IsCodeBlock:    chunk.IsCodeBlock,
		CodeLanguage:   chunk.CodeLanguage,
		TranslatedText: chunk.TranslatedText,
		ErrorMessage:   chunk.ErrorMessage,
	}
}

// JobFromDomain converts a persisted job to the history wire form. The
// original document is reduced to a snippet; full text stays server-side.
func JobFromDomain(job *translation.Job) JobDTO {
	return JobDTO{
		JobID:            job.JobID,
		Status:           string(job.Status),
		SourceLang:       job.SourceLang,
		TargetLang:       job.TargetLang,
		Model:            job.Model,
		Snippet:          textutil.Snippet(job.OriginalText),
		Progress:         job.ProgressPercent,
		ChunksTotal:      job.ChunksTotal,
		ChunksCompleted:  job.ChunksCompleted,
		ChunksFailed:     job.ChunksFailed,
		InputTokens:      job.InputTokens,
		OutputTokens:     job.OutputTokens,
		EstimatedCostUSD: job.EstimatedCostUSD,
		ProcessingTimeMS: job.ProcessingTimeMS,
		CacheHit:         job.CacheHit,
		Rating:           job.Rating,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        job.CreatedAt,
		CompletedAt:      job.CompletedAt,
	}
}
