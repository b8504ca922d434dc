package logging

// Standard field names. Components use these constants so that log
// consumers can rely on stable keys.
const (
	FieldComponent   = "component"
	FieldJobID       = "job_id"
	FieldChunkIndex  = "chunk_index"
	FieldChunkTotal  = "chunk_total"
	FieldStatus      = "status"
	FieldSourceLang  = "source_lang"
	FieldTargetLang  = "target_lang"
	FieldModel       = "model"
	FieldCacheHit    = "cache_hit"
	FieldDuration    = "duration"
	FieldErrorType   = "error_type"
	FieldRetryCount  = "retry_count"
	FieldUserID      = "user_id"
	FieldSessionID   = "session_id"
	FieldContentHash = "content_hash"
)
