package config

const (
	defaultDataDir               = "~/.local/share/glossa"
	defaultLogDir                = "~/.local/share/glossa/logs"
	defaultAPIBind               = "127.0.0.1:8741"
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMTemperature        = 0.3
	defaultLLMMaxTokens          = 8192
	defaultLLMTimeoutSeconds     = 120
	defaultLLMRetryAttempts      = 3
	defaultChunkSizeChars        = 4000
	defaultMaxChunks             = 64
	defaultJobTimeoutSeconds     = 600
	defaultMaxChunkRetries       = 3
	defaultCacheTTLHours         = 168
	defaultHighQualityTTLHours   = 720
	defaultLowQualityTTLHours    = 24
	defaultHighQualityThreshold  = 4.5
	defaultLowQualityThreshold   = 3.0
	defaultPurgeIntervalSeconds  = 3600
	defaultTimeoutSweepInterval  = 30
	defaultRetryPollInterval     = 15
	defaultStaleProcessingCutoff = 900
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Temperature:    defaultLLMTemperature,
			MaxTokens:      defaultLLMMaxTokens,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Translation: Translation{
			ChunkSizeChars:     defaultChunkSizeChars,
			MaxChunks:          defaultMaxChunks,
			PreserveCodeBlocks: true,
			JobTimeoutSeconds:  defaultJobTimeoutSeconds,
			MaxChunkRetries:    defaultMaxChunkRetries,
		},
		Cache: Cache{
			Enabled:              true,
			DefaultTTLHours:      defaultCacheTTLHours,
			HighQualityTTLHours:  defaultHighQualityTTLHours,
			LowQualityTTLHours:   defaultLowQualityTTLHours,
			HighQualityThreshold: defaultHighQualityThreshold,
			LowQualityThreshold:  defaultLowQualityThreshold,
			PurgeIntervalSeconds: defaultPurgeIntervalSeconds,
		},
		Workflow: Workflow{
			TimeoutSweepInterval:  defaultTimeoutSweepInterval,
			RetryPollInterval:     defaultRetryPollInterval,
			StaleProcessingCutoff: defaultStaleProcessingCutoff,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
