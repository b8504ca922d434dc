package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizePaths()
	c.normalizeLLM()
	c.normalizeTranslation()
	c.normalizeCache()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() {
	c.Paths.DataDir = ExpandPath(c.Paths.DataDir)
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = ExpandPath(defaultDataDir)
	}
	c.Paths.LogDir = ExpandPath(c.Paths.LogDir)
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = ExpandPath(defaultLogDir)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("GLOSSA_LLM_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeTranslation() {
	if c.Translation.ChunkSizeChars <= 0 {
		c.Translation.ChunkSizeChars = defaultChunkSizeChars
	}
	if c.Translation.MaxChunks <= 0 {
		c.Translation.MaxChunks = defaultMaxChunks
	}
	if c.Translation.JobTimeoutSeconds <= 0 {
		c.Translation.JobTimeoutSeconds = defaultJobTimeoutSeconds
	}
	if c.Translation.MaxChunkRetries < 0 {
		c.Translation.MaxChunkRetries = defaultMaxChunkRetries
	}
}

func (c *Config) normalizeCache() {
	if c.Cache.DefaultTTLHours <= 0 {
		c.Cache.DefaultTTLHours = defaultCacheTTLHours
	}
	if c.Cache.HighQualityTTLHours <= 0 {
		c.Cache.HighQualityTTLHours = defaultHighQualityTTLHours
	}
	if c.Cache.LowQualityTTLHours <= 0 {
		c.Cache.LowQualityTTLHours = defaultLowQualityTTLHours
	}
	if c.Cache.HighQualityThreshold <= 0 {
		c.Cache.HighQualityThreshold = defaultHighQualityThreshold
	}
	if c.Cache.LowQualityThreshold <= 0 {
		c.Cache.LowQualityThreshold = defaultLowQualityThreshold
	}
	if c.Cache.PurgeIntervalSeconds <= 0 {
		c.Cache.PurgeIntervalSeconds = defaultPurgeIntervalSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.TimeoutSweepInterval <= 0 {
		c.Workflow.TimeoutSweepInterval = defaultTimeoutSweepInterval
	}
	if c.Workflow.RetryPollInterval <= 0 {
		c.Workflow.RetryPollInterval = defaultRetryPollInterval
	}
	if c.Workflow.StaleProcessingCutoff <= 0 {
		c.Workflow.StaleProcessingCutoff = defaultStaleProcessingCutoff
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
