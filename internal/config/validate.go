package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required. Set GLOSSA_LLM_API_KEY env var or edit %s (create with 'glossa config init')", DefaultConfigPath())
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	return ensurePositiveMap(map[string]int{
		"llm.max_tokens":      c.LLM.MaxTokens,
		"llm.timeout_seconds": c.LLM.TimeoutSeconds,
		"llm.retry_attempts":  c.LLM.RetryAttempts,
	})
}

func (c *Config) validateTranslation() error {
	if c.Translation.MaxChunkRetries < 0 {
		return errors.New("translation.max_chunk_retries must not be negative")
	}
	return ensurePositiveMap(map[string]int{
		"translation.chunk_size_chars":    c.Translation.ChunkSizeChars,
		"translation.max_chunks":          c.Translation.MaxChunks,
		"translation.job_timeout_seconds": c.Translation.JobTimeoutSeconds,
	})
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if c.Cache.LowQualityThreshold >= c.Cache.HighQualityThreshold {
		return errors.New("cache.low_quality_threshold must be below cache.high_quality_threshold")
	}
	return ensurePositiveMap(map[string]int{
		"cache.default_ttl_hours":      c.Cache.DefaultTTLHours,
		"cache.high_quality_ttl_hours": c.Cache.HighQualityTTLHours,
		"cache.low_quality_ttl_hours":  c.Cache.LowQualityTTLHours,
		"cache.purge_interval_seconds": c.Cache.PurgeIntervalSeconds,
	})
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.timeout_sweep_interval":  c.Workflow.TimeoutSweepInterval,
		"workflow.retry_poll_interval":     c.Workflow.RetryPollInterval,
		"workflow.stale_processing_cutoff": c.Workflow.StaleProcessingCutoff,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
