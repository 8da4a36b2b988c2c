package config

import "time"

// MLConfig represents the configuration for the ML provider
type MLConfig struct {
	Provider string
	Labels   []string
}

// Phase1Config represents the configuration for the rule-based classifier
type Phase1Config struct {
	ConfidenceThreshold    float64
	FallbackCategory       string
	DefaultConfidence      float64
	SenderConfidence       float64
	SenderDomainConfidence float64
	SenderNameConfidence   float64
	KeywordConfidence      float64
}

// Phase2Config represents the configuration for the ML refinement stage
type Phase2Config struct {
	Enabled                        bool
	Delay                          time.Duration
	BatchSize                      int
	Concurrency                    int
	AcceptanceThreshold            float64
	ConfidenceImprovementThreshold float64
	MaxRetries                     int
	BatchDelay                     time.Duration
	PollInterval                   time.Duration
	RetryBackoff                   time.Duration
	CallTimeout                    time.Duration
}

// ModelServiceConfig represents the configuration for the HTTP model service
type ModelServiceConfig struct {
	BaseURL   string
	ModelName string
	Timeout   time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetML returns the ML provider configuration
func (c *Config) GetML() MLConfig {
	return MLConfig{
		Provider: c.GetString("ml.provider"),
		Labels:   c.GetStringSlice("ml.labels"),
	}
}

// GetPhase1 returns the Phase 1 classifier configuration
func (c *Config) GetPhase1() Phase1Config {
	return Phase1Config{
		ConfidenceThreshold:    c.GetFloat64("phase1.confidence_threshold"),
		FallbackCategory:       c.GetString("phase1.fallback_category"),
		DefaultConfidence:      c.GetFloat64("phase1.default_confidence"),
		SenderConfidence:       c.GetFloat64("phase1.sender_confidence"),
		SenderDomainConfidence: c.GetFloat64("phase1.sender_domain_confidence"),
		SenderNameConfidence:   c.GetFloat64("phase1.sender_name_confidence"),
		KeywordConfidence:      c.GetFloat64("phase1.keyword_confidence"),
	}
}

// GetPhase2 returns the Phase 2 refinement configuration
func (c *Config) GetPhase2() (Phase2Config, error) {
	delay, err := c.GetDuration("phase2.delay")
	if err != nil {
		return Phase2Config{}, err
	}
	batchDelay, err := c.GetDuration("phase2.batch_delay")
	if err != nil {
		return Phase2Config{}, err
	}
	pollInterval, err := c.GetDuration("phase2.poll_interval")
	if err != nil {
		return Phase2Config{}, err
	}
	retryBackoff, err := c.GetDuration("phase2.retry_backoff")
	if err != nil {
		return Phase2Config{}, err
	}
	callTimeout, err := c.GetDuration("phase2.call_timeout")
	if err != nil {
		return Phase2Config{}, err
	}

	return Phase2Config{
		Enabled:                        c.GetBool("phase2.enabled"),
		Delay:                          delay,
		BatchSize:                      c.GetInt("phase2.batch_size"),
		Concurrency:                    c.GetInt("phase2.concurrency"),
		AcceptanceThreshold:            c.GetFloat64("phase2.acceptance_threshold"),
		ConfidenceImprovementThreshold: c.GetFloat64("phase2.confidence_improvement_threshold"),
		MaxRetries:                     c.GetInt("phase2.max_retries"),
		BatchDelay:                     batchDelay,
		PollInterval:                   pollInterval,
		RetryBackoff:                   retryBackoff,
		CallTimeout:                    callTimeout,
	}, nil
}

// GetModelService returns the model service configuration
func (c *Config) GetModelService() (ModelServiceConfig, error) {
	timeout, err := c.GetDuration("modelservice.timeout")
	if err != nil {
		return ModelServiceConfig{}, err
	}
	return ModelServiceConfig{
		BaseURL:   c.GetString("modelservice.base_url"),
		ModelName: c.GetString("modelservice.model_name"),
		Timeout:   timeout,
	}, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// IngestConfig represents the configuration for the SMTP ingest surface
type IngestConfig struct {
	Type            string
	ListenAddress   string
	Domain          string
	MaxMessageBytes int
	MaxRecipients   int
}

// GetIngest returns the ingest configuration
func (c *Config) GetIngest() IngestConfig {
	return IngestConfig{
		Type:            c.GetString("ingest.type"),
		ListenAddress:   c.GetString("ingest.listen_address"),
		Domain:          c.GetString("ingest.domain"),
		MaxMessageBytes: c.GetInt("ingest.max_message_bytes"),
		MaxRecipients:   c.GetInt("ingest.max_recipients"),
	}
}
