package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/analytics"
	"github.com/mikey/email-triage/internal/adapters/notify"
	"github.com/mikey/email-triage/internal/adapters/storage"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/factory"
	"github.com/mikey/email-triage/internal/logging"
	"github.com/mikey/email-triage/internal/utils"
)

var (
	// ML provider flags
	provider    = flag.String("provider", "", "ML provider for refinement (modelservice, bedrock, gemini, openai); empty runs rules only")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to the model")

	// Model service flags
	modelServiceURL = flag.String("modelservice-url", "http://localhost:8000", "Base URL of the HTTP model service")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Classification flags
	categoriesFile      = flag.String("categories", "", "JSON file with category rules")
	owner               = flag.String("owner", "cli@localhost", "Mailbox owner to classify for")
	acceptanceThreshold = flag.Float64("acceptance-threshold", 0.70, "Minimum model confidence accepted during refinement")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	from := msg.Header.Get("From")
	subject := msg.Header.Get("Subject")

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}
	body := string(bodyBytes)

	email := &core.Email{
		ID:      fmt.Sprintf("cli-%d", time.Now().UnixNano()),
		Owner:   *owner,
		From:    from,
		Subject: subject,
		Body:    body,
		Date:    time.Now(),
	}
	if id := strings.Trim(msg.Header.Get("Message-Id"), "<>"); id != "" {
		email.ID = id
	}
	if d, err := msg.Header.Date(); err == nil {
		email.Date = d
	}

	// Build an in-memory store seeded with the category rules
	store := storage.NewMemoryStore(logger)
	categories := loadCategories(logger)
	store.SeedCategories(*owner, categories)

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Owner: %s\n", *owner)
	fmt.Printf("Body length: %d bytes\n", len(body))
	fmt.Printf("Category rules: %d\n", len(categories))

	// Phase 1: rule-based classification
	phase1 := core.NewPhase1Classifier(staticCategories(categories), cfg.GetPhase1(), logger)

	startTime := time.Now()
	result := phase1.Classify(context.Background(), email)

	fmt.Printf("\n=== Rule Classification ===\n")
	fmt.Printf("Category: %s\n", result.Label)
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	fmt.Printf("Method: %s\n", result.Method)
	for _, ev := range result.Evidence {
		fmt.Printf("Evidence: %s\n", ev)
	}
	fmt.Printf("Processing time: %v\n", time.Since(startTime))

	if *provider == "" {
		return
	}

	// Phase 2: model refinement through an in-memory pipeline
	email.Category = result.Label
	email.Classification = core.Classification{
		Label:        result.Label,
		Confidence:   result.Confidence,
		Phase:        1,
		Phase1:       &result,
		ClassifiedAt: result.ClassifiedAt,
	}
	if err := store.SaveEmail(context.Background(), email); err != nil {
		logger.Fatal("Failed to stage email", zap.Error(err))
	}

	mlFactory := factory.NewMLFactory(cfg, logger, utils.NewTextProcessor(logger))
	mlClient, err := mlFactory.CreateMLClient()
	if err != nil {
		logger.Fatal("Failed to create ML client", zap.Error(err))
	}

	phase2Cfg, err := cfg.GetPhase2()
	if err != nil {
		logger.Fatal("Invalid refinement configuration", zap.Error(err))
	}

	refiner := core.NewRefiner(
		store,
		mlClient,
		notify.NewLogNotifier(logger),
		analytics.NewNoopCache(),
		phase2Cfg,
		logger,
	)

	startTime = time.Now()
	refineResult, err := refiner.Refine(context.Background(), email.ID, *owner)
	if err != nil {
		logger.Fatal("Refinement failed", zap.Error(err))
	}

	fmt.Printf("\n=== Model Refinement ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetString("ml.provider"))
	if refineResult.Phase2 != nil {
		fmt.Printf("Model label: %s\n", refineResult.Phase2.Label)
		fmt.Printf("Model confidence: %.2f\n", refineResult.Phase2.Confidence)
		fmt.Printf("Result: %s\n", refineResult.Phase2.Result)
	}
	fmt.Printf("Updated: %t\n", refineResult.Updated)
	if refineResult.UpdateReason != "" {
		fmt.Printf("Update reason: %s\n", refineResult.UpdateReason)
	}
	fmt.Printf("Processing time: %v\n", time.Since(startTime))

	final, err := store.GetEmail(context.Background(), *owner, email.ID)
	if err != nil {
		logger.Fatal("Failed to load final state", zap.Error(err))
	}

	fmt.Printf("\n=== Final Classification ===\n")
	fmt.Printf("Category: %s\n", final.Category)
	fmt.Printf("Confidence: %.2f\n", final.Classification.Confidence)
	fmt.Printf("Phase: %d\n", final.Classification.Phase)

	if closer, ok := mlClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close ML client", zap.Error(err))
		}
	}
}

// staticCategories adapts a fixed rule list to the category provider interface
type staticCategories []core.Category

func (s staticCategories) Categories(_ context.Context, _ string) ([]core.Category, error) {
	return s, nil
}

func (s staticCategories) Invalidate(_ string) {}

// loadCategories reads the category rules JSON file, if given
func loadCategories(logger *zap.Logger) []core.Category {
	if *categoriesFile == "" {
		return nil
	}

	data, err := os.ReadFile(*categoriesFile)
	if err != nil {
		logger.Fatal("Failed to read categories file", zap.Error(err), zap.String("file", *categoriesFile))
	}

	var categories []core.Category
	if err := json.Unmarshal(data, &categories); err != nil {
		logger.Fatal("Failed to parse categories file", zap.Error(err), zap.String("file", *categoriesFile))
	}

	for i := range categories {
		categories[i].Owner = *owner
		if categories[i].ID == "" {
			categories[i].ID = fmt.Sprintf("cat-%d", i)
		}
	}
	return categories
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("ml.provider", *provider)

	switch *provider {
	case "modelservice":
		v.Set("modelservice.base_url", *modelServiceURL)
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	v.Set("phase2.acceptance_threshold", *acceptanceThreshold)

	return config.NewFromViper(v)
}
