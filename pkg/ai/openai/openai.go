package openai

import (
	"sync"

	"github.com/caselens/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OracleOpenAIClient implements ai.OracleClient against an OpenAI-compatible
// chat completion API. It uses separate default models for consolidation
// decisions and relationship extraction.
//
// An OracleOpenAIClient should be created using NewOracleOpenAIClient.
type OracleOpenAIClient struct {
	decisionModel   string
	extractionModel string

	chatURL string
	chatKey string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewOracleOpenAIClientParams defines the configuration parameters for
// creating a new OracleOpenAIClient.
//
// DecisionModel is used for consolidation decisions, ExtractionModel for
// entity/relation extraction. ChatURL and ChatKey configure the chat
// completion endpoint; an empty ChatURL means the official API.
type NewOracleOpenAIClientParams struct {
	DecisionModel   string
	ExtractionModel string

	ChatURL string
	ChatKey string
}

// NewOracleOpenAIClient creates and returns a new OracleOpenAIClient
// configured with the provided parameters.
//
// Example:
//
//	params := openai.NewOracleOpenAIClientParams{
//		DecisionModel:   "gpt-4o-mini",
//		ExtractionModel: "gpt-4o-mini",
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//	}
//	client := openai.NewOracleOpenAIClient(params)
func NewOracleOpenAIClient(
	params NewOracleOpenAIClientParams,
) *OracleOpenAIClient {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)

	return &OracleOpenAIClient{
		decisionModel:   params.DecisionModel,
		extractionModel: params.ExtractionModel,

		chatURL: params.ChatURL,
		chatKey: params.ChatKey,

		metricsLock: sync.Mutex{},
		metrics: ai.ModelMetrics{
			InputTokens:  0,
			OutputTokens: 0,
			TotalTokens:  0,
			DurationMs:   0,
		},

		ChatClient: chatClient,
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
