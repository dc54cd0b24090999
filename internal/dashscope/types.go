package dashscope

// Result is what every remote operation returns. Value is always usable: on
// failure it holds the operation's fallback, Degraded is set and Err records
// the cause. Callers decide whether to log, count or surface the degradation,
// but never need to handle a missing value.
type Result[T any] struct {
	Value    T
	Degraded bool
	Err      error
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func degraded[T any](fallback T, err error) Result[T] {
	return Result[T]{Value: fallback, Degraded: true, Err: err}
}

// Message is one chat turn
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Recognition is the text recovered from an image
type Recognition struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

const (
	// ChatFallback is returned by Converse whenever the provider fails
	ChatFallback = "这是一个示例回答。请配置正确的 ModelScope API Key 以使用完整功能。"

	ocrMissingKeyText = "Error: API Key missing"
	ocrInstruction    = "Read all the text in the image exactly."
	defaultTTSVoice   = "Cherry"
)

// operation names, used for metrics, logs and breaker names
const (
	OpOCR  = "ocr"
	OpTTS  = "tts"
	OpChat = "chat"
)

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters *generationParam `json:"parameters,omitempty"`
}

type generationInput struct {
	Messages     any    `json:"messages,omitempty"`
	Text         string `json:"text,omitempty"`
	LanguageType string `json:"language_type,omitempty"`
}

type generationParam struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Voice       string  `json:"voice,omitempty"`
}

// multimodalMessage carries a list of typed parts, e.g. {"image": ...} and {"text": ...}
type multimodalMessage struct {
	Role    string              `json:"role"`
	Content []map[string]string `json:"content"`
}

type generationResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		Text    string `json:"text"`
		Choices []struct {
			Message struct {
				Content rawContent `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Audio struct {
			URL string `json:"url"`
		} `json:"audio"`
	} `json:"output"`
}
