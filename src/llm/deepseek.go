package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/username/tradelens/backend/src/logger"
	"github.com/username/tradelens/backend/src/models"
)

// DeepSeekAnalyzer calls a DeepSeek (OpenAI-compatible) chat completions
// endpoint to structure OCR text into trade fields.
type DeepSeekAnalyzer struct {
	client *resty.Client
	model  string
}

var _ Analyzer = (*DeepSeekAnalyzer)(nil)

func NewDeepSeekAnalyzer(apiKey, baseURL, model string, timeout time.Duration) *DeepSeekAnalyzer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &DeepSeekAnalyzer{client: client, model: model}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// aiTrade mirrors the JSON schema the prompt asks the model for. pnl_amount
// is lenient because models sometimes echo the on-screen string ("+38.07 USD")
// instead of a bare number.
type aiTrade struct {
	Ticker      string          `json:"ticker"`
	Timeframe   string          `json:"timeframe"`
	EntryPrice  *float64        `json:"entry_price"`
	ExitPrice   *float64        `json:"exit_price"`
	Direction   string          `json:"direction"`
	PnLAmount   json.RawMessage `json:"pnl_amount"`
	DateTime    string          `json:"date_time"`
	Annotations string          `json:"reason_or_annotations"`
}

const promptTemplate = `You are an expert trading analyst. Given OCR text from a trading screenshot, output ONLY valid JSON with the following keys:

ticker, timeframe, entry_price, exit_price, direction, pnl_amount, date_time, reason_or_annotations

IMPORTANT: For pnl_amount, extract only the numeric value (e.g., if you see "+38.07 USD", output 38.07)

OCR text from %s:
"""%s"""`

func (a *DeepSeekAnalyzer) Analyze(ctx context.Context, rawText, imageName string) (models.TradeFields, error) {
	empty := models.TradeFields{Side: models.SideUnknown}

	req := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, imageName, rawText)},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	}

	var body chatResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&body).
		Post("/v1/chat/completions")
	if err != nil {
		return empty, fmt.Errorf("deepseek request failed: %w", err)
	}
	if resp.IsError() {
		return empty, fmt.Errorf("deepseek returned status %d", resp.StatusCode())
	}
	if len(body.Choices) == 0 {
		return empty, fmt.Errorf("deepseek returned no choices")
	}

	content := stripFences(body.Choices[0].Message.Content)

	var trade aiTrade
	if err := json.Unmarshal([]byte(content), &trade); err != nil {
		// Model produced something that is not the requested JSON; treat it
		// as "nothing extracted" so the pattern parser still runs.
		logger.L.Warn("DeepSeek response was not valid JSON, ignoring", "imageName", imageName, "error", err)
		return empty, nil
	}

	return trade.toFields(), nil
}

func (t aiTrade) toFields() models.TradeFields {
	fields := models.TradeFields{Side: models.SideUnknown}

	if sym := strings.ToUpper(strings.TrimSpace(t.Ticker)); sym != "" {
		fields.Symbol = &sym
	}
	if tf := strings.TrimSpace(t.Timeframe); tf != "" {
		fields.Timeframe = &tf
	}
	fields.EntryPrice = t.EntryPrice
	fields.ExitPrice = t.ExitPrice

	switch strings.ToLower(strings.TrimSpace(t.Direction)) {
	case "buy", "long":
		fields.Side = models.SideBuy
	case "sell", "short":
		fields.Side = models.SideSell
	}

	if pnl, ok := parsePnLAmount(t.PnLAmount); ok {
		fields.PnL = &pnl
	}
	if ts := strings.TrimSpace(t.DateTime); ts != "" {
		if normalized, ok := normalizeDateTime(ts); ok {
			fields.Timestamp = &normalized
		}
	}
	if notes := strings.TrimSpace(t.Annotations); notes != "" {
		fields.Notes = &notes
	}
	return fields
}

// parsePnLAmount accepts a JSON number, a numeric string, or a decorated
// string like "+38.07 USD". Anything else is a missing value.
func parsePnLAmount(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			return r
		default:
			return -1
		}
	}, strings.ReplaceAll(str, ",", ""))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeDateTime(ts string) (string, bool) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format(time.RFC3339), true
		}
	}
	return "", false
}

// stripFences removes the markdown code fences models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
