package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxOllamaResponse caps how much of the model response is read.
const maxOllamaResponse = 10 << 20 // 10 MB

// OllamaDetector asks a local Ollama model to find context-dependent
// entities (names, organizations, locations) that the regex pass cannot.
// The caller controls the timeout through ctx; a timeout or connection
// failure surfaces as ErrUnavailable so the engine can mark the document
// failed without aborting the batch.
type OllamaDetector struct {
	url    string
	model  string
	client *http.Client
}

// NewOllamaDetector creates a detector against the given Ollama endpoint.
func NewOllamaDetector(endpoint, model string) *OllamaDetector {
	return &OllamaDetector{
		url:    endpoint + "/api/generate",
		model:  model,
		client: http.DefaultClient,
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// ollamaDetection is one entity reported by the model.
type ollamaDetection struct {
	Original   string  `json:"original"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

const detectionPrompt = `Analyze the following text for PII (personally identifiable information).
Return ONLY a JSON array of detections. Each item must have:
- "original": the exact text found
- "label": one of: PERSON, ORGANIZATION, LOCATION, EMAIL_ADDRESS, PHONE_NUMBER, DATE_TIME, US_SSN, CREDIT_CARD, IP_ADDRESS, URL, PASSPORT, US_DRIVER_LICENSE, US_BANK_NUMBER, CRYPTO, MEDICAL_LICENSE
- "confidence": float 0.0-1.0

Text to analyze:
%s

Return ONLY the JSON array, no explanation. Example: [{"original":"John Smith","label":"PERSON","confidence":0.95}]`

// Detect queries the model and maps each reported entity back to spans by
// exact string search over the text. Entities the model invents (absent
// from the text) are dropped.
func (d *OllamaDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	detections, err := d.query(ctx, text)
	if err != nil {
		return nil, err
	}

	var spans []Span
	for _, det := range detections {
		if det.Original == "" {
			continue
		}
		for _, start := range allOccurrences(text, det.Original) {
			spans = append(spans, Span{
				Start:      start,
				End:        start + len(det.Original),
				Label:      det.Label,
				Confidence: det.Confidence,
			})
		}
	}
	sortSpans(spans)
	return spans, nil
}

func (d *OllamaDetector) query(ctx context.Context, text string) ([]ollamaDetection, error) {
	reqBody, err := json.Marshal(ollamaRequest{
		Model:  d.model,
		Prompt: fmt.Sprintf(detectionPrompt, text),
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOllamaResponse))
	if err != nil {
		return nil, fmt.Errorf("%w: read ollama response: %v", ErrUnavailable, err)
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("ollama response parse error: %w", err)
	}

	// Extract the JSON array from the model's text response.
	raw := strings.TrimSpace(ollamaResp.Response)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in ollama response")
	}

	var detections []ollamaDetection
	if err := json.Unmarshal([]byte(raw[start:end+1]), &detections); err != nil {
		return nil, fmt.Errorf("detection parse error: %w", err)
	}
	return detections, nil
}

// allOccurrences returns the byte offsets of every non-overlapping
// occurrence of needle in text.
func allOccurrences(text, needle string) []int {
	var offs []int
	for from := 0; ; {
		i := strings.Index(text[from:], needle)
		if i < 0 {
			return offs
		}
		offs = append(offs, from+i)
		from += i + len(needle)
	}
}
