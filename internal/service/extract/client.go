package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"voicetask-service/pkg/circuitbreaker"
	"voicetask-service/pkg/metrics"
	"voicetask-service/pkg/trace"
)

// FailureReason tags why an extraction attempt failed, so callers and tests
// can distinguish outcomes instead of inspecting a nil result.
type FailureReason string

const (
	ReasonRequestFailed     FailureReason = "request_failed"
	ReasonBadStatus         FailureReason = "bad_status"
	ReasonBadEnvelope       FailureReason = "bad_envelope"
	ReasonBadPayload        FailureReason = "bad_payload"
	ReasonMissingField      FailureReason = "missing_field"
	ReasonBadDueDate        FailureReason = "bad_due_date"
	ReasonDueDateOutOfRange FailureReason = "due_date_out_of_range"
	ReasonUnavailable       FailureReason = "unavailable"
)

// Error is a terminal extraction failure. No retry is attempted; the user
// must re-record.
type Error struct {
	Reason FailureReason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf returns the failure reason of err, or empty if err is not an
// extraction error.
func ReasonOf(err error) FailureReason {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Reason
	}
	return ""
}

// Extraction is the structured task payload returned by the model.
type Extraction struct {
	Heading string
	Body    string
	DueDate time.Time
}

// Due dates outside this window around "now" are treated as garbled
// transcriptions and rejected rather than silently creating reminder slots
// in the far past or future.
const (
	dueDatePastBound   = 365 * 24 * time.Hour
	dueDateFutureBound = 5 * 365 * 24 * time.Hour
)

// Client calls the Gemini generateContent API with an audio payload and a
// constrained JSON response schema.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb: circuitbreaker.New(cbConfig),
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema"`
}

// responseSchema constrains the model to exactly the three required string
// fields of the task payload.
var responseSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"heading": {"type": "STRING"},
		"body": {"type": "STRING"},
		"dueDate": {"type": "STRING"}
	},
	"required": ["heading", "body", "dueDate"]
}`)

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type taskPayload struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
	DueDate string `json:"dueDate"`
}

func prompt(now time.Time) string {
	return `You are a helpful assistant for university students.
Listen to the audio and extract the task details.
The current time is ` + now.UTC().Format(time.RFC3339) + `.
Return a JSON object with the following structure:
- heading: A short, clear title for the task
- body: Detailed description of the task, including any specific requirements or notes
- dueDate: The due date and time in ISO 8601 format. If no year is mentioned, assume the current or next logical year. If no time is mentioned, assume 23:59:59 local time.`
}

// Extract sends the audio to the model and returns the structured task, or a
// tagged *Error on any failure. Any non-conforming response is total failure,
// never partial success.
func (c *Client) Extract(ctx context.Context, audio []byte, mimeType string, now time.Time) (*Extraction, error) {
	var raw []byte

	err := c.cb.Execute(func() error {
		start := time.Now()
		status := "success"

		reqBody := generateRequest{
			Contents: []content{{
				Parts: []part{
					{Text: prompt(now)},
					{InlineData: &inlineData{
						MimeType: mimeType,
						Data:     base64.StdEncoding.EncodeToString(audio),
					}},
				},
			}},
			GenerationConfig: &generationConfig{
				ResponseMimeType: "application/json",
				ResponseSchema:   responseSchema,
			},
		}

		b, marshalErr := json.Marshal(reqBody)
		if marshalErr != nil {
			return &Error{Reason: ReasonRequestFailed, Err: marshalErr}
		}

		url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if reqErr != nil {
			return &Error{Reason: ReasonRequestFailed, Err: reqErr}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)
		if traceID := trace.FromContext(ctx); traceID != "" {
			req.Header.Set(trace.HeaderName(), traceID)
		}

		resp, doErr := c.httpClient.Do(req)
		latency := time.Since(start)
		if doErr != nil {
			metrics.RecordExtractionCallLatency("error", latency)
			return &Error{Reason: ReasonRequestFailed, Err: doErr}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode >= 500 {
				status = "5xx"
			} else {
				status = fmt.Sprintf("%d", resp.StatusCode)
			}
			metrics.RecordExtractionCallLatency(status, latency)
			return &Error{Reason: ReasonBadStatus, Err: fmt.Errorf("extraction service status %d", resp.StatusCode)}
		}
		metrics.RecordExtractionCallLatency(status, latency)

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &Error{Reason: ReasonBadEnvelope, Err: readErr}
		}
		raw = body
		return nil
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, &Error{Reason: ReasonUnavailable, Err: err}
		}
		var ee *Error
		if errors.As(err, &ee) {
			return nil, ee
		}
		return nil, &Error{Reason: ReasonRequestFailed, Err: err}
	}

	return parseExtraction(raw, now)
}

func parseExtraction(raw []byte, now time.Time) (*Extraction, error) {
	var envelope generateResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &Error{Reason: ReasonBadEnvelope, Err: err}
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return nil, &Error{Reason: ReasonBadEnvelope, Err: errors.New("no candidates in response")}
	}

	var payload taskPayload
	if err := json.Unmarshal([]byte(envelope.Candidates[0].Content.Parts[0].Text), &payload); err != nil {
		return nil, &Error{Reason: ReasonBadPayload, Err: err}
	}
	if payload.Heading == "" || payload.Body == "" || payload.DueDate == "" {
		return nil, &Error{Reason: ReasonMissingField, Err: errors.New("response missing required field")}
	}

	dueDate, err := time.Parse(time.RFC3339, payload.DueDate)
	if err != nil {
		return nil, &Error{Reason: ReasonBadDueDate, Err: err}
	}
	if dueDate.Before(now.Add(-dueDatePastBound)) || dueDate.After(now.Add(dueDateFutureBound)) {
		return nil, &Error{
			Reason: ReasonDueDateOutOfRange,
			Err:    fmt.Errorf("due date %s outside sanity bounds", payload.DueDate),
		}
	}

	return &Extraction{
		Heading: payload.Heading,
		Body:    payload.Body,
		DueDate: dueDate,
	}, nil
}
