package anthropic

import (
	"fmt"

	"helioshq/meridian/pkg/backends"
)

// Wire types for the Anthropic Messages API.

type messagesRequest struct {
	Model         string        `json:"model"`
	Messages      []wireMessage `json:"messages"`
	System        string        `json:"system,omitempty"`
	MaxTokens     int           `json:"max_tokens"`
	Temperature   float64       `json:"temperature,omitempty"`
	TopP          float64       `json:"top_p,omitempty"`
	Stream        bool          `json:"stream,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
	Metadata      *wireMetadata `json:"metadata,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireMetadata struct {
	UserID string `json:"user_id,omitempty"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      wireUsage      `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// streamEvent is one event in the Messages API SSE stream. The delta
// field carries text for content_block_delta events and the stop reason
// for message_delta events.
type streamEvent struct {
	Type    string            `json:"type"`
	Message *messagesResponse `json:"message,omitempty"`
	Index   int               `json:"index,omitempty"`
	Delta   *streamDelta      `json:"delta,omitempty"`
	Usage   *wireUsage        `json:"usage,omitempty"`
}

type streamDelta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// streamState tracks identifiers across stream events. message_start
// carries the id and model once; later chunks repeat them.
type streamState struct {
	id           string
	model        string
	promptTokens int
}

// transformRequest transforms a backend-agnostic request to wire format.
// Anthropic requires the system prompt as a separate field and has no
// default for max_tokens.
func transformRequest(req *backends.CompletionRequest, model string) (*messagesRequest, error) {
	wire := &messagesRequest{
		Model:         model,
		Messages:      make([]wireMessage, 0, len(req.Messages)),
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
	}

	if wire.MaxTokens == 0 {
		wire.MaxTokens = 4096
	}
	if req.User != "" {
		wire.Metadata = &wireMetadata{UserID: req.User}
	}

	for _, msg := range req.Messages {
		if msg.Role == backends.RoleSystem {
			wire.System = msg.Content
			continue
		}
		wire.Messages = append(wire.Messages, wireMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	if err := validateMessageSequence(wire.Messages); err != nil {
		return nil, err
	}

	return wire, nil
}

// validateMessageSequence enforces the API's alternation rule: the first
// message is from the user and roles alternate after that.
func validateMessageSequence(messages []wireMessage) error {
	if len(messages) == 0 {
		return &backends.ValidationError{
			Field:   "messages",
			Message: "at least one non-system message is required",
		}
	}

	if messages[0].Role != backends.RoleUser {
		return &backends.ValidationError{
			Field:   "messages",
			Message: "first message must be from user",
		}
	}

	for i := 1; i < len(messages); i++ {
		if messages[i-1].Role == messages[i].Role {
			return &backends.ValidationError{
				Field:   "messages",
				Message: fmt.Sprintf("messages must alternate between user and assistant, found consecutive %s messages at index %d", messages[i].Role, i),
			}
		}
	}

	return nil
}

// transformResponse normalizes a wire response.
func transformResponse(resp *messagesResponse) (*backends.CompletionResponse, error) {
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &backends.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Backend:      backends.KindAnthropic,
		Content:      content,
		FinishReason: normalizeStopReason(resp.StopReason),
		Usage: backends.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// transformStreamChunk normalizes a stream event. Events that carry no
// client-visible content return a nil chunk.
func transformStreamChunk(event *streamEvent, state *streamState) (*backends.StreamChunk, error) {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			state.id = event.Message.ID
			state.model = event.Message.Model
			state.promptTokens = event.Message.Usage.InputTokens
		}
		return nil, nil

	case "content_block_start", "content_block_stop", "message_stop", "ping":
		return nil, nil

	case "content_block_delta":
		if event.Delta == nil || event.Delta.Text == "" {
			return nil, nil
		}
		return &backends.StreamChunk{
			ID:    state.id,
			Model: state.model,
			Delta: event.Delta.Text,
		}, nil

	case "message_delta":
		chunk := &backends.StreamChunk{
			ID:    state.id,
			Model: state.model,
		}
		if event.Delta != nil {
			chunk.FinishReason = normalizeStopReason(event.Delta.StopReason)
		}
		if event.Usage != nil {
			chunk.Usage = &backends.TokenUsage{
				PromptTokens:     state.promptTokens,
				CompletionTokens: event.Usage.OutputTokens,
				TotalTokens:      state.promptTokens + event.Usage.OutputTokens,
			}
		}
		return chunk, nil

	default:
		return nil, fmt.Errorf("unknown stream event type: %s", event.Type)
	}
}

// normalizeStopReason normalizes wire stop reasons.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return backends.FinishReasonStop
	case "max_tokens":
		return backends.FinishReasonLength
	default:
		return reason
	}
}
