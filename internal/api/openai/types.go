package openai

import "encoding/json"

// ChatCompletionRequest is the request body for POST /chat/completions.
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat requests a constrained output format from the model.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// ChatMessage is one message in the conversation. Content is either a plain
// string or a list of ContentParts for multimodal input.
type ChatMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content is a string-or-parts union matching the chat completions schema.
type Content struct {
	Text  string
	Parts []ContentPart
}

// MarshalJSON emits a bare string for simple text and an array otherwise.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.Parts) == 0 {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON accepts both encodings.
func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	return json.Unmarshal(data, &c.Parts)
}

// ContentPart is a single part of multimodal message content.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image, typically as a base64 data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// Text builds a plain text message.
func Text(role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: Content{Text: text}}
}

// TextWithImage builds a user message pairing an instruction with an image.
func TextWithImage(text, imageDataURL string) ChatMessage {
	return ChatMessage{
		Role: "user",
		Content: Content{Parts: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageDataURL}},
		}},
	}
}

// ChatCompletionResponse is the response body for POST /chat/completions.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is one completion candidate.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message inside a choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrorResponse is the error envelope returned on non-2xx status codes.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
