package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Output item type tags returned by the Responses API.
const (
	OutputTypeMessage        = "message"
	OutputTypeWebSearchCall  = "web_search_call"
	OutputTypeFileSearchCall = "file_search_call"
	OutputTypeReasoning      = "reasoning"
)

// OutputItem is one entry of a response's output array.
// The concrete type is one of *MessageItem, *WebSearchCallItem,
// *FileSearchCallItem, *ReasoningItem or *UnknownItem.
type OutputItem interface {
	ItemType() string
	isOutputItem()
}

// MessageItem is assistant output text with its citations.
type MessageItem struct {
	Type    string           `json:"type"`
	ID      string           `json:"id"`
	Status  string           `json:"status,omitempty"`
	Role    string           `json:"role"`
	Content []MessageContent `json:"content"`
}

// MessageContent is one content part of a message (usually output_text).
type MessageContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Refusal     string       `json:"refusal,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Annotation is a url_citation or file_citation attached to output text.
type Annotation struct {
	Type       string `json:"type"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	FileID     string `json:"file_id,omitempty"`
	Filename   string `json:"filename,omitempty"`
	StartIndex *int   `json:"start_index,omitempty"`
	EndIndex   *int   `json:"end_index,omitempty"`
	Index      *int   `json:"index,omitempty"`
}

// WebSearchCallItem records that the model ran a web search.
type WebSearchCallItem struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Action json.RawMessage `json:"action,omitempty"`
}

// FileSearchCallItem records that the model searched a vector store.
type FileSearchCallItem struct {
	Type    string             `json:"type"`
	ID      string             `json:"id"`
	Status  string             `json:"status"`
	Queries []string           `json:"queries"`
	Results []FileSearchResult `json:"results"`
}

// FileSearchResult is a retrieved chunk; only present when the request asked for it.
type FileSearchResult struct {
	FileID   string  `json:"file_id"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// ReasoningItem carries reasoning summaries from reasoning models.
type ReasoningItem struct {
	Type    string           `json:"type"`
	ID      string           `json:"id"`
	Summary []MessageContent `json:"summary"`
}

// UnknownItem keeps output items of a type this package does not model.
type UnknownItem struct {
	Type string
	Raw  json.RawMessage
}

func (*MessageItem) ItemType() string        { return OutputTypeMessage }
func (*WebSearchCallItem) ItemType() string  { return OutputTypeWebSearchCall }
func (*FileSearchCallItem) ItemType() string { return OutputTypeFileSearchCall }
func (*ReasoningItem) ItemType() string      { return OutputTypeReasoning }
func (u *UnknownItem) ItemType() string      { return u.Type }

func (*MessageItem) isOutputItem()        {}
func (*WebSearchCallItem) isOutputItem()  {}
func (*FileSearchCallItem) isOutputItem() {}
func (*ReasoningItem) isOutputItem()      {}
func (*UnknownItem) isOutputItem()        {}

// MarshalJSON writes the preserved raw item unchanged.
func (u *UnknownItem) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

// OutputItems decodes the heterogeneous output array into typed items.
type OutputItems []OutputItem

// UnmarshalJSON dispatches every element on its "type" tag.
func (o *OutputItems) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode output array: %w", err)
	}

	items := make(OutputItems, 0, len(raws))
	for i, raw := range raws {
		item, err := decodeOutputItem(raw)
		if err != nil {
			return fmt.Errorf("decode output[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	*o = items
	return nil
}

func decodeOutputItem(raw json.RawMessage) (OutputItem, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}

	var item OutputItem
	switch tag.Type {
	case OutputTypeMessage:
		item = &MessageItem{}
	case OutputTypeWebSearchCall:
		item = &WebSearchCallItem{}
	case OutputTypeFileSearchCall:
		item = &FileSearchCallItem{}
	case OutputTypeReasoning:
		item = &ReasoningItem{}
	default:
		kept := make(json.RawMessage, len(raw))
		copy(kept, raw)
		return &UnknownItem{Type: tag.Type, Raw: kept}, nil
	}

	if err := json.Unmarshal(raw, item); err != nil {
		return nil, fmt.Errorf("%s: %w", tag.Type, err)
	}
	return item, nil
}

// Text concatenates the output_text parts of all message items,
// matching the SDK's output_text convenience property.
func (o OutputItems) Text() string {
	var b strings.Builder
	for _, item := range o {
		msg, ok := item.(*MessageItem)
		if !ok {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

// Unknown returns the type tags the decoder did not recognize.
func (o OutputItems) Unknown() []string {
	var tags []string
	for _, item := range o {
		if u, ok := item.(*UnknownItem); ok {
			tags = append(tags, u.Type)
		}
	}
	return tags
}
