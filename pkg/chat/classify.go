package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onetaskassistant/onetask/pkg/dates"
)

// Kind tags how a response body was interpreted.
type Kind int

const (
	KindJSON Kind = iota + 1
	KindPlainText
	// KindFallback is a synthesized reply that replaced an HTML error page.
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindPlainText:
		return "plain_text"
	case KindFallback:
		return "fallback"
	}
	return "unknown"
}

// Response is the shape every chat reply is normalized into.
type Response struct {
	Response          string `json:"response"`
	UserID            string `json:"user_id,omitempty"`
	Timestamp         string `json:"timestamp,omitempty"`
	InterviewComplete *bool  `json:"interview_complete,omitempty"`
	CurrentQuestion   *int   `json:"current_question,omitempty"`
}

type Result struct {
	Kind     Kind
	Response Response
}

var (
	ErrEmptyBody     = errors.New("empty response body")
	ErrEmptyResponse = errors.New("response field is empty")
)

// FallbackMessage is shown instead of an upstream error page.
func FallbackMessage(message string) string {
	return fmt.Sprintf("I'm having trouble connecting to the chat service right now. Please try again in a moment. Your message was: '%s'", message)
}

// Classify interprets a chat response body. HTML becomes a fallback reply
// quoting message, anything not starting with { or [ is a plain text answer,
// and a body that fails to decode as a chat reply (including a JSON object
// with no response key) is also taken as plain text. Only an empty body or
// an explicitly empty response yields a decode error.
func Classify(body []byte, message, userID string, now time.Time) (*Result, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, &Error{State: FailedDecode, Err: ErrEmptyBody}
	}

	wrap := func(kind Kind, reply string) *Result {
		f := false
		return &Result{
			Kind: kind,
			Response: Response{
				Response:          reply,
				UserID:            userID,
				Timestamp:         dates.Format(now),
				InterviewComplete: &f,
			},
		}
	}

	switch {
	case isHTML(text):
		return wrap(KindFallback, FallbackMessage(message)), nil
	case text[0] != '{' && text[0] != '[':
		return wrap(KindPlainText, text), nil
	}

	var resp Response
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(&resp); err != nil || dec.More() {
		return wrap(KindPlainText, text), nil
	}
	if strings.TrimSpace(resp.Response) == "" {
		if !hasResponseKey(text) {
			return wrap(KindPlainText, text), nil
		}
		return nil, &Error{State: FailedDecode, Err: ErrEmptyResponse}
	}
	if resp.UserID == "" {
		resp.UserID = userID
	}
	return &Result{Kind: KindJSON, Response: resp}, nil
}

// hasResponseKey reports whether the JSON object carries a non-null response.
func hasResponseKey(text string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return false
	}
	raw, ok := fields["response"]
	return ok && string(bytes.TrimSpace(raw)) != "null"
}

func isHTML(text string) bool {
	return strings.HasPrefix(text, "<")
}
