// Package assistant wraps a Gemini-style generative language API and
// builds the prompts used by the advisory endpoints.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
)

var (
	ErrDisabled = errors.New("assistant is not configured")
	ErrNoAnswer = errors.New("assistant returned no answer")
)

// Client calls the generative language REST API. The zero value is not
// usable; construct it with NewClient.
type Client struct {
	conf       core.AssistantConfig
	httpClient *http.Client
}

func NewClient(conf core.AssistantConfig) *Client {
	return &Client{
		conf:       conf,
		httpClient: &http.Client{Timeout: conf.Timeout},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.conf.APIKey != ""
}

type (
	generateRequest struct {
		Contents []content `json:"contents"`
	}

	content struct {
		Parts []part `json:"parts"`
	}

	part struct {
		Text string `json:"text"`
	}

	generateResponse struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
)

// Generate sends a prompt (with optional grounding context) and returns
// the model's text answer.
func (c *Client) Generate(ctx context.Context, prompt, promptCtx string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	full := prompt
	if promptCtx != "" {
		full = fmt.Sprintf("%s\n\nUser Query: %s\n\nProvide a helpful, concise response:", promptCtx, prompt)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: full}}}},
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.conf.BaseURL, c.conf.Model, c.conf.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling assistant API")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading response")
	}

	var parsed generateResponse
	if err = json.Unmarshal(data, &parsed); err != nil {
		return "", errors.Wrapf(err, "decoding response (status %d)", res.StatusCode)
	}
	if parsed.Error != nil {
		return "", errors.Errorf("assistant API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoAnswer
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
