package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

const (
	maxResponseBytes = 64 << 20
	maxErrorBody     = 4 << 10
)

// StatusError reports a non-2xx answer from the voice agent endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("voice agent returned status %d", e.Code)
	}
	return fmt.Sprintf("voice agent returned status %d: %s", e.Code, e.Body)
}

// Client uploads recordings to the voice agent endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
}

// Option 配置 Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. It is never mutated.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each upload. Zero leaves uploads unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New validates endpoint and returns a Client for it.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: want an absolute http(s) URL", endpoint)
	}

	c := &Client{endpoint: endpoint, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

// Endpoint 返回上传地址
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Process posts one recording with the conversation history and decodes the reply.
func (c *Client) Process(ctx context.Context, req speech.VoiceAgentRequest) (*speech.VoiceAgentResponse, error) {
	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out speech.VoiceAgentResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	log.Printf("[client] reply received: audio=%d bytes transcription=%d chars text=%d chars",
		len(out.AudioData), len(out.Transcription), len(out.Text))
	return &out, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeRequest(req speech.VoiceAgentRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = speech.RecordingFilename
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = speech.DefaultCaptureMIME
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		speech.FieldAudio, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("write audio part: %w", err)
	}

	history := req.History
	if history == nil {
		history = []conversation.Entry{}
	}
	historyJSON, err := sonic.Marshal(history)
	if err != nil {
		return nil, "", fmt.Errorf("encode history: %w", err)
	}
	if err := writer.WriteField(speech.FieldHistory, string(historyJSON)); err != nil {
		return nil, "", fmt.Errorf("write history field: %w", err)
	}

	if req.SessionID != "" {
		if err := writer.WriteField(speech.FieldSessionID, req.SessionID); err != nil {
			return nil, "", fmt.Errorf("write session field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

