// Package client is the Go client for the briefq server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	APIKey  string
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.APIKey = strings.TrimSpace(key)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.HTTP = httpClient
		}
	}
}

// Message mirrors the server's wire shape.
type Message struct {
	ID         string `json:"id,omitempty"`
	Date       string `json:"date,omitempty"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	Body       string `json:"body,omitempty"`
	ReplyRef   string `json:"reply_reference_id,omitempty"`
	Status     string `json:"status,omitempty"`
	AgentID    string `json:"agent_id,omitempty"`
	AgentState string `json:"agent_state,omitempty"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type Agent struct {
	ID              string `json:"agent_id"`
	ActiveMessageID string `json:"active_message_id,omitempty"`
	LastHeartbeat   string `json:"last_heartbeat,omitempty"`
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
}

type agentsResponse struct {
	Agents []Agent `json:"agents"`
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit enqueues a message and returns the stored copy.
func (c *Client) Submit(ctx context.Context, msg Message) (Message, error) {
	resp, err := c.postJSON(ctx, "/api/messages", msg)
	if err != nil {
		return Message{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return Message{}, apiError("submit", resp)
	}
	var out Message
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Message{}, err
	}
	return out, nil
}

// Claim asks for the oldest pending message. Returns (nil, nil) when the
// queue is empty.
func (c *Client) Claim(ctx context.Context, agent string) (*Message, error) {
	resp, err := c.postJSON(ctx, "/api/claims", map[string]string{"agent": agent})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("claim", resp)
	}
	var out Message
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress reports in-flight state. Returns (nil, nil) when the server
// answers 409, meaning ownership was lost and the update dropped.
func (c *Client) Progress(ctx context.Context, id, state string) (*Message, error) {
	return c.messageAction(ctx, id, "progress", map[string]string{"state": state})
}

// Complete finishes a message with a result payload.
func (c *Client) Complete(ctx context.Context, id, result string) (*Message, error) {
	return c.messageAction(ctx, id, "complete", map[string]string{"result": result})
}

// Fail finishes a message with an error description.
func (c *Client) Fail(ctx context.Context, id, errMsg string) (*Message, error) {
	return c.messageAction(ctx, id, "fail", map[string]string{"error": errMsg})
}

func (c *Client) messageAction(ctx context.Context, id, action string, payload any) (*Message, error) {
	resp, err := c.postJSON(ctx, "/api/messages/"+url.PathEscape(id)+"/"+action, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(action, resp)
	}
	var out Message
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Message fetches one message by ID; nil when not found.
func (c *Client) Message(ctx context.Context, id string) (*Message, error) {
	resp, err := c.get(ctx, "/api/messages/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("get message", resp)
	}
	var out Message
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Messages lists a date's messages in queue order.
func (c *Client) Messages(ctx context.Context, date string) ([]Message, error) {
	resp, err := c.get(ctx, "/api/messages?date="+url.QueryEscape(date))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("list messages", resp)
	}
	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Heartbeat reports liveness, optionally naming the message being worked.
func (c *Client) Heartbeat(ctx context.Context, agentID, activeMessageID string) (Agent, error) {
	payload := map[string]string{}
	if activeMessageID != "" {
		payload["active_message_id"] = activeMessageID
	}
	resp, err := c.postJSON(ctx, "/api/agents/"+url.PathEscape(agentID)+"/heartbeat", payload)
	if err != nil {
		return Agent{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Agent{}, apiError("heartbeat", resp)
	}
	var out Agent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Agent{}, err
	}
	return out, nil
}

// Agents lists agents with a recent heartbeat.
func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	resp, err := c.get(ctx, "/api/agents")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("list agents", resp)
	}
	var out agentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

func apiError(op string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%s failed: %d: %s", op, resp.StatusCode, body.Error)
	}
	return fmt.Errorf("%s failed: %d", op, resp.StatusCode)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return c.HTTP.Do(req)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	return c.HTTP.Do(req)
}

func (c *Client) applyHeaders(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}
