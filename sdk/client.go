package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HeaderUserID carries the caller identity; in production it is installed by
// the auth proxy, the client sets it directly for trusted in-cluster use.
const HeaderUserID = "X-User-ID"

type Client struct {
	baseURL    string
	userID     int64
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(baseURL string, userID int64, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set(HeaderUserID, strconv.FormatInt(c.userID, 10))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	return c.do(ctx, http.MethodPost, path, reader, "application/json", out)
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

func (c *Client) Chats(ctx context.Context) ([]Conversation, error) {
	var chats []Conversation
	if err := c.get(ctx, "/api/chats", &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *Client) StartChat(ctx context.Context, otherUserID int64) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	err := c.post(ctx, "/api/chats/start", map[string]int64{"user_id": otherUserID}, &resp)
	return resp.ID, err
}

func (c *Client) StartGroup(ctx context.Context, title string, memberIDs []int64) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	err := c.post(ctx, "/api/chats/start-group", map[string]any{
		"title":      title,
		"member_ids": memberIDs,
	}, &resp)
	return resp.ID, err
}

func (c *Client) Messages(ctx context.Context, chatID int64, days int) ([]Message, error) {
	path := fmt.Sprintf("/api/chats/%d/messages", chatID)
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var messages []Message
	if err := c.get(ctx, path, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) Around(ctx context.Context, chatID, messageID int64, before, after int) ([]Message, error) {
	q := url.Values{}
	q.Set("messageId", strconv.FormatInt(messageID, 10))
	if before > 0 {
		q.Set("before", strconv.Itoa(before))
	}
	if after > 0 {
		q.Set("after", strconv.Itoa(after))
	}
	var messages []Message
	err := c.get(ctx, fmt.Sprintf("/api/chats/%d/around?%s", chatID, q.Encode()), &messages)
	return messages, err
}

func (c *Client) Search(ctx context.Context, chatID int64, term string, limit, offset int) ([]Message, error) {
	q := url.Values{}
	q.Set("q", term)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var messages []Message
	err := c.get(ctx, fmt.Sprintf("/api/chats/%d/search?%s", chatID, q.Encode()), &messages)
	return messages, err
}

func (c *Client) Members(ctx context.Context, chatID int64) ([]Member, error) {
	var members []Member
	err := c.get(ctx, fmt.Sprintf("/api/chats/%d/members", chatID), &members)
	return members, err
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, content string) (*Message, error) {
	var message Message
	err := c.post(ctx, fmt.Sprintf("/api/chats/%d/message", chatID), map[string]string{"content": content}, &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// FileUpload is one file for Attach.
type FileUpload struct {
	Name   string
	Reader io.Reader
}

func (c *Client) Attach(ctx context.Context, chatID int64, content string, files []FileUpload) (*Message, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	if content != "" {
		if err := form.WriteField("content", content); err != nil {
			return nil, err
		}
	}
	for _, file := range files {
		part, err := form.CreateFormFile("files", file.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	var message Message
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/attach", chatID), &buf, form.FormDataContentType(), &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) MarkRead(ctx context.Context, chatID, lastMessageID int64) error {
	return c.post(ctx, fmt.Sprintf("/api/chats/%d/read", chatID), map[string]int64{"last_message_id": lastMessageID}, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	var resp struct {
		Updated int `json:"updated"`
	}
	err := c.post(ctx, "/api/chats/read-all", nil, &resp)
	return resp.Updated, err
}

func (c *Client) Invite(ctx context.Context, chatID int64, userIDs []int64) ([]int64, error) {
	var resp struct {
		InvitedUserIDs []int64 `json:"invited_user_ids"`
	}
	err := c.post(ctx, fmt.Sprintf("/api/chats/%d/invite", chatID), map[string][]int64{"user_ids": userIDs}, &resp)
	return resp.InvitedUserIDs, err
}

func (c *Client) Leave(ctx context.Context, chatID int64) error {
	return c.post(ctx, fmt.Sprintf("/api/chats/%d/leave", chatID), nil, nil)
}
