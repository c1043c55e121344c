package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/logger"
)

const requestTimeout = 15 * time.Second

// Client talks to the platform's REST API. All calls carry the session's
// bearer token; none retry internally.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        logger.Module("api"),
	}
}

// DirectoryPayload is the response of GET /connections.
type DirectoryPayload struct {
	UserID       string              `json:"userId"`
	Connections  []ConnectionPayload `json:"connections"`
	UnreadByRoom map[string]int      `json:"unreadByRoom"`
}

type ConnectionPayload struct {
	ConnectionID    string    `json:"connectionId"`
	RoomName        string    `json:"roomName"`
	PartnerID       string    `json:"partnerId"`
	PartnerName     string    `json:"partnerName"`
	Avatar          string    `json:"avatar"`
	Status          string    `json:"status"`
	LastMessageText string    `json:"text"`
	LastMessageAt   time.Time `json:"timestamp"`
	CreatedAt       time.Time `json:"createdAt"`
}

type unreadCountEntry struct {
	RoomName string `json:"_id"`
	Count    int    `json:"count"`
}

type uploadResponse struct {
	FileURL string `json:"fileUrl"`
}

// Connections fetches the full connection directory and its unread map.
func (c *Client) Connections(ctx context.Context, session domain.Session) (*DirectoryPayload, error) {
	var payload DirectoryPayload
	if err := c.getJSON(ctx, session, "/connections", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// UnreadCounts fetches the aggregate unread counts keyed by room name.
func (c *Client) UnreadCounts(ctx context.Context, session domain.Session) (map[string]int, error) {
	var entries []unreadCountEntry
	if err := c.getJSON(ctx, session, "/unread-messages-count", &entries); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.RoomName] = e.Count
	}
	return counts, nil
}

// MarkAsRead tells the server all messages in the room have been read.
func (c *Client) MarkAsRead(ctx context.Context, session domain.Session, roomName string) error {
	body, err := json.Marshal(map[string]string{"roomName": roomName})
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, session, http.MethodPost, "/messages/markAsRead", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.checkStatus(resp)
}

// UploadAttachment uploads a file and returns its durable URL.
func (c *Client) UploadAttachment(ctx context.Context, session domain.Session, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, session, http.MethodPost, "/project/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	var upload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if upload.FileURL == "" {
		return "", fmt.Errorf("upload response missing fileUrl")
	}
	return upload.FileURL, nil
}

func (c *Client) newRequest(ctx context.Context, session domain.Session, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	return resp, nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 300:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, resp.Request.URL.Path)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, session domain.Session, path string, out interface{}) error {
	req, err := c.newRequest(ctx, session, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
