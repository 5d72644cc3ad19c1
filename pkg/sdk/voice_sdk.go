package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
)

// CreateSession starts a new conversation session
func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	var out ApiResponse[Session]
	if err := c.doJSON(ctx, http.MethodPost, "/api/voice/sessions", req, &out); err != nil {
		return nil, err
	}

	if out.Data.ID == "" {
		return nil, fmt.Errorf("no id returned")
	}

	return &out.Data, nil
}

// ListMessages returns up to limit of the newest messages of a session, oldest first.
// A limit of 0 uses the server default.
func (c *Client) ListMessages(ctx context.Context, sessionID string, limit int) (*MessageList, error) {
	path := fmt.Sprintf("/api/voice/sessions/%s/messages", url.PathEscape(sessionID))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var out ApiResponse[MessageList]
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	return &out.Data, nil
}

// SendTurn uploads one utterance and returns the spoken reply. An empty
// sessionID lets the server start a new session.
func (c *Client) SendTurn(ctx context.Context, sessionID, filename, contentType string, audio io.Reader) (*TurnResponse, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if sessionID != "" {
		if err := form.WriteField("session_id", sessionID); err != nil {
			return nil, err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", contentType)

	part, err := form.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/voice/turns", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply audio: %w", err)
	}

	transcript, err := url.PathUnescape(resp.Header.Get(HeaderTranscript))
	if err != nil {
		transcript = resp.Header.Get(HeaderTranscript)
	}

	return &TurnResponse{
		RequestID:   resp.Header.Get(HeaderRequestID),
		SessionID:   resp.Header.Get(HeaderSessionID),
		Transcript:  transcript,
		Persisted:   resp.Header.Get(HeaderTurnPersisted) == "true",
		TurnError:   resp.Header.Get(HeaderTurnError),
		ContentType: resp.Header.Get("Content-Type"),
		Audio:       data,
	}, nil
}
