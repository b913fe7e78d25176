package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const defaultAvatarPath = "/avatars"

// RESTBlobStore implements [clientauth.BlobStore] against an avatar upload
// resource: PUT stores the raw bytes and answers with the retrievable URL,
// DELETE removes the stored asset.
type RESTBlobStore struct {
	serverURL string
	path      string
	http      *http.Client
}

// NewRESTBlobStore creates a store rooted at serverURL.
func NewRESTBlobStore(serverURL string, httpClient *http.Client) (*RESTBlobStore, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", serverURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RESTBlobStore{
		serverURL: fmt.Sprintf("%s://%s", u.Scheme, u.Host),
		path:      defaultAvatarPath,
		http:      httpClient,
	}, nil
}

// Upload stores image for userID and returns its URL. Encoding and resizing
// are the backend's concern; the bytes travel as-is.
func (s *RESTBlobStore) Upload(ctx context.Context, userID string, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		s.serverURL+s.path+"/"+url.PathEscape(userID),
		bytes.NewReader(image),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload avatar: %s", readErrorBody(resp))
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("upload avatar: invalid response: %w", err)
	}
	if payload.URL == "" {
		return "", fmt.Errorf("upload avatar: empty url in response")
	}
	return payload.URL, nil
}

// Delete removes the stored avatar for userID. Deleting an absent avatar is
// not an error.
func (s *RESTBlobStore) Delete(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodDelete,
		s.serverURL+s.path+"/"+url.PathEscape(userID),
		nil,
	)
	if err != nil {
		return err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK &&
		resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete avatar: %s", readErrorBody(resp))
	}
	return nil
}
