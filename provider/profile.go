package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fennwick/clientauth"
)

const defaultProfilePath = "/profiles"

// RESTProfileStore implements [clientauth.ProfileStore] over a JSON REST
// resource: POST creates, GET fetches (404 means absent), PATCH updates
// partial fields.
type RESTProfileStore struct {
	serverURL string
	path      string
	http      *http.Client
}

// NewRESTProfileStore creates a store rooted at serverURL. Pass an
// [http.Client] carrying [HTTPSessionProvider.Transport] so requests ride
// the current session.
func NewRESTProfileStore(serverURL string, httpClient *http.Client) (*RESTProfileStore, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", serverURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RESTProfileStore{
		serverURL: fmt.Sprintf("%s://%s", u.Scheme, u.Host),
		path:      defaultProfilePath,
		http:      httpClient,
	}, nil
}

// profilePayload is the wire form of a profile record.
type profilePayload struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	IsPublic    bool      `json:"is_public"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *profilePayload) record() *clientauth.ProfileRecord {
	return &clientauth.ProfileRecord{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		IsPublic:    p.IsPublic,
		AvatarURL:   p.AvatarURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RESTProfileStore) Create(ctx context.Context, userID, displayName, bio string) (*clientauth.ProfileRecord, error) {
	body, err := json.Marshal(map[string]string{
		"user_id":      userID,
		"display_name": displayName,
		"bio":          bio,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.do(ctx, http.MethodPost, s.path, body)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create profile: %s", readErrorBody(resp))
	}
	return decodeProfile(resp.Body)
}

// Fetch describes the fetch operation and its observable behavior.
//
// Fetch may return an error when input validation, dependency calls, or security checks fail.
// Fetch does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RESTProfileStore) Fetch(ctx context.Context, userID string) (*clientauth.ProfileRecord, error) {
	resp, err := s.do(ctx, http.MethodGet, s.path+"/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch profile: %s", readErrorBody(resp))
	}
	return decodeProfile(resp.Body)
}

// FetchMany describes the fetchmany operation and its observable behavior.
//
// FetchMany may return an error when input validation, dependency calls, or security checks fail.
// FetchMany does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RESTProfileStore) FetchMany(ctx context.Context, userIDs []string) (map[string]*clientauth.ProfileRecord, error) {
	if len(userIDs) == 0 {
		return map[string]*clientauth.ProfileRecord{}, nil
	}

	query := url.Values{"ids": []string{strings.Join(userIDs, ",")}}
	resp, err := s.do(ctx, http.MethodGet, s.path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch profiles: %s", readErrorBody(resp))
	}

	var payloads []profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, fmt.Errorf("fetch profiles: invalid response: %w", err)
	}

	records := make(map[string]*clientauth.ProfileRecord, len(payloads))
	for i := range payloads {
		records[payloads[i].UserID] = payloads[i].record()
	}
	return records, nil
}

// Update describes the update operation and its observable behavior.
//
// Update may return an error when input validation, dependency calls, or security checks fail.
// Update does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RESTProfileStore) Update(ctx context.Context, userID string, fields clientauth.ProfileUpdate) (*clientauth.ProfileRecord, error) {
	partial := map[string]any{}
	if fields.DisplayName != nil {
		partial["display_name"] = *fields.DisplayName
	}
	if fields.Bio != nil {
		partial["bio"] = *fields.Bio
	}
	if fields.IsPublic != nil {
		partial["is_public"] = *fields.IsPublic
	}
	if fields.AvatarURL != nil {
		partial["avatar_url"] = *fields.AvatarURL
	}

	body, err := json.Marshal(partial)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(ctx, http.MethodPatch, s.path+"/"+url.PathEscape(userID), body)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("update profile: %s", readErrorBody(resp))
	}
	return decodeProfile(resp.Body)
}

func (s *RESTProfileStore) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.serverURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.http.Do(req)
}

func decodeProfile(r io.Reader) (*clientauth.ProfileRecord, error) {
	var payload profilePayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid profile response: %w", err)
	}
	return payload.record(), nil
}
