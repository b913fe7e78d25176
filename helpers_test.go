package clientauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubSessionProvider struct {
	mu sync.Mutex

	current    *Session
	currentErr error

	sendErr error

	verifySession *Session
	verifyErr     error
	onVerify      func()

	exchangeSession *Session
	exchangeErr     error

	signOutErr error

	currentCalls  int
	sendCalls     int
	verifyCalls   int
	exchangeCalls int
	signOutCalls  int

	lastEmail string
	lastCode  string
}

func (p *stubSessionProvider) CurrentSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentCalls++
	if p.currentErr != nil {
		return nil, p.currentErr
	}
	if p.current == nil {
		return nil, nil
	}
	copied := *p.current
	return &copied, nil
}

func (p *stubSessionProvider) SendCode(ctx context.Context, email string) error {
	p.mu.Lock()
	p.sendCalls++
	p.lastEmail = email
	err := p.sendErr
	p.mu.Unlock()
	return err
}

func (p *stubSessionProvider) VerifyCode(ctx context.Context, email, code string) (*Session, error) {
	p.mu.Lock()
	p.verifyCalls++
	p.lastEmail = email
	p.lastCode = code
	hook := p.onVerify
	session := p.verifySession
	err := p.verifyErr
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	copied := *session
	return &copied, nil
}

func (p *stubSessionProvider) ExchangeFederatedCredential(ctx context.Context, providerToken string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCalls++
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	copied := *p.exchangeSession
	return &copied, nil
}

func (p *stubSessionProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutCalls++
	return p.signOutErr
}

type stubProfileStore struct {
	mu sync.Mutex

	records map[string]*ProfileRecord

	createErr error
	fetchErr  error
	updateErr error

	createCalls int
	fetchCalls  int
	updateCalls int

	now func() time.Time
}

func newStubProfileStore(now func() time.Time) *stubProfileStore {
	return &stubProfileStore{
		records: map[string]*ProfileRecord{},
		now:     now,
	}
}

func (s *stubProfileStore) Create(ctx context.Context, userID, displayName, bio string) (*ProfileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	record := &ProfileRecord{
		UserID:      userID,
		DisplayName: displayName,
		Bio:         bio,
		IsPublic:    true,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	s.records[userID] = record
	copied := *record
	return &copied, nil
}

func (s *stubProfileStore) Fetch(ctx context.Context, userID string) (*ProfileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	record, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *stubProfileStore) FetchMany(ctx context.Context, userIDs []string) (map[string]*ProfileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := map[string]*ProfileRecord{}
	for _, id := range userIDs {
		if record, ok := s.records[id]; ok {
			copied := *record
			out[id] = &copied
		}
	}
	return out, nil
}

func (s *stubProfileStore) Update(ctx context.Context, userID string, fields ProfileUpdate) (*ProfileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	record, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	if fields.DisplayName != nil {
		record.DisplayName = *fields.DisplayName
	}
	if fields.Bio != nil {
		record.Bio = *fields.Bio
	}
	if fields.IsPublic != nil {
		record.IsPublic = *fields.IsPublic
	}
	if fields.AvatarURL != nil {
		record.AvatarURL = *fields.AvatarURL
	}
	record.UpdatedAt = s.now()
	copied := *record
	return &copied, nil
}

type stubBlobStore struct {
	mu sync.Mutex

	url       string
	uploadErr error

	uploadCalls int
	deleteCalls int
}

func (s *stubBlobStore) Upload(ctx context.Context, userID string, image []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadCalls++
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	return s.url, nil
}

func (s *stubBlobStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	return nil
}

type testEnv struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	clock    *fakeClock
	provider *stubSessionProvider
	profiles *stubProfileStore
	blobs    *stubBlobStore
	sink     *ChannelSink
	client   *Client
}

// neverTick keeps the countdown goroutine quiet so tests drive time solely
// through the fake clock.
func neverTick(time.Duration) (<-chan time.Time, func()) {
	return make(chan time.Time), func() {}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clock := newFakeClock()

	env := &testEnv{
		mr:       mr,
		rdb:      rdb,
		clock:    clock,
		provider: &stubSessionProvider{},
		profiles: newStubProfileStore(clock.Now),
		blobs:    &stubBlobStore{url: "https://blobs.test/u1/avatar"},
		sink:     NewChannelSink(64),
	}

	builder := New().
		WithRedis(rdb).
		WithSessionProvider(env.provider).
		WithProfileStore(env.profiles).
		WithBlobStore(env.blobs).
		WithEventSink(env.sink).
		WithClock(clock.Now)
	builder.tickerFactory = neverTick

	client, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env.client = client

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return env
}

func (env *testEnv) signIn(t *testing.T, userID string) {
	t.Helper()
	err := env.client.CompleteSignIn(context.Background(), &Session{
		UserID:      userID,
		AccessToken: "at-" + userID,
		ExpiresAt:   env.clock.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CompleteSignIn failed: %v", err)
	}
}

func waitForEvent(t *testing.T, sink *ChannelSink, eventType string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("event %q not observed", eventType)
		}
	}
}
