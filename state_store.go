package clientauth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateGuestKeySuffix   = "guest"
	stateProfileKeySuffix = "profile"

	profileRecordVersionV1 = 1
)

var (
	errStateRedisUnavailable = errors.New("local state redis unavailable")
	errProfileRecordCorrupt  = errors.New("profile record corrupt")
)

// localStateStore persists the two pieces of local state that survive process
// restart: the guest-mode flag and the serialized profile mirror. Both live
// under fixed keys; there is no per-user keyspace because the layer caches
// exactly one user.
type localStateStore struct {
	redis      redis.UniversalClient
	prefix     string
	profileTTL time.Duration
}

func newLocalStateStore(redisClient redis.UniversalClient, cfg LocalStateConfig) *localStateStore {
	return &localStateStore{
		redis:      redisClient,
		prefix:     cfg.RedisPrefix,
		profileTTL: cfg.ProfileTTL,
	}
}

func (s *localStateStore) key(suffix string) string {
	return s.prefix + ":" + suffix
}

func (s *localStateStore) GuestFlag(ctx context.Context) (bool, error) {
	val, err := s.redis.Get(ctx, s.key(stateGuestKeySuffix)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", errStateRedisUnavailable, err)
	}
	return val == "1", nil
}

func (s *localStateStore) SetGuestFlag(ctx context.Context) error {
	if err := s.redis.Set(ctx, s.key(stateGuestKeySuffix), "1", 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", errStateRedisUnavailable, err)
	}
	return nil
}

func (s *localStateStore) ClearGuestFlag(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(stateGuestKeySuffix)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errStateRedisUnavailable, err)
	}
	return nil
}

func (s *localStateStore) SaveProfile(ctx context.Context, record *ProfileRecord) error {
	encoded, err := encodeProfileRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(stateProfileKeySuffix), encoded, s.profileTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", errStateRedisUnavailable, err)
	}
	return nil
}

// LoadProfile returns (nil, nil) when no record is persisted. Corrupt or
// unreadable bytes are a cache miss, not an error; the bad key is dropped
// best-effort.
func (s *localStateStore) LoadProfile(ctx context.Context) (*ProfileRecord, error) {
	data, err := s.redis.Get(ctx, s.key(stateProfileKeySuffix)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStateRedisUnavailable, err)
	}

	record, err := decodeProfileRecord(data)
	if err != nil {
		_ = s.redis.Del(ctx, s.key(stateProfileKeySuffix)).Err()
		return nil, nil
	}
	return record, nil
}

func (s *localStateStore) ClearProfile(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(stateProfileKeySuffix)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errStateRedisUnavailable, err)
	}
	return nil
}

// Clear drops every persisted key. Called from SignOut and ClearCache.
func (s *localStateStore) Clear(ctx context.Context) error {
	keys := []string{
		s.key(stateGuestKeySuffix),
		s.key(stateProfileKeySuffix),
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", errStateRedisUnavailable, err)
	}
	return nil
}

func encodeProfileRecord(record *ProfileRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(profileRecordVersionV1)

	if record.IsPublic {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt.Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.UpdatedAt.Unix()); err != nil {
		return nil, err
	}

	for _, field := range []string{record.UserID, record.DisplayName, record.Bio, record.AvatarURL} {
		if len(field) > 65535 {
			return nil, errors.New("profile record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeProfileRecord(data []byte) (*ProfileRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errProfileRecordCorrupt
	}
	if version != profileRecordVersionV1 {
		return nil, errProfileRecordCorrupt
	}

	public, err := reader.ReadByte()
	if err != nil {
		return nil, errProfileRecordCorrupt
	}

	var createdAt, updatedAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, errProfileRecordCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &updatedAt); err != nil {
		return nil, errProfileRecordCorrupt
	}

	fields := make([]string, 4)
	for i := range fields {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, errProfileRecordCorrupt
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, errProfileRecordCorrupt
		}
		fields[i] = string(raw)
	}

	if reader.Len() != 0 {
		return nil, errProfileRecordCorrupt
	}

	record := &ProfileRecord{
		UserID:      fields[0],
		DisplayName: fields[1],
		Bio:         fields[2],
		AvatarURL:   fields[3],
		IsPublic:    public == 1,
		CreatedAt:   time.Unix(createdAt, 0).UTC(),
		UpdatedAt:   time.Unix(updatedAt, 0).UTC(),
	}
	if record.UserID == "" {
		return nil, errProfileRecordCorrupt
	}
	return record, nil
}
