package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"schoolhub-server-go/models"
)

const (
	classesKey  = "classes"  // Set: all class IDs
	studentsKey = "students" // Set: all student IDs
	teachersKey = "teachers" // Set: all teacher IDs
	usersKey    = "users"    // Set: all user IDs

	classInfoPrefix   = "class:"   // Hash: class:{id}; Sets: class:{id}:students, class:{id}:sessions
	studentInfoPrefix = "student:" // Hash: student:{id}; Set: student:{id}:classes
	teacherInfoPrefix = "teacher:" // Hash: teacher:{id}
	sessionInfoPrefix = "session:" // Hash: session:{id}
	userInfoPrefix    = "user:"    // Hash: user:{id}
	usernamePrefix    = "username:"
	receiptPrefix     = "receipt:" // Hash: receipt:{kind}:{id}
	receiptsPrefix    = "receipts:"

	// ChangesChannel carries a JSON ChangeEvent for every write
	ChangesChannel = "changes"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when an entity fails validation
	ErrInvalid = errors.New("invalid")
	// ErrConflict is returned when a write collides with existing data
	ErrConflict = errors.New("conflict")
)

// RedisService handles operations with the Redis database
type RedisService struct {
	Client *redis.Client
	now    func() time.Time
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{
		Client: client,
		now:    time.Now,
	}
}

func getClassInfoKey(classID string) string     { return classInfoPrefix + classID }
func getClassStudentsKey(classID string) string { return classInfoPrefix + classID + ":students" }
func getClassSessionsKey(classID string) string { return classInfoPrefix + classID + ":sessions" }
func getStudentInfoKey(studentID string) string { return studentInfoPrefix + studentID }
func getStudentClassesKey(studentID string) string {
	return studentInfoPrefix + studentID + ":classes"
}
func getTeacherInfoKey(teacherID string) string { return teacherInfoPrefix + teacherID }
func getSessionInfoKey(sessionID string) string { return sessionInfoPrefix + sessionID }
func getUserInfoKey(userID string) string       { return userInfoPrefix + userID }
func getUsernameKey(username string) string     { return usernamePrefix + username }
func getReceiptKey(kind, id string) string      { return receiptPrefix + kind + ":" + id }
func getReceiptsKey(kind string) string         { return receiptsPrefix + kind }
func getReceiptSeqKey(kind, month string) string {
	return receiptsPrefix + kind + ":seq:" + month
}

// newID allocates a key for a pushed entity
func newID() string {
	return uuid.NewString()
}

// putEntity queues a full overwrite of the hash at key
func putEntity(ctx context.Context, pipe redis.Pipeliner, key string, v interface{}) error {
	fields, err := toHash(v)
	if err != nil {
		return err
	}
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
	}
	return nil
}

// getEntity loads the hash at key into out. It reports false when the hash does not exist.
func (s *RedisService) getEntity(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := s.Client.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s from Redis: %w", key, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := fromHash(data, out); err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return true, nil
}

// members returns the sorted members of a set; a missing set is empty
func (s *RedisService) members(ctx context.Context, key string) ([]string, error) {
	ids, err := s.Client.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read set %s from Redis: %w", key, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// loadAll fetches the hashes for ids in one pipeline. IDs whose hash has
// vanished are skipped and logged, the same way a partial listing is tolerated elsewhere.
func loadAll[T any](ctx context.Context, s *RedisService, ids []string, keyFn func(string) string) ([]T, error) {
	out := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	pipe := s.Client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, keyFn(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load entities from Redis: %w", err)
	}
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			log.Printf("Skipping %s: missing or unreadable (%v)", keyFn(ids[i]), err)
			continue
		}
		var v T
		if err := fromHash(data, &v); err != nil {
			log.Printf("Skipping %s: %v", keyFn(ids[i]), err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// publish announces a write on ChangesChannel. Failures are logged, not returned:
// the write itself already succeeded.
func (s *RedisService) publish(ctx context.Context, kind, id, op string) {
	evt := models.ChangeEvent{Kind: kind, ID: id, Op: op, At: s.now().UTC()}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("Error encoding change event for %s %s: %v", kind, id, err)
		return
	}
	if err := s.Client.Publish(ctx, ChangesChannel, payload).Err(); err != nil {
		log.Printf("Error publishing change event for %s %s: %v", kind, id, err)
	}
}

// Subscribe streams change events until ctx is cancelled. The returned channel
// is closed when the subscription ends.
func (s *RedisService) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	sub := s.Client.Subscribe(ctx, ChangesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ChangesChannel, err)
	}

	out := make(chan models.ChangeEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Printf("Ignoring malformed change event: %v", err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping checks the connection to Redis
func (s *RedisService) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// --- Utility ---

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(addr, password string, dbIndex int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}

	log.Printf("Successfully connected to Redis %s (DB %d)", addr, dbIndex)
	return rdb, nil
}
