package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"schoolhub-server-go/models"
	"schoolhub-server-go/stats"
)

// DateLayout is the wire format of session dates
const DateLayout = "2006-01-02"

// validateSession checks the date, records and teacher of a session. Records
// must belong to enrolled students, except students already recorded in
// previous (who may have left the class since).
func (s *RedisService) validateSession(ctx context.Context, session *models.AttendanceSession, previous map[string]models.AttendanceRecord) error {
	if _, err := time.Parse(DateLayout, session.Date); err != nil {
		return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalid, session.Date)
	}
	enrolled, err := s.members(ctx, getClassStudentsKey(session.ClassID))
	if err != nil {
		return err
	}
	roster := make(map[string]bool, len(enrolled))
	for _, id := range enrolled {
		roster[id] = true
	}
	for id := range previous {
		roster[id] = true
	}
	for studentID, r := range session.Records {
		if !roster[studentID] {
			return fmt.Errorf("%w: student %s is not enrolled in class %s", ErrInvalid, studentID, session.ClassID)
		}
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("%w: record for %s: %v", ErrInvalid, studentID, err)
		}
	}
	if session.TeacherID != "" {
		teacher, err := s.GetTeacherByID(ctx, session.TeacherID)
		if err != nil {
			return err
		}
		if teacher == nil {
			return fmt.Errorf("%w: teacher %s does not exist", ErrInvalid, session.TeacherID)
		}
	}
	return nil
}

func validateRecord(r models.AttendanceRecord) error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.Score != nil && (*r.Score < 0 || *r.Score > models.MaxScore) {
		return fmt.Errorf("score %.2f outside 0..%.0f", *r.Score, models.MaxScore)
	}
	return nil
}

// AddSession records a class meeting. The session is credited to the class
// teacher unless a (substitute) teacher is given.
func (s *RedisService) AddSession(ctx context.Context, session models.AttendanceSession) (*models.AttendanceSession, error) {
	clazz, err := s.GetClassByID(ctx, session.ClassID)
	if err != nil {
		return nil, err
	}
	if clazz == nil {
		return nil, fmt.Errorf("%w: class %s", ErrNotFound, session.ClassID)
	}
	if session.TeacherID == "" {
		session.TeacherID = clazz.TeacherID
	}
	if session.Records == nil {
		session.Records = map[string]models.AttendanceRecord{}
	}
	if err := s.validateSession(ctx, &session, nil); err != nil {
		return nil, err
	}
	session.ID = newID()
	session.CreatedAt = s.now().UTC()

	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, getClassSessionsKey(session.ClassID), session.ID)
		return putEntity(ctx, pipe, getSessionInfoKey(session.ID), session)
	})
	if err != nil {
		log.Printf("Error adding session for class %s: %v", session.ClassID, err)
		return nil, fmt.Errorf("failed to add session to Redis: %w", err)
	}
	log.Printf("Added session %s for class %s on %s (%d records)", session.ID, session.ClassID, session.Date, len(session.Records))
	s.publish(ctx, "session", session.ID, models.OpCreate)
	return &session, nil
}

// GetSession retrieves a session, or nil when it does not exist
func (s *RedisService) GetSession(ctx context.Context, sessionID string) (*models.AttendanceSession, error) {
	var session models.AttendanceSession
	found, err := s.getEntity(ctx, getSessionInfoKey(sessionID), &session)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if session.Records == nil {
		session.Records = map[string]models.AttendanceRecord{}
	}
	return &session, nil
}

// ListSessionsByClass returns the sessions of a class ordered by date
func (s *RedisService) ListSessionsByClass(ctx context.Context, classID string) ([]models.AttendanceSession, error) {
	ids, err := s.members(ctx, getClassSessionsKey(classID))
	if err != nil {
		return nil, err
	}
	sessions, err := loadAll[models.AttendanceSession](ctx, s, ids, getSessionInfoKey)
	if err != nil {
		return nil, err
	}
	stats.SortSessions(sessions)
	return sessions, nil
}

// SessionsByClass loads the sessions of each class, keyed by class ID
func (s *RedisService) SessionsByClass(ctx context.Context, classIDs []string) (map[string][]models.AttendanceSession, error) {
	out := make(map[string][]models.AttendanceSession, len(classIDs))
	for _, id := range classIDs {
		sessions, err := s.ListSessionsByClass(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = sessions
	}
	return out, nil
}

// ListAllSessions returns the sessions of every class
func (s *RedisService) ListAllSessions(ctx context.Context) ([]models.AttendanceSession, error) {
	classIDs, err := s.members(ctx, classesKey)
	if err != nil {
		return nil, err
	}
	byClass, err := s.SessionsByClass(ctx, classIDs)
	if err != nil {
		return nil, err
	}
	var all []models.AttendanceSession
	for _, id := range classIDs {
		all = append(all, byClass[id]...)
	}
	stats.SortSessions(all)
	return all, nil
}

// UpdateSession merges patch into the stored session. The class cannot change.
func (s *RedisService) UpdateSession(ctx context.Context, sessionID string, patch map[string]interface{}) (*models.AttendanceSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	classID, previous := session.ClassID, copyRecords(session.Records)
	if err := mergePatch(patch, session); err != nil {
		return nil, err
	}
	session.ClassID = classID
	if err := s.validateSession(ctx, session, previous); err != nil {
		return nil, err
	}
	return session, s.saveSession(ctx, *session, models.OpUpdate)
}

// SetRecord writes one student's record into a session
func (s *RedisService) SetRecord(ctx context.Context, sessionID, studentID string, record models.AttendanceRecord) (*models.AttendanceSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	previous := copyRecords(session.Records)
	session.Records[studentID] = record
	if err := s.validateSession(ctx, session, previous); err != nil {
		return nil, err
	}
	return session, s.saveSession(ctx, *session, models.OpUpdate)
}

func copyRecords(in map[string]models.AttendanceRecord) map[string]models.AttendanceRecord {
	out := make(map[string]models.AttendanceRecord, len(in))
	for id, r := range in {
		out[id] = r
	}
	return out
}

func (s *RedisService) saveSession(ctx context.Context, session models.AttendanceSession, op string) error {
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return putEntity(ctx, pipe, getSessionInfoKey(session.ID), session)
	})
	if err != nil {
		log.Printf("Error saving session %s: %v", session.ID, err)
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}
	s.publish(ctx, "session", session.ID, op)
	return nil
}

// DeleteSession removes a session
func (s *RedisService) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, getSessionInfoKey(sessionID))
		pipe.SRem(ctx, getClassSessionsKey(session.ClassID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	s.publish(ctx, "session", sessionID, models.OpDelete)
	return nil
}
