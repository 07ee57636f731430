package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"schoolhub-server-go/models"
	"schoolhub-server-go/schedule"
)

// ConflictError is returned when a class schedule clashes with existing classes
type ConflictError struct {
	Conflicts []schedule.Conflict
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		return "schedule conflict: " + e.Conflicts[0].String()
	}
	return fmt.Sprintf("%d schedule conflicts, first: %s", len(e.Conflicts), e.Conflicts[0].String())
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func (s *RedisService) validateClass(ctx context.Context, clazz *models.Clazz) error {
	clazz.Name = strings.TrimSpace(clazz.Name)
	clazz.Room = strings.TrimSpace(clazz.Room)
	if clazz.Name == "" {
		return fmt.Errorf("%w: class name cannot be empty", ErrInvalid)
	}
	if clazz.TuitionPerSession < 0 {
		return fmt.Errorf("%w: tuition per session cannot be negative", ErrInvalid)
	}
	if err := schedule.Validate(*clazz); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if clazz.TeacherID != "" {
		teacher, err := s.GetTeacherByID(ctx, clazz.TeacherID)
		if err != nil {
			return err
		}
		if teacher == nil {
			return fmt.Errorf("%w: teacher %s does not exist", ErrInvalid, clazz.TeacherID)
		}
	}
	return nil
}

// writeClass stores the class hash; enrollment is kept in its own sets
func writeClass(ctx context.Context, pipe redis.Pipeliner, clazz models.Clazz) error {
	clazz.StudentIDs = nil
	pipe.SAdd(ctx, classesKey, clazz.ID)
	return putEntity(ctx, pipe, getClassInfoKey(clazz.ID), clazz)
}

// --- Class Operations ---

// AddClass validates and stores a new class. Unless force is set, a class whose
// schedule clashes with another class is rejected with a *ConflictError.
func (s *RedisService) AddClass(ctx context.Context, clazz models.Clazz, force bool) (*models.Clazz, error) {
	if err := s.validateClass(ctx, &clazz); err != nil {
		return nil, err
	}
	if clazz.ID == "" {
		clazz.ID = newID()
	} else {
		exists, err := s.ClassExists(ctx, clazz.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: class %s already exists", ErrConflict, clazz.ID)
		}
	}
	if !force {
		conflicts, err := s.CheckConflicts(ctx, clazz)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			return nil, &ConflictError{Conflicts: conflicts}
		}
	}

	clazz.CreatedAt = s.now().UTC()
	clazz.UpdatedAt = clazz.CreatedAt
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeClass(ctx, pipe, clazz)
	})
	if err != nil {
		log.Printf("Error adding class %s: %v", clazz.ID, err)
		return nil, fmt.Errorf("failed to add class to Redis: %w", err)
	}
	log.Printf("Added class: %s (%s)", clazz.Name, clazz.ID)
	s.publish(ctx, "class", clazz.ID, models.OpCreate)
	clazz.StudentIDs = []string{}
	return &clazz, nil
}

// GetClassByID retrieves a class by its ID, or nil when it does not exist
func (s *RedisService) GetClassByID(ctx context.Context, classID string) (*models.Clazz, error) {
	var clazz models.Clazz
	found, err := s.getEntity(ctx, getClassInfoKey(classID), &clazz)
	if err != nil {
		log.Printf("Error getting class %s: %v", classID, err)
		return nil, err
	}
	if !found {
		return nil, nil
	}
	clazz.StudentIDs, err = s.members(ctx, getClassStudentsKey(classID))
	if err != nil {
		return nil, err
	}
	return &clazz, nil
}

// GetAllClasses retrieves all classes ordered by name
func (s *RedisService) GetAllClasses(ctx context.Context) ([]models.Clazz, error) {
	classIDs, err := s.members(ctx, classesKey)
	if err != nil {
		log.Printf("Error getting all class IDs: %v", err)
		return nil, err
	}
	classes, err := loadAll[models.Clazz](ctx, s, classIDs, getClassInfoKey)
	if err != nil {
		return nil, err
	}

	pipe := s.Client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(classes))
	for i := range classes {
		cmds[i] = pipe.SMembers(ctx, getClassStudentsKey(classes[i].ID))
	}
	if len(classes) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to load class enrollments: %w", err)
		}
	}
	for i := range classes {
		ids, _ := cmds[i].Result()
		sort.Strings(ids)
		classes[i].StudentIDs = ids
	}

	sort.SliceStable(classes, func(i, j int) bool {
		return strings.ToLower(classes[i].Name) < strings.ToLower(classes[j].Name)
	})
	return classes, nil
}

// GetClassesByTeacher lists the classes whose regular teacher is teacherID
func (s *RedisService) GetClassesByTeacher(ctx context.Context, teacherID string) ([]models.Clazz, error) {
	all, err := s.GetAllClasses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Clazz, 0)
	for _, c := range all {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ClassExists checks if a class ID exists in the classes set
func (s *RedisService) ClassExists(ctx context.Context, classID string) (bool, error) {
	exists, err := s.Client.SIsMember(ctx, classesKey, classID).Result()
	if err != nil {
		log.Printf("Error checking existence for class %s: %v", classID, err)
		return false, fmt.Errorf("failed to check class existence: %w", err)
	}
	return exists, nil
}

// UpdateClass merges patch into the stored class and re-runs validation and,
// unless force is set, the conflict check.
func (s *RedisService) UpdateClass(ctx context.Context, classID string, patch map[string]interface{}, force bool) (*models.Clazz, error) {
	clazz, err := s.GetClassByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if clazz == nil {
		return nil, fmt.Errorf("%w: class %s", ErrNotFound, classID)
	}
	students := clazz.StudentIDs
	if err := mergePatch(patch, clazz); err != nil {
		return nil, err
	}
	if err := s.validateClass(ctx, clazz); err != nil {
		return nil, err
	}
	if !force {
		conflicts, err := s.CheckConflicts(ctx, *clazz)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			return nil, &ConflictError{Conflicts: conflicts}
		}
	}

	clazz.UpdatedAt = s.now().UTC()
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeClass(ctx, pipe, *clazz)
	})
	if err != nil {
		log.Printf("Error updating class %s: %v", classID, err)
		return nil, fmt.Errorf("failed to update class in Redis: %w", err)
	}
	s.publish(ctx, "class", classID, models.OpUpdate)
	clazz.StudentIDs = students
	return clazz, nil
}

// DeleteClass removes a class together with its sessions and enrollments
func (s *RedisService) DeleteClass(ctx context.Context, classID string) error {
	exists, err := s.ClassExists(ctx, classID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: class %s", ErrNotFound, classID)
	}
	studentIDs, err := s.members(ctx, getClassStudentsKey(classID))
	if err != nil {
		return err
	}
	sessionIDs, err := s.members(ctx, getClassSessionsKey(classID))
	if err != nil {
		return err
	}

	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sid := range studentIDs {
			pipe.SRem(ctx, getStudentClassesKey(sid), classID)
		}
		for _, id := range sessionIDs {
			pipe.Del(ctx, getSessionInfoKey(id))
		}
		pipe.Del(ctx, getClassInfoKey(classID), getClassStudentsKey(classID), getClassSessionsKey(classID))
		pipe.SRem(ctx, classesKey, classID)
		return nil
	})
	if err != nil {
		log.Printf("Error deleting class %s: %v", classID, err)
		return fmt.Errorf("failed to delete class from Redis: %w", err)
	}
	log.Printf("Deleted class %s (%d sessions, %d enrollments)", classID, len(sessionIDs), len(studentIDs))
	s.publish(ctx, "class", classID, models.OpDelete)
	return nil
}

// CheckConflicts compares the candidate schedule against every stored class
func (s *RedisService) CheckConflicts(ctx context.Context, candidate models.Clazz) ([]schedule.Conflict, error) {
	classes, err := s.GetAllClasses(ctx)
	if err != nil {
		return nil, err
	}
	return schedule.Check(candidate, classes), nil
}

// AllConflicts lists every clash between stored classes
func (s *RedisService) AllConflicts(ctx context.Context) ([]schedule.Conflict, error) {
	classes, err := s.GetAllClasses(ctx)
	if err != nil {
		return nil, err
	}
	return schedule.DetectAll(classes), nil
}
