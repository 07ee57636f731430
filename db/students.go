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
)

func validateStudent(student *models.Student) error {
	student.Name = strings.TrimSpace(student.Name)
	if student.Name == "" {
		return fmt.Errorf("%w: student name cannot be empty", ErrInvalid)
	}
	return nil
}

func writeStudent(ctx context.Context, pipe redis.Pipeliner, student models.Student) error {
	student.ClassIDs = nil
	pipe.SAdd(ctx, studentsKey, student.ID)
	return putEntity(ctx, pipe, getStudentInfoKey(student.ID), student)
}

// --- Student Operations ---

// AddStudent stores a new student, allocating an ID when none is given
func (s *RedisService) AddStudent(ctx context.Context, student models.Student) (*models.Student, error) {
	if err := validateStudent(&student); err != nil {
		return nil, err
	}
	if student.ID == "" {
		student.ID = newID()
	} else {
		exists, err := s.StudentExists(ctx, student.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: student %s already exists", ErrConflict, student.ID)
		}
	}
	student.CreatedAt = s.now().UTC()

	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeStudent(ctx, pipe, student)
	})
	if err != nil {
		log.Printf("Error adding student %s: %v", student.ID, err)
		return nil, fmt.Errorf("failed to add student to Redis: %w", err)
	}
	s.publish(ctx, "student", student.ID, models.OpCreate)
	student.ClassIDs = []string{}
	return &student, nil
}

// StudentExists checks if a student ID exists in the students set
func (s *RedisService) StudentExists(ctx context.Context, studentID string) (bool, error) {
	exists, err := s.Client.SIsMember(ctx, studentsKey, studentID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check student existence: %w", err)
	}
	return exists, nil
}

// GetStudentByID retrieves a student by their ID, or nil when they do not exist
func (s *RedisService) GetStudentByID(ctx context.Context, studentID string) (*models.Student, error) {
	var student models.Student
	found, err := s.getEntity(ctx, getStudentInfoKey(studentID), &student)
	if err != nil {
		log.Printf("Error getting student %s: %v", studentID, err)
		return nil, err
	}
	if !found {
		return nil, nil
	}
	student.ClassIDs, err = s.members(ctx, getStudentClassesKey(studentID))
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func sortStudents(students []models.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return strings.ToLower(students[i].Name) < strings.ToLower(students[j].Name)
	})
}

// GetAllStudents retrieves every student ordered by name
func (s *RedisService) GetAllStudents(ctx context.Context) ([]models.Student, error) {
	ids, err := s.members(ctx, studentsKey)
	if err != nil {
		return nil, err
	}
	return s.getStudents(ctx, ids)
}

// GetStudentsByClassID retrieves all students enrolled in a class, ordered by name
func (s *RedisService) GetStudentsByClassID(ctx context.Context, classID string) ([]models.Student, error) {
	ids, err := s.members(ctx, getClassStudentsKey(classID))
	if err != nil {
		log.Printf("Error getting student IDs for class %s: %v", classID, err)
		return nil, err
	}
	return s.getStudents(ctx, ids)
}

// GetStudentsByIDs retrieves the listed students; unknown IDs are skipped
func (s *RedisService) GetStudentsByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	return s.getStudents(ctx, ids)
}

func (s *RedisService) getStudents(ctx context.Context, ids []string) ([]models.Student, error) {
	students, err := loadAll[models.Student](ctx, s, ids, getStudentInfoKey)
	if err != nil {
		return nil, err
	}
	if len(students) > 0 {
		pipe := s.Client.Pipeline()
		cmds := make([]*redis.StringSliceCmd, len(students))
		for i := range students {
			cmds[i] = pipe.SMembers(ctx, getStudentClassesKey(students[i].ID))
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to load student enrollments: %w", err)
		}
		for i := range students {
			classIDs, _ := cmds[i].Result()
			sort.Strings(classIDs)
			students[i].ClassIDs = classIDs
		}
	}
	sortStudents(students)
	return students, nil
}

// UpdateStudent merges patch into the stored student
func (s *RedisService) UpdateStudent(ctx context.Context, studentID string, patch map[string]interface{}) (*models.Student, error) {
	student, err := s.GetStudentByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, studentID)
	}
	classIDs := student.ClassIDs
	if err := mergePatch(patch, student); err != nil {
		return nil, err
	}
	if err := validateStudent(student); err != nil {
		return nil, err
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeStudent(ctx, pipe, *student)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update student in Redis: %w", err)
	}
	s.publish(ctx, "student", studentID, models.OpUpdate)
	student.ClassIDs = classIDs
	return student, nil
}

// DeleteStudent removes a student and their enrollments. Attendance records in
// past sessions are kept as history.
func (s *RedisService) DeleteStudent(ctx context.Context, studentID string) error {
	exists, err := s.StudentExists(ctx, studentID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: student %s", ErrNotFound, studentID)
	}
	classIDs, err := s.members(ctx, getStudentClassesKey(studentID))
	if err != nil {
		return err
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, cid := range classIDs {
			pipe.SRem(ctx, getClassStudentsKey(cid), studentID)
		}
		pipe.Del(ctx, getStudentInfoKey(studentID), getStudentClassesKey(studentID))
		pipe.SRem(ctx, studentsKey, studentID)
		return nil
	})
	if err != nil {
		log.Printf("Error deleting student %s: %v", studentID, err)
		return fmt.Errorf("failed to delete student from Redis: %w", err)
	}
	s.publish(ctx, "student", studentID, models.OpDelete)
	return nil
}

// --- Enrollment ---

// Enroll adds a student to a class; enrolling twice is a no-op
func (s *RedisService) Enroll(ctx context.Context, classID, studentID string) error {
	if err := s.requireClassAndStudent(ctx, classID, studentID); err != nil {
		return err
	}
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, getClassStudentsKey(classID), studentID)
		pipe.SAdd(ctx, getStudentClassesKey(studentID), classID)
		return nil
	})
	if err != nil {
		log.Printf("Error enrolling student %s in class %s: %v", studentID, classID, err)
		return fmt.Errorf("failed to enroll student: %w", err)
	}
	s.publish(ctx, "enrollment", classID+"/"+studentID, models.OpCreate)
	return nil
}

// Unenroll removes a student from a class
func (s *RedisService) Unenroll(ctx context.Context, classID, studentID string) error {
	enrolled, err := s.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return err
	}
	if !enrolled {
		return fmt.Errorf("%w: student %s is not enrolled in class %s", ErrNotFound, studentID, classID)
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, getClassStudentsKey(classID), studentID)
		pipe.SRem(ctx, getStudentClassesKey(studentID), classID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to unenroll student: %w", err)
	}
	s.publish(ctx, "enrollment", classID+"/"+studentID, models.OpDelete)
	return nil
}

// IsEnrolled reports whether the student is in the class
func (s *RedisService) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	ok, err := s.Client.SIsMember(ctx, getClassStudentsKey(classID), studentID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return ok, nil
}

func (s *RedisService) requireClassAndStudent(ctx context.Context, classID, studentID string) error {
	exists, err := s.ClassExists(ctx, classID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: class %s", ErrNotFound, classID)
	}
	exists, err = s.StudentExists(ctx, studentID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: student %s", ErrNotFound, studentID)
	}
	return nil
}

// GetRandomStudent selects a random student from a class, or nil when the class is empty
func (s *RedisService) GetRandomStudent(ctx context.Context, classID string) (*models.Student, error) {
	randomStudentID, err := s.Client.SRandMember(ctx, getClassStudentsKey(classID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		log.Printf("Error getting random student ID for class %s: %v", classID, err)
		return nil, fmt.Errorf("failed to get random student ID from Redis for class %s: %w", classID, err)
	}
	if randomStudentID == "" {
		return nil, nil
	}
	return s.GetStudentByID(ctx, randomStudentID)
}
