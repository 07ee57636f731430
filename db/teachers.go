package db

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"schoolhub-server-go/models"
)

func validateTeacher(teacher *models.Teacher) error {
	teacher.Name = strings.TrimSpace(teacher.Name)
	if teacher.Name == "" {
		return fmt.Errorf("%w: teacher name cannot be empty", ErrInvalid)
	}
	if teacher.SalaryPerSession < 0 {
		return fmt.Errorf("%w: salary per session cannot be negative", ErrInvalid)
	}
	return nil
}

// AddTeacher stores a new teacher, allocating an ID when none is given
func (s *RedisService) AddTeacher(ctx context.Context, teacher models.Teacher) (*models.Teacher, error) {
	if err := validateTeacher(&teacher); err != nil {
		return nil, err
	}
	if teacher.ID == "" {
		teacher.ID = newID()
	} else {
		existing, err := s.GetTeacherByID(ctx, teacher.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: teacher %s already exists", ErrConflict, teacher.ID)
		}
	}
	teacher.CreatedAt = s.now().UTC()

	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, teachersKey, teacher.ID)
		return putEntity(ctx, pipe, getTeacherInfoKey(teacher.ID), teacher)
	})
	if err != nil {
		log.Printf("Error adding teacher %s: %v", teacher.ID, err)
		return nil, fmt.Errorf("failed to add teacher to Redis: %w", err)
	}
	s.publish(ctx, "teacher", teacher.ID, models.OpCreate)
	return &teacher, nil
}

// GetTeacherByID retrieves a teacher, or nil when they do not exist
func (s *RedisService) GetTeacherByID(ctx context.Context, teacherID string) (*models.Teacher, error) {
	var teacher models.Teacher
	found, err := s.getEntity(ctx, getTeacherInfoKey(teacherID), &teacher)
	if err != nil {
		log.Printf("Error getting teacher %s: %v", teacherID, err)
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &teacher, nil
}

// GetAllTeachers retrieves every teacher ordered by name
func (s *RedisService) GetAllTeachers(ctx context.Context) ([]models.Teacher, error) {
	ids, err := s.members(ctx, teachersKey)
	if err != nil {
		return nil, err
	}
	teachers, err := loadAll[models.Teacher](ctx, s, ids, getTeacherInfoKey)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(teachers, func(i, j int) bool {
		return strings.ToLower(teachers[i].Name) < strings.ToLower(teachers[j].Name)
	})
	return teachers, nil
}

// UpdateTeacher merges patch into the stored teacher
func (s *RedisService) UpdateTeacher(ctx context.Context, teacherID string, patch map[string]interface{}) (*models.Teacher, error) {
	teacher, err := s.GetTeacherByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if teacher == nil {
		return nil, fmt.Errorf("%w: teacher %s", ErrNotFound, teacherID)
	}
	if err := mergePatch(patch, teacher); err != nil {
		return nil, err
	}
	if err := validateTeacher(teacher); err != nil {
		return nil, err
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return putEntity(ctx, pipe, getTeacherInfoKey(teacherID), *teacher)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update teacher in Redis: %w", err)
	}
	s.publish(ctx, "teacher", teacherID, models.OpUpdate)
	return teacher, nil
}

// DeleteTeacher removes a teacher. A teacher still assigned to a class cannot be removed.
func (s *RedisService) DeleteTeacher(ctx context.Context, teacherID string) error {
	teacher, err := s.GetTeacherByID(ctx, teacherID)
	if err != nil {
		return err
	}
	if teacher == nil {
		return fmt.Errorf("%w: teacher %s", ErrNotFound, teacherID)
	}
	classes, err := s.GetClassesByTeacher(ctx, teacherID)
	if err != nil {
		return err
	}
	if len(classes) > 0 {
		return fmt.Errorf("%w: teacher %s still teaches %d class(es)", ErrConflict, teacherID, len(classes))
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, getTeacherInfoKey(teacherID))
		pipe.SRem(ctx, teachersKey, teacherID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete teacher from Redis: %w", err)
	}
	s.publish(ctx, "teacher", teacherID, models.OpDelete)
	return nil
}
