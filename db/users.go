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

const passwordHashField = "passwordHash"

func (s *RedisService) validateUser(ctx context.Context, user *models.User) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalid)
	}
	if !user.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, user.Role)
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("%w: password is required", ErrInvalid)
	}
	switch user.Role {
	case models.RoleTeacher:
		if user.TeacherID == "" {
			return fmt.Errorf("%w: teacher accounts must link a teacher", ErrInvalid)
		}
		teacher, err := s.GetTeacherByID(ctx, user.TeacherID)
		if err != nil {
			return err
		}
		if teacher == nil {
			return fmt.Errorf("%w: teacher %s does not exist", ErrInvalid, user.TeacherID)
		}
	case models.RoleParent:
		for _, id := range user.StudentIDs {
			ok, err := s.StudentExists(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: student %s does not exist", ErrInvalid, id)
			}
		}
	}
	return nil
}

// CreateUser stores a login account. The password must already be hashed.
func (s *RedisService) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	if err := s.validateUser(ctx, &user); err != nil {
		return nil, err
	}
	user.ID = newID()
	user.CreatedAt = s.now().UTC()

	claimed, err := s.Client.SetNX(ctx, getUsernameKey(user.Username), user.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve username: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: username %s is taken", ErrConflict, user.Username)
	}

	if err := s.saveUser(ctx, user); err != nil {
		s.Client.Del(ctx, getUsernameKey(user.Username))
		return nil, err
	}
	log.Printf("Created %s user %s", user.Role, user.Username)
	s.publish(ctx, "user", user.ID, models.OpCreate)
	return &user, nil
}

func (s *RedisService) saveUser(ctx context.Context, user models.User) error {
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, usersKey, user.ID)
		if err := putEntity(ctx, pipe, getUserInfoKey(user.ID), user); err != nil {
			return err
		}
		pipe.HSet(ctx, getUserInfoKey(user.ID), passwordHashField, user.PasswordHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save user to Redis: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user including the password hash, or nil
func (s *RedisService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	found, err := s.getEntity(ctx, getUserInfoKey(userID), &user)
	if err != nil || !found {
		return nil, err
	}
	hash, err := s.Client.HGet(ctx, getUserInfoKey(userID), passwordHashField).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read password hash: %w", err)
	}
	user.PasswordHash = hash
	return &user, nil
}

// GetUserByUsername resolves a username (case-insensitive), or nil
func (s *RedisService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := s.Client.Get(ctx, getUsernameKey(strings.ToLower(strings.TrimSpace(username)))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetAllUsers lists accounts ordered by username
func (s *RedisService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	ids, err := s.members(ctx, usersKey)
	if err != nil {
		return nil, err
	}
	users, err := loadAll[models.User](ctx, s, ids, getUserInfoKey)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// UpdateUserLinks replaces the teacher/student links of an account and, when
// passwordHash is non-empty, its password
func (s *RedisService) UpdateUserLinks(ctx context.Context, userID, teacherID string, studentIDs []string, passwordHash string) (*models.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	user.TeacherID = teacherID
	user.StudentIDs = studentIDs
	if passwordHash != "" {
		user.PasswordHash = passwordHash
	}
	if err := s.validateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.saveUser(ctx, *user); err != nil {
		return nil, err
	}
	s.publish(ctx, "user", userID, models.OpUpdate)
	return user, nil
}

// DeleteUser removes an account and releases its username
func (s *RedisService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, getUserInfoKey(userID), getUsernameKey(user.Username))
		pipe.SRem(ctx, usersKey, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete user from Redis: %w", err)
	}
	s.publish(ctx, "user", userID, models.OpDelete)
	return nil
}
