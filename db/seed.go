package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	"schoolhub-server-go/models"
)

// SeedIfEmpty loads the demo school when no class exists yet. It reports
// whether seeding ran.
func (s *RedisService) SeedIfEmpty(ctx context.Context) (bool, error) {
	count, err := s.Client.SCard(ctx, classesKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("could not check for existing data (key %s): %w", classesKey, err)
	}
	if count > 0 {
		log.Printf("Found existing class data (key '%s', count %d). Skipping demo data.", classesKey, count)
		return false, nil
	}
	log.Printf("No classes found in Redis (key '%s'). Adding demo data...", classesKey)
	return true, s.SeedDemoData(ctx)
}

// SeedDemoData adds two teachers, three non-overlapping classes and a handful
// of enrolled students. Individual failures are logged and skipped.
func (s *RedisService) SeedDemoData(ctx context.Context) error {
	teachers := []models.Teacher{
		{ID: "T_DEMO_MATH", Name: "Linh Tran", Subject: "Math", SalaryPerSession: 300000},
		{ID: "T_DEMO_ENG", Name: "Sam Carter", Subject: "English", SalaryPerSession: 350000},
	}
	for _, t := range teachers {
		if _, err := s.AddTeacher(ctx, t); err != nil {
			log.Printf("Error adding demo teacher %s: %v", t.ID, err)
		}
	}

	classes := []models.Clazz{
		{
			ID: "C_DEMO_MATH7", Name: "Math 7", Subject: "Math", TeacherID: "T_DEMO_MATH", Room: "A1",
			TuitionPerSession: 150000,
			Schedule: []models.ScheduleSlot{
				{Day: models.Monday, Start: "17:30", End: "19:00"},
				{Day: models.Thursday, Start: "17:30", End: "19:00"},
			},
		},
		{
			ID: "C_DEMO_MATH9", Name: "Math 9", Subject: "Math", TeacherID: "T_DEMO_MATH", Room: "A1",
			TuitionPerSession: 180000,
			Schedule: []models.ScheduleSlot{
				{Day: models.Monday, Start: "19:00", End: "20:30"},
			},
		},
		{
			ID: "C_DEMO_ENG", Name: "English Starters", Subject: "English", TeacherID: "T_DEMO_ENG", Room: "B2",
			TuitionPerSession: 200000,
			Schedule: []models.ScheduleSlot{
				{Day: models.Tuesday, Start: "18:00", End: "19:30"},
				{Day: models.Saturday, Start: "09:00", End: "10:30", Room: "A1"},
			},
		},
	}
	for _, c := range classes {
		if _, err := s.AddClass(ctx, c, false); err != nil {
			log.Printf("Error adding demo class %s: %v", c.ID, err)
		}
	}

	enrollments := map[string][]models.Student{
		"C_DEMO_MATH7": {
			{ID: "S_DEMO_001", Name: "An Nguyen", ParentName: "Hoa Nguyen", ParentPhone: "0901000001"},
			{ID: "S_DEMO_002", Name: "Bella Ho", ParentName: "Minh Ho", ParentPhone: "0901000002"},
		},
		"C_DEMO_MATH9": {
			{ID: "S_DEMO_003", Name: "Chris Le", ParentName: "Thu Le", ParentPhone: "0901000003"},
		},
		"C_DEMO_ENG": {
			{ID: "S_DEMO_001"},
			{ID: "S_DEMO_004", Name: "Dana Pham", ParentName: "Khoa Pham", ParentPhone: "0901000004"},
		},
	}
	for _, c := range classes {
		for _, st := range enrollments[c.ID] {
			if st.Name != "" {
				if _, err := s.AddStudent(ctx, st); err != nil {
					log.Printf("Error adding demo student %s: %v", st.ID, err)
					continue
				}
			}
			if err := s.Enroll(ctx, c.ID, st.ID); err != nil {
				log.Printf("Error enrolling demo student %s in %s: %v", st.ID, c.ID, err)
			}
		}
	}

	log.Println("Demo data added.")
	return nil
}

// EnsureAdmin creates the bootstrap admin account unless the username is taken
func (s *RedisService) EnsureAdmin(ctx context.Context, username, passwordHash string) (*models.User, error) {
	existing, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	user, err := s.CreateUser(ctx, models.User{Username: username, PasswordHash: passwordHash, Role: models.RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin account: %w", err)
	}
	log.Printf("Created admin account %q", user.Username)
	return user, nil
}
