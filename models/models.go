package models

import "time"

// Weekday is a lowercase three-letter day code ("mon" .. "sun")
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

// Weekdays lists the valid day codes in calendar order (Monday first)
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Valid reports whether d is one of the known day codes
func (d Weekday) Valid() bool {
	for _, w := range Weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// Index returns the position of d in Weekdays, or -1
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if d == w {
			return i
		}
	}
	return -1
}

// ScheduleSlot is one weekly meeting of a class
type ScheduleSlot struct {
	Day   Weekday `json:"day" binding:"required,weekday"`
	Start string  `json:"start" binding:"required,clock"` // "HH:MM"
	End   string  `json:"end" binding:"required,clock"`   // "HH:MM", exclusive
	Room  string  `json:"room,omitempty"`                 // Falls back to Class.Room when empty
}

// Clazz represents a scheduled course offering
type Clazz struct {
	ID                string         `json:"id"`
	Name              string         `json:"name" binding:"required"`
	Subject           string         `json:"subject,omitempty"`
	TeacherID         string         `json:"teacherId,omitempty"`
	Room              string         `json:"room,omitempty"`
	Schedule          []ScheduleSlot `json:"schedule,omitempty" binding:"dive"`
	TuitionPerSession float64        `json:"tuitionPerSession,omitempty" binding:"gte=0"`
	StudentIDs        []string       `json:"studentIds,omitempty"` // Derived from the enrollment set
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Student represents a student
type Student struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" binding:"required"`
	BirthDate   string    `json:"birthDate,omitempty" binding:"omitempty,ymd"`
	Phone       string    `json:"phone,omitempty"`
	ParentName  string    `json:"parentName,omitempty"`
	ParentPhone string    `json:"parentPhone,omitempty"`
	Note        string    `json:"note,omitempty"`
	ClassIDs    []string  `json:"classIds,omitempty"` // Derived from the enrollment set
	CreatedAt   time.Time `json:"createdAt"`
}

// Teacher represents a member of the teaching staff
type Teacher struct {
	ID               string    `json:"id"`
	Name             string    `json:"name" binding:"required"`
	Phone            string    `json:"phone,omitempty"`
	Email            string    `json:"email,omitempty" binding:"omitempty,email"`
	Subject          string    `json:"subject,omitempty"`
	SalaryPerSession float64   `json:"salaryPerSession,omitempty" binding:"gte=0"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AttendanceStatus is the presence state of a student in one session
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
	StatusExcused AttendanceStatus = "excused"
)

// Valid reports whether s is a known status
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusExcused:
		return true
	}
	return false
}

// Attended reports whether the student was in the room (present or late)
func (s AttendanceStatus) Attended() bool {
	return s == StatusPresent || s == StatusLate
}

// MaxScore is the top of the per-session grading scale
const MaxScore = 10.0

// AttendanceRecord is one student's entry in an attendance session
type AttendanceRecord struct {
	Status   AttendanceStatus `json:"status"`
	Score    *float64         `json:"score,omitempty"`
	Homework *bool            `json:"homework,omitempty"` // nil when no homework was checked
	Comment  string           `json:"comment,omitempty"`
}

// AttendanceSession is one meeting of a class
type AttendanceSession struct {
	ID        string                      `json:"id"`
	ClassID   string                      `json:"classId"`
	TeacherID string                      `json:"teacherId,omitempty"`
	Date      string                      `json:"date" binding:"required,ymd"` // "YYYY-MM-DD"
	Topic     string                      `json:"topic,omitempty"`
	Records   map[string]AttendanceRecord `json:"records,omitempty"` // Keyed by student ID
	CreatedAt time.Time                   `json:"createdAt"`
}

// TuitionReceipt bills a student for the sessions attended in one month of one class
type TuitionReceipt struct {
	ID        string     `json:"id"`
	Number    string     `json:"number"`
	StudentID string     `json:"studentId" binding:"required"`
	ClassID   string     `json:"classId" binding:"required"`
	Month     string     `json:"month" binding:"required,month"` // "YYYY-MM"
	Sessions  int        `json:"sessions"`
	UnitPrice float64    `json:"unitPrice" binding:"gte=0"`
	Discount  float64    `json:"discount,omitempty" binding:"gte=0"`
	Amount    float64    `json:"amount"`
	Paid      bool       `json:"paid"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SalaryReceipt pays a teacher for the sessions taught in one month
type SalaryReceipt struct {
	ID        string     `json:"id"`
	Number    string     `json:"number"`
	TeacherID string     `json:"teacherId" binding:"required"`
	Month     string     `json:"month" binding:"required,month"`
	Sessions  int        `json:"sessions"`
	Rate      float64    `json:"rate" binding:"gte=0"`
	Bonus     float64    `json:"bonus,omitempty" binding:"gte=0"`
	Deduction float64    `json:"deduction,omitempty" binding:"gte=0"`
	Amount    float64    `json:"amount"`
	Paid      bool       `json:"paid"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Role is the access level of a user account
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleParent
}

// User is a login account. Teacher accounts link to a Teacher, parent accounts to their children.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Stored in its own hash field
	Role         Role      `json:"role"`
	TeacherID    string    `json:"teacherId,omitempty"`
	StudentIDs   []string  `json:"studentIds,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasStudent reports whether the user is linked to the student
func (u *User) HasStudent(studentID string) bool {
	for _, id := range u.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Change operations carried by ChangeEvent
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeEvent is published on every write so listeners can refresh their views
type ChangeEvent struct {
	Kind string    `json:"kind"` // "class", "student", "teacher", "session", "tuition", "salary", "user", "enrollment"
	ID   string    `json:"id"`
	Op   string    `json:"op"`
	At   time.Time `json:"at"`
}
