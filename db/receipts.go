package db

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"schoolhub-server-go/models"
	"schoolhub-server-go/stats"
)

const (
	KindTuition = "tuition"
	KindSalary  = "salary"

	// MonthLayout is the wire format of billing months
	MonthLayout = "2006-01"
)

// TuitionRequest asks for a tuition receipt. UnitPrice defaults to the class tuition per session.
type TuitionRequest struct {
	StudentID string   `json:"studentId" binding:"required"`
	ClassID   string   `json:"classId" binding:"required"`
	Month     string   `json:"month" binding:"required,month"`
	UnitPrice *float64 `json:"unitPrice" binding:"omitempty,gte=0"`
	Discount  float64  `json:"discount" binding:"gte=0"`
	Note      string   `json:"note"`
}

// SalaryRequest asks for a salary receipt. Rate defaults to the teacher's salary per session.
type SalaryRequest struct {
	TeacherID string   `json:"teacherId" binding:"required"`
	Month     string   `json:"month" binding:"required,month"`
	Rate      *float64 `json:"rate" binding:"omitempty,gte=0"`
	Bonus     float64  `json:"bonus" binding:"gte=0"`
	Deduction float64  `json:"deduction" binding:"gte=0"`
	Note      string   `json:"note"`
}

// ReceiptFilter narrows receipt listings; empty fields match everything
type ReceiptFilter struct {
	Month     string
	StudentID string
	ClassID   string
	TeacherID string
	Paid      *bool
}

func validMonth(month string) error {
	if _, err := time.Parse(MonthLayout, month); err != nil {
		return fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalid, month)
	}
	return nil
}

// nextReceiptNumber allocates the next number of the month, e.g. HP-202609-0001
func (s *RedisService) nextReceiptNumber(ctx context.Context, kind, month string) (string, error) {
	seq, err := s.Client.Incr(ctx, getReceiptSeqKey(kind, month)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to allocate receipt number: %w", err)
	}
	prefix := "HP"
	if kind == KindSalary {
		prefix = "SL"
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, strings.ReplaceAll(month, "-", ""), seq), nil
}

// --- Tuition ---

// CreateTuitionReceipt bills a student for the sessions of a class they attended in a month.
// Only one receipt per student, class and month may exist.
func (s *RedisService) CreateTuitionReceipt(ctx context.Context, req TuitionRequest) (*models.TuitionReceipt, error) {
	if err := validMonth(req.Month); err != nil {
		return nil, err
	}
	if req.Discount < 0 {
		return nil, fmt.Errorf("%w: discount cannot be negative", ErrInvalid)
	}
	clazz, err := s.GetClassByID(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	if clazz == nil {
		return nil, fmt.Errorf("%w: class %s", ErrNotFound, req.ClassID)
	}
	student, err := s.GetStudentByID(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, req.StudentID)
	}

	existing, err := s.ListTuitionReceipts(ctx, ReceiptFilter{Month: req.Month, StudentID: req.StudentID, ClassID: req.ClassID})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: receipt %s already bills %s for %s", ErrConflict, existing[0].Number, student.Name, req.Month)
	}

	sessions, err := s.ListSessionsByClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	unit := clazz.TuitionPerSession
	if req.UnitPrice != nil {
		unit = *req.UnitPrice
	}
	if unit < 0 {
		return nil, fmt.Errorf("%w: unit price cannot be negative", ErrInvalid)
	}
	billable := stats.BillableSessions(req.StudentID, stats.FilterMonth(sessions, req.Month))

	number, err := s.nextReceiptNumber(ctx, KindTuition, req.Month)
	if err != nil {
		return nil, err
	}
	receipt := models.TuitionReceipt{
		ID:        newID(),
		Number:    number,
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Month:     req.Month,
		Sessions:  billable,
		UnitPrice: unit,
		Discount:  req.Discount,
		Amount:    stats.TuitionAmount(billable, unit, req.Discount),
		Note:      req.Note,
		CreatedAt: s.now().UTC(),
	}
	if err := s.saveReceipt(ctx, KindTuition, receipt.ID, receipt, models.OpCreate); err != nil {
		return nil, err
	}
	log.Printf("Created tuition receipt %s for student %s (%d sessions, %.2f)", receipt.Number, receipt.StudentID, billable, receipt.Amount)
	return &receipt, nil
}

// GetTuitionReceipt retrieves a tuition receipt, or nil
func (s *RedisService) GetTuitionReceipt(ctx context.Context, id string) (*models.TuitionReceipt, error) {
	var r models.TuitionReceipt
	found, err := s.getEntity(ctx, getReceiptKey(KindTuition, id), &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// ListTuitionReceipts lists tuition receipts matching the filter, newest month first
func (s *RedisService) ListTuitionReceipts(ctx context.Context, f ReceiptFilter) ([]models.TuitionReceipt, error) {
	ids, err := s.members(ctx, getReceiptsKey(KindTuition))
	if err != nil {
		return nil, err
	}
	all, err := loadAll[models.TuitionReceipt](ctx, s, ids, func(id string) string { return getReceiptKey(KindTuition, id) })
	if err != nil {
		return nil, err
	}
	out := make([]models.TuitionReceipt, 0, len(all))
	for _, r := range all {
		if (f.Month == "" || r.Month == f.Month) &&
			(f.StudentID == "" || r.StudentID == f.StudentID) &&
			(f.ClassID == "" || r.ClassID == f.ClassID) &&
			(f.Paid == nil || r.Paid == *f.Paid) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// SetTuitionPaid marks a tuition receipt paid (stamping the time) or unpaid
func (s *RedisService) SetTuitionPaid(ctx context.Context, id string, paid bool) (*models.TuitionReceipt, error) {
	r, err := s.GetTuitionReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: tuition receipt %s", ErrNotFound, id)
	}
	r.Paid, r.PaidAt = paid, s.paidAt(paid)
	if err := s.saveReceipt(ctx, KindTuition, id, *r, models.OpUpdate); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteTuitionReceipt removes a tuition receipt
func (s *RedisService) DeleteTuitionReceipt(ctx context.Context, id string) error {
	return s.deleteReceipt(ctx, KindTuition, id)
}

// --- Salary ---

// CreateSalaryReceipt pays a teacher for every session credited to them in a month
func (s *RedisService) CreateSalaryReceipt(ctx context.Context, req SalaryRequest) (*models.SalaryReceipt, error) {
	if err := validMonth(req.Month); err != nil {
		return nil, err
	}
	if req.Bonus < 0 || req.Deduction < 0 {
		return nil, fmt.Errorf("%w: bonus and deduction cannot be negative", ErrInvalid)
	}
	teacher, err := s.GetTeacherByID(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}
	if teacher == nil {
		return nil, fmt.Errorf("%w: teacher %s", ErrNotFound, req.TeacherID)
	}
	existing, err := s.ListSalaryReceipts(ctx, ReceiptFilter{Month: req.Month, TeacherID: req.TeacherID})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: receipt %s already pays %s for %s", ErrConflict, existing[0].Number, teacher.Name, req.Month)
	}

	taught, err := s.TaughtSessionsInMonth(ctx, req.TeacherID, req.Month)
	if err != nil {
		return nil, err
	}
	rate := teacher.SalaryPerSession
	if req.Rate != nil {
		rate = *req.Rate
	}
	if rate < 0 {
		return nil, fmt.Errorf("%w: rate cannot be negative", ErrInvalid)
	}

	number, err := s.nextReceiptNumber(ctx, KindSalary, req.Month)
	if err != nil {
		return nil, err
	}
	receipt := models.SalaryReceipt{
		ID:        newID(),
		Number:    number,
		TeacherID: req.TeacherID,
		Month:     req.Month,
		Sessions:  taught,
		Rate:      rate,
		Bonus:     req.Bonus,
		Deduction: req.Deduction,
		Amount:    stats.SalaryAmount(taught, rate, req.Bonus, req.Deduction),
		Note:      req.Note,
		CreatedAt: s.now().UTC(),
	}
	if err := s.saveReceipt(ctx, KindSalary, receipt.ID, receipt, models.OpCreate); err != nil {
		return nil, err
	}
	log.Printf("Created salary receipt %s for teacher %s (%d sessions, %.2f)", receipt.Number, receipt.TeacherID, taught, receipt.Amount)
	return &receipt, nil
}

// TaughtSessionsInMonth counts the sessions credited to a teacher across all classes
func (s *RedisService) TaughtSessionsInMonth(ctx context.Context, teacherID, month string) (int, error) {
	classes, err := s.GetAllClasses(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range classes {
		sessions, err := s.ListSessionsByClass(ctx, c.ID)
		if err != nil {
			return 0, err
		}
		total += stats.TaughtSessions(teacherID, c, stats.FilterMonth(sessions, month))
	}
	return total, nil
}

// GetSalaryReceipt retrieves a salary receipt, or nil
func (s *RedisService) GetSalaryReceipt(ctx context.Context, id string) (*models.SalaryReceipt, error) {
	var r models.SalaryReceipt
	found, err := s.getEntity(ctx, getReceiptKey(KindSalary, id), &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// ListSalaryReceipts lists salary receipts matching the filter, newest month first
func (s *RedisService) ListSalaryReceipts(ctx context.Context, f ReceiptFilter) ([]models.SalaryReceipt, error) {
	ids, err := s.members(ctx, getReceiptsKey(KindSalary))
	if err != nil {
		return nil, err
	}
	all, err := loadAll[models.SalaryReceipt](ctx, s, ids, func(id string) string { return getReceiptKey(KindSalary, id) })
	if err != nil {
		return nil, err
	}
	out := make([]models.SalaryReceipt, 0, len(all))
	for _, r := range all {
		if (f.Month == "" || r.Month == f.Month) &&
			(f.TeacherID == "" || r.TeacherID == f.TeacherID) &&
			(f.Paid == nil || r.Paid == *f.Paid) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// SetSalaryPaid marks a salary receipt paid or unpaid
func (s *RedisService) SetSalaryPaid(ctx context.Context, id string, paid bool) (*models.SalaryReceipt, error) {
	r, err := s.GetSalaryReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: salary receipt %s", ErrNotFound, id)
	}
	r.Paid, r.PaidAt = paid, s.paidAt(paid)
	if err := s.saveReceipt(ctx, KindSalary, id, *r, models.OpUpdate); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteSalaryReceipt removes a salary receipt
func (s *RedisService) DeleteSalaryReceipt(ctx context.Context, id string) error {
	return s.deleteReceipt(ctx, KindSalary, id)
}

// --- shared ---

func (s *RedisService) paidAt(paid bool) *time.Time {
	if !paid {
		return nil
	}
	t := s.now().UTC()
	return &t
}

func (s *RedisService) saveReceipt(ctx context.Context, kind, id string, receipt interface{}, op string) error {
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, getReceiptsKey(kind), id)
		return putEntity(ctx, pipe, getReceiptKey(kind, id), receipt)
	})
	if err != nil {
		log.Printf("Error saving %s receipt %s: %v", kind, id, err)
		return fmt.Errorf("failed to save receipt to Redis: %w", err)
	}
	s.publish(ctx, kind, id, op)
	return nil
}

func (s *RedisService) deleteReceipt(ctx context.Context, kind, id string) error {
	exists, err := s.Client.SIsMember(ctx, getReceiptsKey(kind), id).Result()
	if err != nil {
		return fmt.Errorf("failed to check receipt existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s receipt %s", ErrNotFound, kind, id)
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, getReceiptKey(kind, id))
		pipe.SRem(ctx, getReceiptsKey(kind), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete receipt from Redis: %w", err)
	}
	s.publish(ctx, kind, id, models.OpDelete)
	return nil
}
