package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/pkg/database"
	"github.com/noah-isme/edu-center-api/pkg/jobs"
)

// schoolStub is an in-memory stand-in for the students, classes, enrollments and audit tables.
type schoolStub struct {
	mu          sync.Mutex
	students    map[string]*models.Student
	classes     map[string]*models.Class
	enrollments map[string]*models.Enrollment
	audits      []models.AuditLog
	seq         int
	createErrs  map[string]error
	studentErrs map[string]error
	auditErr    error
}

func newSchoolStub() *schoolStub {
	return &schoolStub{
		students:    map[string]*models.Student{},
		classes:     map[string]*models.Class{},
		enrollments: map[string]*models.Enrollment{},
		createErrs:  map[string]error{},
		studentErrs: map[string]error{},
	}
}

func (w *schoolStub) addStudent(id string, active bool) {
	w.students[id] = &models.Student{ID: id, FullName: "Student " + id, Active: active}
}

func (w *schoolStub) addClass(id string, status models.ClassStatus, max *int, timetable string) *models.Class {
	teacher := "teacher-1"
	class := &models.Class{
		ID:                id,
		Name:              "Class " + id,
		MaxStudents:       max,
		RecurringSchedule: types.JSONText(timetable),
		Status:            status,
		TeacherID:         &teacher,
	}
	w.classes[id] = class
	return class
}

func (w *schoolStub) addEnrollment(id, studentID, classID string, status models.EnrollmentStatus) {
	w.seq++
	w.enrollments[id] = &models.Enrollment{
		ID:         id,
		StudentID:  studentID,
		ClassID:    classID,
		Status:     status,
		EnrolledAt: time.Date(2024, 1, 1, 0, 0, 0, w.seq, time.UTC),
	}
}

func (w *schoolStub) sortedEnrollments() []*models.Enrollment {
	list := make([]*models.Enrollment, 0, len(w.enrollments))
	for _, e := range w.enrollments {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EnrolledAt.Before(list[j].EnrolledAt) })
	return list
}

func (w *schoolStub) countFor(studentID, classID string, statuses models.StatusSet) int {
	n := 0
	for _, e := range w.enrollments {
		if (studentID == "" || e.StudentID == studentID) && (classID == "" || e.ClassID == classID) && statuses.Contains(e.Status) {
			n++
		}
	}
	return n
}

type enrollmentStoreStub struct{ w *schoolStub }

func (s enrollmentStoreStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, e := range s.w.sortedEnrollments() {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (s enrollmentStoreStub) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	e, ok := s.w.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (s enrollmentStoreStub) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	e, ok := s.w.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := models.EnrollmentDetail{Enrollment: *e}
	if st, ok := s.w.students[e.StudentID]; ok {
		detail.StudentName = st.FullName
	}
	if c, ok := s.w.classes[e.ClassID]; ok {
		detail.ClassName = c.Name
		detail.ClassStatus = c.Status
	}
	return &detail, nil
}

func (s enrollmentStoreStub) ExistsInStatuses(ctx context.Context, exec sqlx.ExtContext, studentID, classID string, statuses models.StatusSet) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.countFor(studentID, classID, statuses) > 0, nil
}

func (s enrollmentStoreStub) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string, statuses models.StatusSet) (int, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.countFor("", classID, statuses), nil
}

func (s enrollmentStoreStub) ListScheduledByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string, statuses models.StatusSet, excludeClassID string) ([]models.ScheduledEnrollment, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.ScheduledEnrollment
	for _, e := range s.w.sortedEnrollments() {
		if e.StudentID != studentID || !statuses.Contains(e.Status) || (excludeClassID != "" && e.ClassID == excludeClassID) {
			continue
		}
		class := s.w.classes[e.ClassID]
		out = append(out, models.ScheduledEnrollment{
			EnrollmentID:      e.ID,
			ClassID:           class.ID,
			ClassName:         class.Name,
			RecurringSchedule: class.RecurringSchedule,
		})
	}
	return out, nil
}

func (s enrollmentStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if err := s.w.createErrs[enrollment.StudentID]; err != nil {
		return err
	}
	s.w.seq++
	if enrollment.ID == "" {
		enrollment.ID = fmt.Sprintf("enr-%d", s.w.seq)
	}
	clone := *enrollment
	clone.EnrolledAt = clone.EnrolledAt.Add(time.Duration(s.w.seq))
	s.w.enrollments[enrollment.ID] = &clone
	return nil
}

func (s enrollmentStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if _, ok := s.w.enrollments[enrollment.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *enrollment
	s.w.enrollments[enrollment.ID] = &clone
	return nil
}

func (s enrollmentStoreStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if _, ok := s.w.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.w.enrollments, id)
	return nil
}

type classStoreStub struct {
	w      *schoolStub
	locked []string
}

func (s *classStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	c, ok := s.w.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (s *classStoreStub) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error) {
	s.locked = append(s.locked, id)
	return s.FindByID(ctx, exec, id)
}

type studentStoreStub struct{ w *schoolStub }

func (s studentStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if err := s.w.studentErrs[id]; err != nil {
		return nil, err
	}
	st, ok := s.w.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *st
	return &clone, nil
}

type auditTrailStub struct{ w *schoolStub }

func (s auditTrailStub) Create(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.auditErr != nil {
		return s.w.auditErr
	}
	s.w.audits = append(s.w.audits, *log)
	return nil
}

// txStub runs the callback without a real transaction.
type txStub struct {
	calls int
	err   error
}

func (t *txStub) WithinTx(ctx context.Context, fn database.TxFunc) error {
	t.calls++
	if t.err != nil {
		return t.err
	}
	return fn(ctx, nil)
}

type notifierStub struct {
	bulk      [][]string
	transfers []TransferNotice
}

func (n *notifierStub) NotifyBulkEnrollment(ctx context.Context, studentIDs []string, classID string, transfer *TransferContext) {
	n.bulk = append(n.bulk, append([]string(nil), studentIDs...))
}

func (n *notifierStub) NotifyTransfer(ctx context.Context, notice TransferNotice) {
	n.transfers = append(n.transfers, notice)
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type engineHarness struct {
	world    *schoolStub
	classes  *classStoreStub
	tx       *txStub
	notifier *notifierStub
	service  *EnrollmentService
}

func newEngineHarness() *engineHarness {
	world := newSchoolStub()
	store := enrollmentStoreStub{w: world}
	classes := &classStoreStub{w: world}
	tx := &txStub{}
	notifier := &notifierStub{}
	svc := NewEnrollmentService(EnrollmentServiceParams{
		Enrollments: store,
		Classes:     classes,
		Students:    studentStoreStub{w: world},
		Audits:      auditTrailStub{w: world},
		Tx:          tx,
		Conflicts:   NewConflictService(store, classes, nil, nil),
		Capacity:    NewCapacityService(store, classes, nil),
		Notifier:    notifier,
		Config:      EnrollmentServiceConfig{DefaultSemester: "2024-S1"},
	})
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return &engineHarness{world: world, classes: classes, tx: tx, notifier: notifier, service: svc}
}

func seats(n int) *int { return &n }

const (
	mondayMorning  = `[{"day":"monday","start":"09:00","end":"10:30"}]`
	mondayLate     = `[{"dayOfWeek":"T2","startTime":"10:00","endTime":"11:00"}]`
	mondayTouching = `[{"day":2,"start":"10:30","end":"11:30"}]`
	fridayEvening  = `{"slots":[{"day":"fri","from":"18:00","to":"19:30"}]}`
)
