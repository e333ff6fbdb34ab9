package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/pkg/jobs"
	"github.com/noah-isme/edu-center-api/pkg/middleware/requestid"
)

// Notification job kinds.
const (
	NotificationBulkEnrollment = "bulk_enrollment"
	NotificationTransfer       = "transfer"
)

// TransferContext links a bulk notification to the transfer that caused it.
type TransferContext struct {
	FromClassID  string `json:"fromClassId"`
	EnrollmentID string `json:"enrollmentId"`
	Reason       string `json:"reason,omitempty"`
}

// BulkEnrollmentNotice is delivered once per committed batch.
type BulkEnrollmentNotice struct {
	StudentIDs []string         `json:"studentIds"`
	ClassID    string           `json:"classId"`
	Transfer   *TransferContext `json:"transfer,omitempty"`
	RequestID  string           `json:"requestId,omitempty"`
}

// TransferNotice tells the student's guardians about a class change.
type TransferNotice struct {
	StudentID            string `json:"studentId"`
	FromClassID          string `json:"fromClassId"`
	ToClassID            string `json:"toClassId"`
	PreviousEnrollmentID string `json:"previousEnrollmentId"`
	EnrollmentID         string `json:"enrollmentId"`
	PreviousDeleted      bool   `json:"previousDeleted"`
	Reason               string `json:"reason,omitempty"`
	RequestID            string `json:"requestId,omitempty"`
}

// NotificationSink performs the actual outbound delivery.
type NotificationSink interface {
	Deliver(ctx context.Context, kind string, payload interface{}) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// NotificationService queues fire-and-forget notifications. It never blocks the caller and never
// reports delivery failures back to it.
type NotificationService struct {
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(queue jobEnqueuer, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, metrics: metrics, logger: logger}
}

// NotifyBulkEnrollment queues one notification for a whole batch.
func (s *NotificationService) NotifyBulkEnrollment(ctx context.Context, studentIDs []string, classID string, transfer *TransferContext) {
	if len(studentIDs) == 0 {
		return
	}
	ids := append([]string(nil), studentIDs...)
	s.enqueue(ctx, NotificationBulkEnrollment, BulkEnrollmentNotice{
		StudentIDs: ids,
		ClassID:    classID,
		Transfer:   transfer,
		RequestID:  requestid.FromContext(ctx),
	})
}

// NotifyTransfer queues a transfer notification.
func (s *NotificationService) NotifyTransfer(ctx context.Context, notice TransferNotice) {
	if notice.RequestID == "" {
		notice.RequestID = requestid.FromContext(ctx)
	}
	s.enqueue(ctx, NotificationTransfer, notice)
}

func (s *NotificationService) enqueue(ctx context.Context, kind string, payload interface{}) {
	if s == nil || s.queue == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: kind, Payload: payload, Enqueued: time.Now().UTC()}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.RecordNotification(kind, "dropped")
		s.logger.Warn("notification not queued",
			zap.String("kind", kind),
			zap.String("job_id", job.ID),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordNotification(kind, "queued")
}

// NotificationWorker hands queued notifications to the sink.
type NotificationWorker struct {
	sink    NotificationSink
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationWorker constructs a worker. A nil sink falls back to the logging sink.
func NewNotificationWorker(sink NotificationSink, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NewLogNotificationSink(logger)
	}
	return &NotificationWorker{sink: sink, metrics: metrics, logger: logger}
}

// Handle processes a queue job; returned errors are retried by the queue.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case NotificationBulkEnrollment, NotificationTransfer:
	default:
		w.logger.Warn("unknown notification kind dropped", zap.String("kind", job.Type), zap.String("job_id", job.ID))
		return nil
	}
	if err := w.sink.Deliver(ctx, job.Type, job.Payload); err != nil {
		w.metrics.RecordNotification(job.Type, "failed")
		return fmt.Errorf("deliver %s notification: %w", job.Type, err)
	}
	w.metrics.RecordNotification(job.Type, "delivered")
	return nil
}

// LogNotificationSink writes notifications to the structured log instead of an outbound channel.
type LogNotificationSink struct {
	logger *zap.Logger
}

// NewLogNotificationSink constructs the logging sink.
func NewLogNotificationSink(logger *zap.Logger) *LogNotificationSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotificationSink{logger: logger}
}

// Deliver logs the payload.
func (s *LogNotificationSink) Deliver(ctx context.Context, kind string, payload interface{}) error {
	s.logger.Info("notification", zap.String("kind", kind), zap.Any("payload", payload))
	return nil
}
