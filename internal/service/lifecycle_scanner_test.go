package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type calendarStub struct {
	starting map[string][]models.Class
	ending   map[string][]models.Class
	days     []string
}

func (c *calendarStub) ListStartingOn(ctx context.Context, day time.Time, statuses []models.ClassStatus) ([]models.Class, error) {
	key := day.Format("2006-01-02")
	c.days = append(c.days, "start:"+key)
	return c.starting[key], nil
}

func (c *calendarStub) ListEndingOn(ctx context.Context, day time.Time, statuses []models.ClassStatus) ([]models.Class, error) {
	key := day.Format("2006-01-02")
	c.days = append(c.days, "end:"+key)
	return c.ending[key], nil
}

type lockerStub struct {
	held     bool
	err      error
	acquired int
	released int
}

func (l *lockerStub) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, appErrors.Clone(appErrors.ErrLockHeld, "lock "+name+" already held")
	}
	l.acquired++
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type failingEmitter struct{}

func (failingEmitter) Emit(ctx context.Context, input models.AlertInput) (*models.Alert, bool, error) {
	return nil, false, appErrors.Infrastructure(errors.New("db down"), "failed to store alert")
}

var scanNow = time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)

func newScannerFixture() (*calendarStub, *alertStoreStub, *lockerStub, *LifecycleScanner) {
	calendar := &calendarStub{
		starting: map[string][]models.Class{
			"2024-03-04": {{ID: "c-start", Name: "Algebra"}},
		},
		ending: map[string][]models.Class{
			"2024-03-02": {{ID: "c-end", Name: "Poetry"}},
		},
	}
	store := newAlertStoreStub()
	locker := &lockerStub{}
	scanner := NewLifecycleScanner(calendar, NewAlertService(store, nil, nil, AlertServiceConfig{}), locker, nil, nil, LifecycleScannerConfig{
		StartThresholds: []int{7, 3, 1},
		EndThresholds:   []int{1},
	})
	return calendar, store, locker, scanner
}

func TestScanEmitsOncePerClassAndThreshold(t *testing.T) {
	calendar, store, locker, scanner := newScannerFixture()

	first, err := scanner.Scan(context.Background(), scanNow)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Emitted)
	assert.Equal(t, 0, first.Suppressed)

	second, err := scanner.Scan(context.Background(), scanNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Emitted)
	assert.Equal(t, 2, second.Suppressed)

	require.Len(t, store.alerts, 2)
	assert.Equal(t, 2, locker.acquired)
	assert.Equal(t, 2, locker.released)
	assert.Equal(t, []string{"start:2024-03-08", "start:2024-03-04", "start:2024-03-02", "end:2024-03-02"}, calendar.days[:4])

	var payload models.AlertPayload
	require.NoError(t, json.Unmarshal(store.alerts[0].Payload, &payload))
	assert.Equal(t, "c-start", payload.SubjectID)
	assert.Equal(t, "3d@2024-03-04", payload.ThresholdKey)
	assert.Equal(t, models.AlertSeverityInfo, store.alerts[0].Severity)

	assert.Equal(t, models.AlertTypeClassEndingSoon, store.alerts[1].AlertType)
	assert.Equal(t, models.AlertSeverityWarning, store.alerts[1].Severity)
}

func TestScanUsesConfiguredTimezoneForToday(t *testing.T) {
	calendar, _, _, _ := newScannerFixture()
	loc := time.FixedZone("UTC+7", 7*3600)
	scanner := NewLifecycleScanner(calendar, NewAlertService(newAlertStoreStub(), nil, nil, AlertServiceConfig{}), nil, nil, nil, LifecycleScannerConfig{
		StartThresholds: []int{1},
		Location:        loc,
	})

	result, err := scanner.Scan(context.Background(), scanNow)
	require.NoError(t, err)
	assert.True(t, result.Unlocked)
	assert.Equal(t, []string{"start:2024-03-03"}, calendar.days)
}

func TestScanSkipsWhenLockHeld(t *testing.T) {
	calendar, store, locker, scanner := newScannerFixture()
	locker.held = true

	result, err := scanner.Scan(context.Background(), scanNow)
	require.NoError(t, err)
	assert.Zero(t, result.Emitted)
	assert.Empty(t, calendar.days)
	assert.Empty(t, store.alerts)
}

func TestScanRunsUnlockedWhenLockStoreFails(t *testing.T) {
	_, store, locker, scanner := newScannerFixture()
	locker.err = errors.New("redis: connection refused")

	result, err := scanner.Scan(context.Background(), scanNow)
	require.NoError(t, err)
	assert.True(t, result.Unlocked)
	assert.Equal(t, 2, result.Emitted)
	assert.Len(t, store.alerts, 2)
}

func TestScanCountsEmitFailuresAndContinues(t *testing.T) {
	calendar, _, _, _ := newScannerFixture()
	scanner := NewLifecycleScanner(calendar, failingEmitter{}, nil, nil, nil, LifecycleScannerConfig{
		StartThresholds: []int{3},
		EndThresholds:   []int{1},
	})

	result, err := scanner.Scan(context.Background(), scanNow)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, result.Emitted)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	_, store, _, scanner := newScannerFixture()
	scanner.now = func() time.Time { return scanNow }
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		scanner.Run(ctx, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.alerts) == 2
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop")
	}
}
