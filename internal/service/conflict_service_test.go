package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/schedule"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

func newConflictFixture() (*schoolStub, *ConflictService) {
	world := newSchoolStub()
	world.addStudent("s1", true)
	world.addClass("morning", models.ClassStatusActive, nil, mondayMorning)
	world.addClass("wide", models.ClassStatusActive, nil, `[{"day":"mon","start":"08:00","end":"12:00"},{"day":"fri","start":"18:30","end":"19:00"}]`)
	world.addClass("evening", models.ClassStatusActive, nil, fridayEvening)
	world.addEnrollment("e-morning", "s1", "morning", models.EnrollmentStatusStudying)
	world.addEnrollment("e-evening", "s1", "evening", models.EnrollmentStatusStudying)
	return world, NewConflictService(enrollmentStoreStub{w: world}, &classStoreStub{w: world}, nil, nil)
}

func TestFindConflictsReturnsAllClashes(t *testing.T) {
	world, svc := newConflictFixture()

	reports, err := svc.FindConflicts(context.Background(), "s1", schedule.Raw(world.classes["wide"].RecurringSchedule), "")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "morning", reports[0].ClassID)
	assert.Equal(t, "08:00-12:00", reports[0].CandidateRange)
	assert.Equal(t, "evening", reports[1].ClassID)
	assert.Equal(t, schedule.Friday, reports[1].Day)
	assert.Equal(t, "18:00-19:30", reports[1].ConflictingRange)

	reports, err = svc.FindConflicts(context.Background(), "s1", schedule.Raw(world.classes["wide"].RecurringSchedule), "evening")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "morning", reports[0].ClassID)
}

func TestFindConflictsWithoutUsableTimetable(t *testing.T) {
	_, svc := newConflictFixture()

	for _, raw := range []string{``, `null`, `[]`, `[{"day":"mon","start":"11:00","end":"09:00"}]`} {
		reports, err := svc.FindConflicts(context.Background(), "s1", schedule.Raw(raw), "")
		require.NoError(t, err)
		assert.Empty(t, reports, raw)
	}
}

func TestCheckClass(t *testing.T) {
	_, svc := newConflictFixture()

	resp, err := svc.CheckClass(context.Background(), dto.ConflictCheckRequest{StudentID: "s1", ClassID: "wide"})
	require.NoError(t, err)
	assert.True(t, resp.HasConflict)
	assert.Len(t, resp.Conflicts, 2)

	_, err = svc.CheckClass(context.Background(), dto.ConflictCheckRequest{StudentID: "s1", ClassID: "ghost"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.CheckClass(context.Background(), dto.ConflictCheckRequest{ClassID: "wide"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}
