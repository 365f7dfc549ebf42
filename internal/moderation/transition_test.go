package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/backy/backend/internal/model"
)

func TestApplyCommentStatusBlockAndClear(t *testing.T) {
	c := &model.Comment{Status: model.StatusPending}

	from, err := ApplyCommentStatus(c, model.StatusBlocked, "mod-1", "", t0)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, from)
	assert.Equal(t, "blocked by moderator", c.BlockReason)
	assert.Equal(t, "mod-1", c.BlockedBy)
	assert.Equal(t, t0, *c.BlockedAt)
	assert.Equal(t, "mod-1", c.ReviewedBy)

	// spam keeps the block record
	_, _ = ApplyCommentStatus(c, model.StatusSpam, "mod-2", "", t0.Add(time.Minute))
	assert.Equal(t, "mod-1", c.BlockedBy)
	assert.Equal(t, "mod-2", c.ReviewedBy)

	_, _ = ApplyCommentStatus(c, model.StatusApproved, "mod-3", "", t0.Add(2*time.Minute))
	assert.Empty(t, c.BlockReason)
	assert.Empty(t, c.BlockedBy)
	assert.Nil(t, c.BlockedAt)
	assert.Equal(t, t0.Add(2*time.Minute), c.UpdatedAt)
}

func TestApplyStatusRejectsUnknown(t *testing.T) {
	_, err := ApplyCommentStatus(&model.Comment{}, "deleted", "m", "", t0)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = ApplySubmissionStatus(&model.FormSubmission{}, model.StatusBlocked, "m", t0)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestApplyReportEscalatesApproved(t *testing.T) {
	c := &model.Comment{Status: model.StatusApproved}

	assert.False(t, ApplyReport(c, model.ReportSpam, t0))
	assert.False(t, ApplyReport(c, model.ReportSpam, t0))
	assert.Equal(t, []model.ReportReason{model.ReportSpam}, c.ReportReasons)

	assert.True(t, ApplyReport(c, model.ReportAbuse, t0))
	assert.Equal(t, 3, c.ReportCount)
	assert.Equal(t, model.StatusSpam, c.Status)
	assert.Equal(t, EscalationActor, c.ReviewedBy)
	assert.Len(t, c.ReportReasons, 2)

	// already spam: further reports only count
	assert.False(t, ApplyReport(c, model.ReportAbuse, t0))
	assert.Equal(t, 4, c.ReportCount)
}

func TestApplyReportPendingDoesNotEscalate(t *testing.T) {
	c := &model.Comment{Status: model.StatusPending}
	for i := 0; i < 5; i++ {
		assert.False(t, ApplyReport(c, model.ReportOther, t0))
	}
	assert.Equal(t, model.StatusPending, c.Status)
}

func TestNormalizeReportReason(t *testing.T) {
	assert.Equal(t, model.ReportHarassment, NormalizeReportReason(" Harassment "))
	assert.Equal(t, model.ReportOffTopic, NormalizeReportReason("off_topic"))
	assert.Equal(t, model.ReportOther, NormalizeReportReason("because"))
}
