package main

import (
	"context"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/testutil"
)

func Test_dailySpec(t *testing.T) {
	tests := []struct {
		hhmm    string
		want    string
		wantErr bool
	}{
		{hhmm: "17:00", want: "0 17 * * *"},
		{hhmm: "08:05", want: "5 8 * * *"},
		{hhmm: "00:00", want: "0 0 * * *"},
		{hhmm: "24:00", wantErr: true},
		{hhmm: "5pm", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.hhmm, func(t *testing.T) {
			got, err := dailySpec(tt.hhmm)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_scheduler_refresh(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sched := newScheduler(f.rosterSvc, func() {}, nil, cron.DiscardLogger, testutil.NopLogger{})
	require.NoError(t, sched.refresh(ctx))
	assert.Equal(t, "17:00", sched.at)
	first := sched.entryID
	assert.Len(t, sched.cron.Entries(), 1)

	// unchanged settings keep the entry
	require.NoError(t, sched.refresh(ctx))
	assert.Equal(t, first, sched.entryID)

	settings, err := f.rosterSvc.GetSettings(ctx)
	require.NoError(t, err)
	settings.SummaryNotificationTime = "18:30"
	_, err = f.rosterSvc.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	require.NoError(t, sched.refresh(ctx))
	assert.Equal(t, "18:30", sched.at)
	assert.NotEqual(t, first, sched.entryID)
	assert.Len(t, sched.cron.Entries(), 1)
}
