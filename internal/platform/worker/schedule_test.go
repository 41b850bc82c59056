package worker

import (
	"context"
	"testing"
	"time"
)

func TestShouldRunDaily(t *testing.T) {
	eightAM := time.Date(2024, 3, 12, 8, 15, 0, 0, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		hour    int
		lastRun time.Time
		want    bool
	}{
		{name: "scheduled hour, never run", now: eightAM, hour: 8, lastRun: time.Time{}, want: true},
		{name: "scheduled hour, ran yesterday", now: eightAM, hour: 8, lastRun: eightAM.Add(-24 * time.Hour), want: true},
		{name: "scheduled hour, ran minutes ago", now: eightAM, hour: 8, lastRun: eightAM.Add(-10 * time.Minute), want: false},
		{name: "wrong hour", now: eightAM, hour: 9, lastRun: time.Time{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldRunDaily(tt.now, tt.hour, tt.lastRun, DailyGracePeriod)
			if got != tt.want {
				t.Errorf("ShouldRunDaily() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRunWeekly(t *testing.T) {
	mondayMorning := time.Date(2024, 3, 11, 8, 30, 0, 0, time.UTC) // Monday

	tests := []struct {
		name    string
		now     time.Time
		day     time.Weekday
		hour    int
		lastRun time.Time
		want    bool
	}{
		{name: "monday morning, never run", now: mondayMorning, day: time.Monday, hour: 8, lastRun: time.Time{}, want: true},
		{name: "monday morning, ran 7 days ago", now: mondayMorning, day: time.Monday, hour: 8, lastRun: mondayMorning.Add(-7 * 24 * time.Hour), want: true},
		{name: "monday morning, ran 3 days ago", now: mondayMorning, day: time.Monday, hour: 8, lastRun: mondayMorning.Add(-3 * 24 * time.Hour), want: false},
		{name: "wrong day", now: mondayMorning.Add(24 * time.Hour), day: time.Monday, hour: 8, lastRun: time.Time{}, want: false},
		{name: "wrong hour", now: time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC), day: time.Monday, hour: 8, lastRun: time.Time{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldRunWeekly(tt.now, tt.day, tt.hour, tt.lastRun, WeeklyGracePeriod)
			if got != tt.want {
				t.Errorf("ShouldRunWeekly() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wait(ctx, time.Minute); err == nil {
		t.Fatal("Wait() with canceled context should return an error")
	}
}
