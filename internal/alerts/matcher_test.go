package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialbridge/trialbridge/internal/notify"
	"github.com/trialbridge/trialbridge/internal/platform/config"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

func TestMatches(t *testing.T) {
	trial := db.TrialSummary{
		ID:               "9a1b2c3d-0000-4000-8000-000000000001",
		Title:            "Phase 2 Study of Drug X in Metastatic Melanoma",
		BriefDescription: "Evaluating safety and efficacy of Drug X.",
		DiseaseArea:      "oncology",
		Phase:            "phase_2",
		Status:           "recruiting",
	}
	countries := []string{"Germany", "France"}

	tests := []struct {
		name  string
		alert db.Alert
		want  bool
	}{
		{
			name:  "empty criteria match everything",
			alert: db.Alert{},
			want:  true,
		},
		{
			name:  "disease area match is case-insensitive",
			alert: db.Alert{DiseaseArea: "Oncology"},
			want:  true,
		},
		{
			name:  "disease area mismatch",
			alert: db.Alert{DiseaseArea: "cardiology"},
			want:  false,
		},
		{
			name:  "phase match",
			alert: db.Alert{Phase: "phase_2"},
			want:  true,
		},
		{
			name:  "phase mismatch",
			alert: db.Alert{Phase: "phase_3"},
			want:  false,
		},
		{
			name:  "keyword in title",
			alert: db.Alert{Keyword: "melanoma"},
			want:  true,
		},
		{
			name:  "keyword in description",
			alert: db.Alert{Keyword: "drug x"},
			want:  true,
		},
		{
			name:  "keyword absent",
			alert: db.Alert{Keyword: "lymphoma"},
			want:  false,
		},
		{
			name:  "location matches a site country",
			alert: db.Alert{Location: "germany"},
			want:  true,
		},
		{
			name:  "location with no site",
			alert: db.Alert{Location: "Japan"},
			want:  false,
		},
		{
			name:  "all criteria together",
			alert: db.Alert{DiseaseArea: "oncology", Phase: "phase_2", Keyword: "melanoma", Location: "France"},
			want:  true,
		},
		{
			name:  "one failing criterion rejects",
			alert: db.Alert{DiseaseArea: "oncology", Phase: "phase_2", Keyword: "melanoma", Location: "Japan"},
			want:  false,
		},
		{
			name:  "pinned trial id hit",
			alert: db.Alert{TrialID: trial.ID},
			want:  true,
		},
		{
			name:  "pinned trial id miss",
			alert: db.Alert{TrialID: "9a1b2c3d-0000-4000-8000-000000000002"},
			want:  false,
		},
		{
			name:  "pinned alert ignores other criteria",
			alert: db.Alert{TrialID: trial.ID, DiseaseArea: "cardiology", Keyword: "lymphoma"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.alert, trial, countries))
		})
	}
}

func TestMatchesNoCountries(t *testing.T) {
	trial := db.TrialSummary{Title: "A Trial", DiseaseArea: "neurology", Phase: "phase_1"}

	assert.True(t, Matches(db.Alert{DiseaseArea: "neurology"}, trial, nil))
	assert.False(t, Matches(db.Alert{Location: "Spain"}, trial, nil))
}

type fakeStorage struct {
	trials    []db.TrialSummary
	alerts    []db.Alert
	countries map[string][]string

	insertErr error
	inserted  []string
	touched   []string
}

func (f *fakeStorage) ListTrialsUpdatedSince(_ context.Context, since time.Time, limit int) ([]db.TrialSummary, error) {
	var out []db.TrialSummary

	for _, tr := range f.trials {
		if tr.UpdatedAt.After(since) {
			out = append(out, tr)
		}

		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (f *fakeStorage) ListActiveAlertsByFrequency(_ context.Context, _ string) ([]db.Alert, error) {
	return f.alerts, nil
}

func (f *fakeStorage) TrialCountries(_ context.Context, trialID string) ([]string, error) {
	return f.countries[trialID], nil
}

func (f *fakeStorage) InsertNotification(_ context.Context, userID, notificationType, title, body string, payload json.RawMessage) (*db.Notification, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}

	f.inserted = append(f.inserted, userID)

	return &db.Notification{UserID: userID, NotificationType: notificationType, Title: title, Body: body, Payload: payload}, nil
}

func (f *fakeStorage) TouchAlertNotified(_ context.Context, alertID string, _ time.Time) error {
	f.touched = append(f.touched, alertID)
	return nil
}

func (f *fakeStorage) GetUserByID(_ context.Context, id string) (*db.User, error) {
	return &db.User{ID: id, Email: "subscriber@example.org"}, nil
}

func (f *fakeStorage) TryAcquireAdvisoryLock(_ context.Context, _ int64) (bool, error) {
	return true, nil
}

func (f *fakeStorage) ReleaseAdvisoryLock(_ context.Context, _ int64) error {
	return nil
}

func newTestMatcher(store *fakeStorage, watermark time.Time) *Matcher {
	nop := zerolog.Nop()

	return &Matcher{
		db:        store,
		cfg:       &config.Config{AlertBatchSize: 10},
		mail:      &notify.LogSender{Logger: &nop},
		logger:    &nop,
		watermark: watermark,
	}
}

func TestCycleNotifiesWithinOneCycle(t *testing.T) {
	base := time.Now()
	trial := db.TrialSummary{
		ID:        "9a1b2c3d-0000-4000-8000-000000000001",
		NCTID:     "NCT00000001",
		Title:     "Trial One",
		UpdatedAt: base.Add(time.Minute),
	}
	store := &fakeStorage{
		trials: []db.TrialSummary{trial},
		alerts: []db.Alert{{ID: "alert-1", UserID: "user-1", AlertFrequency: db.FrequencyInstant}},
	}
	m := newTestMatcher(store, base)

	require.NoError(t, m.cycle(context.Background()))

	assert.Equal(t, []string{"user-1"}, store.inserted)
	assert.Equal(t, []string{"alert-1"}, store.touched)
	assert.True(t, m.watermark.Equal(trial.UpdatedAt))
}

func TestCycleRetriesFailedDelivery(t *testing.T) {
	base := time.Now()
	trial := db.TrialSummary{
		ID:        "9a1b2c3d-0000-4000-8000-000000000001",
		NCTID:     "NCT00000001",
		Title:     "Trial One",
		UpdatedAt: base.Add(time.Minute),
	}
	store := &fakeStorage{
		trials:    []db.TrialSummary{trial},
		alerts:    []db.Alert{{ID: "alert-1", UserID: "user-1", AlertFrequency: db.FrequencyInstant}},
		insertErr: errors.New("insert notification: connection refused"),
	}
	m := newTestMatcher(store, base)

	// The failed delivery must not advance the watermark past the trial.
	require.NoError(t, m.cycle(context.Background()))
	assert.Empty(t, store.inserted)
	assert.True(t, m.watermark.Equal(base))

	// Next cycle picks the same trial up again and delivers.
	store.insertErr = nil

	require.NoError(t, m.cycle(context.Background()))
	assert.Equal(t, []string{"user-1"}, store.inserted)
	assert.True(t, m.watermark.Equal(trial.UpdatedAt))
}

func TestCycleAdvancesPastNonMatchingTrials(t *testing.T) {
	base := time.Now()
	trials := []db.TrialSummary{
		{ID: "t1", Title: "Alpha", DiseaseArea: "oncology", UpdatedAt: base.Add(time.Minute)},
		{ID: "t2", Title: "Beta", DiseaseArea: "cardiology", UpdatedAt: base.Add(2 * time.Minute)},
	}
	store := &fakeStorage{
		trials: trials,
		alerts: []db.Alert{{ID: "alert-1", UserID: "user-1", DiseaseArea: "neurology", AlertFrequency: db.FrequencyInstant}},
	}
	m := newTestMatcher(store, base)

	require.NoError(t, m.cycle(context.Background()))

	assert.Empty(t, store.inserted)
	assert.True(t, m.watermark.Equal(trials[1].UpdatedAt))
}
