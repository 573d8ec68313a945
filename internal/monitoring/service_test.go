package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slanglab/backend/internal/config"
	"github.com/slanglab/backend/internal/models"
	"github.com/slanglab/backend/internal/sources"
)

// MockPassStore is a mock implementation of the pass store
type MockPassStore struct {
	mock.Mock
}

func (m *MockPassStore) ListTrackedTerms(ctx context.Context) ([]models.Term, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Term), args.Error(1)
}

func (m *MockPassStore) SaveSightings(ctx context.Context, sightings []models.Sighting) error {
	args := m.Called(ctx, sightings)
	return args.Error(0)
}

func (m *MockPassStore) GetOrCreateRecord(ctx context.Context, termID, ownerID uuid.UUID) (models.MonitoringRecord, error) {
	args := m.Called(ctx, termID, ownerID)
	return args.Get(0).(models.MonitoringRecord), args.Error(1)
}

func (m *MockPassStore) SaveRecord(ctx context.Context, record *models.MonitoringRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockRuleProvider is a mock implementation of the rule provider
type MockRuleProvider struct {
	mock.Mock
}

func (m *MockRuleProvider) MinEnabledScore(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockNotifier is a mock implementation of the notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendTrendingAlert(term models.Term, record models.MonitoringRecord) error {
	args := m.Called(term, record)
	return args.Error(0)
}

func (m *MockNotifier) SendPassReport(report *models.PassReport) error {
	args := m.Called(report)
	return args.Error(0)
}

// fakeSource returns canned sightings for every phrase
type fakeSource struct {
	name      string
	sightings []models.Sighting
	err       error
}

func (f *fakeSource) GetName() string { return f.name }
func (f *fakeSource) IsEnabled() bool { return true }
func (f *fakeSource) FetchSightings(ctx context.Context, phrase string, window time.Duration) ([]models.Sighting, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Sighting, len(f.sightings))
	copy(out, f.sightings)
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{SearchWindow: 24 * time.Hour}
}

func TestRunPassBatch_UpdatesRecordAndSavesSightings(t *testing.T) {
	term := testTerm("rizz")
	now := time.Now()

	store := &MockPassStore{}
	rules := &MockRuleProvider{}
	notifier := &MockNotifier{}

	src := &fakeSource{
		name: "reddit",
		sightings: []models.Sighting{
			organicSighting("rizz", "https://www.reddit.com/r/a/1", 80, now),
		},
	}

	rules.On("MinEnabledScore", mock.Anything).Return(40, nil)
	store.On("SaveSightings", mock.Anything, mock.Anything).Return(nil)
	store.On("GetOrCreateRecord", mock.Anything, term.ID, term.OwnerID).
		Return(models.MonitoringRecord{Status: models.StatusMonitoring}, nil)
	store.On("SaveRecord", mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendPassReport", mock.Anything).Return(nil)

	service := NewService(testConfig(), store, rules, nil, notifier, []sources.Source{src})

	err := service.RunPassBatch(context.Background(), []models.Term{term})
	require.NoError(t, err)

	store.AssertCalled(t, "SaveSightings", mock.Anything, mock.MatchedBy(func(sightings []models.Sighting) bool {
		return len(sightings) == 1 && sightings[0].TermID == term.ID
	}))
	store.AssertCalled(t, "SaveRecord", mock.Anything, mock.MatchedBy(func(record *models.MonitoringRecord) bool {
		return record.Status == models.StatusSpotted && record.TrendingScore == 10
	}))
}

func TestRunPassBatch_OneTermFailureDoesNotAbortBatch(t *testing.T) {
	healthy := testTerm("rizz")
	broken := testTerm("mid")

	store := &MockPassStore{}
	rules := &MockRuleProvider{}
	notifier := &MockNotifier{}
	src := &fakeSource{name: "reddit"}

	rules.On("MinEnabledScore", mock.Anything).Return(40, nil)
	store.On("GetOrCreateRecord", mock.Anything, broken.ID, broken.OwnerID).
		Return(models.MonitoringRecord{}, errors.New("backend down"))
	store.On("GetOrCreateRecord", mock.Anything, healthy.ID, healthy.OwnerID).
		Return(models.MonitoringRecord{Status: models.StatusMonitoring}, nil)
	store.On("SaveRecord", mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendPassReport", mock.MatchedBy(func(report *models.PassReport) bool {
		return report.TermsChecked == 2 && report.TermsFailed == 1
	})).Return(nil)

	service := NewService(testConfig(), store, rules, nil, notifier, []sources.Source{src})

	err := service.RunPassBatch(context.Background(), []models.Term{broken, healthy})
	require.NoError(t, err, "one term's failure must not fail the pass")

	store.AssertCalled(t, "SaveRecord", mock.Anything, mock.Anything)
	notifier.AssertExpectations(t)
}

func TestRunPassBatch_NoEnabledSourcesRejectsEverything(t *testing.T) {
	term := testTerm("rizz")
	now := time.Now()

	store := &MockPassStore{}
	rules := &MockRuleProvider{}
	notifier := &MockNotifier{}
	src := &fakeSource{
		name: "reddit",
		sightings: []models.Sighting{
			organicSighting("rizz", "https://www.reddit.com/r/a/1", 100, now),
		},
	}

	rules.On("MinEnabledScore", mock.Anything).Return(0, errors.New("no enabled source rules configured"))
	store.On("GetOrCreateRecord", mock.Anything, term.ID, term.OwnerID).
		Return(models.MonitoringRecord{Status: models.StatusMonitoring}, nil)
	store.On("SaveRecord", mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendPassReport", mock.Anything).Return(nil)

	service := NewService(testConfig(), store, rules, nil, notifier, []sources.Source{src})

	err := service.RunPassBatch(context.Background(), []models.Term{term})
	require.NoError(t, err)

	// Even a perfect-score sighting is rejected under the restrictive
	// fallback, so nothing is saved and the record does not advance.
	store.AssertNotCalled(t, "SaveSightings", mock.Anything, mock.Anything)
	store.AssertCalled(t, "SaveRecord", mock.Anything, mock.MatchedBy(func(record *models.MonitoringRecord) bool {
		return record.Status == models.StatusMonitoring && record.TimesFound == 0
	}))
}

func TestRunPassBatch_SendsTrendingAlertOnTransition(t *testing.T) {
	term := testTerm("rizz")
	now := time.Now()

	store := &MockPassStore{}
	rules := &MockRuleProvider{}
	notifier := &MockNotifier{}
	src := &fakeSource{
		name: "reddit",
		sightings: []models.Sighting{
			organicSighting("rizz", "https://www.reddit.com/r/a/1", 80, now),
		},
	}

	rules.On("MinEnabledScore", mock.Anything).Return(40, nil)
	store.On("SaveSightings", mock.Anything, mock.Anything).Return(nil)
	store.On("GetOrCreateRecord", mock.Anything, term.ID, term.OwnerID).
		Return(models.MonitoringRecord{Status: models.StatusSpotted, TrendingScore: 95}, nil)
	store.On("SaveRecord", mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendTrendingAlert", mock.Anything, mock.MatchedBy(func(record models.MonitoringRecord) bool {
		return record.Status == models.StatusTrending
	})).Return(nil)
	notifier.On("SendPassReport", mock.MatchedBy(func(report *models.PassReport) bool {
		return len(report.NewlyTrending) == 1 && report.NewlyTrending[0] == term.CanonicalText
	})).Return(nil)

	service := NewService(testConfig(), store, rules, nil, notifier, []sources.Source{src})

	err := service.RunPassBatch(context.Background(), []models.Term{term})
	require.NoError(t, err)

	notifier.AssertExpectations(t)
}

func TestRunPassBatch_FailingSourceIsSkipped(t *testing.T) {
	term := testTerm("rizz")
	now := time.Now()

	store := &MockPassStore{}
	rules := &MockRuleProvider{}
	notifier := &MockNotifier{}
	ok := &fakeSource{
		name: "reddit",
		sightings: []models.Sighting{
			organicSighting("rizz", "https://www.reddit.com/r/a/1", 80, now),
		},
	}
	failing := &fakeSource{name: "twitter", err: errors.New("rate limited")}

	rules.On("MinEnabledScore", mock.Anything).Return(40, nil)
	store.On("SaveSightings", mock.Anything, mock.Anything).Return(nil)
	store.On("GetOrCreateRecord", mock.Anything, term.ID, term.OwnerID).
		Return(models.MonitoringRecord{Status: models.StatusMonitoring}, nil)
	store.On("SaveRecord", mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendPassReport", mock.Anything).Return(nil)

	service := NewService(testConfig(), store, rules, nil, notifier, []sources.Source{ok, failing})

	err := service.RunPassBatch(context.Background(), []models.Term{term})
	require.NoError(t, err)

	store.AssertCalled(t, "SaveSightings", mock.Anything, mock.MatchedBy(func(sightings []models.Sighting) bool {
		return len(sightings) == 1
	}))
	assert.Contains(t, service.GetMetrics(), "reddit")
}
