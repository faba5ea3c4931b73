package alerting

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
	"github.com/glucoguard/glucoguard/internal/datastore/repository"
	"github.com/glucoguard/glucoguard/internal/i18n"
	"github.com/glucoguard/glucoguard/internal/logger"
	"github.com/glucoguard/glucoguard/internal/push"
)

// mockSignalSource is an in-memory SignalSource for evaluator tests.
type mockSignalSource struct {
	patients []string
	readings map[string][]entities.GlucoseReading
	meals    map[string][]entities.MealEntry
	risks    map[string]*entities.RiskScore
	err      error
}

func newMockSignals(patients ...string) *mockSignalSource {
	return &mockSignalSource{
		patients: patients,
		readings: make(map[string][]entities.GlucoseReading),
		meals:    make(map[string][]entities.MealEntry),
		risks:    make(map[string]*entities.RiskScore),
	}
}

func (m *mockSignalSource) addReading(patientID string, value float64, takenAt time.Time) {
	m.readings[patientID] = append(m.readings[patientID], entities.GlucoseReading{
		PatientID: patientID,
		ValueMgDl: value,
		TakenAt:   takenAt,
	})
}

func (m *mockSignalSource) addMeal(patientID string, eatenAt time.Time) {
	m.meals[patientID] = append(m.meals[patientID], entities.MealEntry{
		PatientID: patientID,
		EatenAt:   eatenAt,
	})
}

func (m *mockSignalSource) RecentReadings(_ context.Context, patientID string, since time.Time) ([]entities.GlucoseReading, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []entities.GlucoseReading
	for _, r := range m.readings[patientID] {
		if !r.TakenAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockSignalSource) RecentMeals(_ context.Context, patientID string, since time.Time) ([]entities.MealEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []entities.MealEntry
	for _, e := range m.meals[patientID] {
		if !e.EatenAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockSignalSource) LatestRiskScore(_ context.Context, patientID string) (*entities.RiskScore, error) {
	if m.err != nil {
		return nil, m.err
	}
	score, ok := m.risks[patientID]
	if !ok {
		return nil, repository.ErrNoRiskScore
	}
	return score, nil
}

func (m *mockSignalSource) ActivePatientIDs(_ context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.patients, nil
}

// mockNotificationRepo is an in-memory notification log.
type mockNotificationRepo struct {
	mu        sync.Mutex
	records   []*entities.NotificationRecord
	appendErr error
}

func newMockNotifications() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Append(_ context.Context, record *entities.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	clone := *record
	m.records = append(m.records, &clone)
	return nil
}

func (m *mockNotificationRepo) MostRecent(_ context.Context, userID, ruleType string) (*entities.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var newest *entities.NotificationRecord
	for _, r := range m.records {
		if r.UserID != userID || r.RuleType != ruleType {
			continue
		}
		if newest == nil || r.FiredAt.After(newest.FiredAt) {
			newest = r
		}
	}
	if newest == nil {
		return nil, repository.ErrNoNotifications
	}
	clone := *newest
	return &clone, nil
}

func (m *mockNotificationRepo) List(_ context.Context, userID string, limit int) ([]entities.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.NotificationRecord
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockNotificationRepo) RecentlyNotifiedSince(_ context.Context, ruleType string, since time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, r := range m.records {
		if r.RuleType != ruleType || r.FiredAt.Before(since) {
			continue
		}
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r.UserID)
	}
	return out, nil
}

func (m *mockNotificationRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*entities.NotificationRecord
	var deleted int64
	for _, r := range m.records {
		if r.FiredAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

func (m *mockNotificationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockPreferenceRepo is an in-memory preference store.
type mockPreferenceRepo struct {
	prefs map[string]*entities.NotificationPreference
}

func newMockPreferences() *mockPreferenceRepo {
	return &mockPreferenceRepo{prefs: make(map[string]*entities.NotificationPreference)}
}

func (m *mockPreferenceRepo) set(userID, locale, token string, categories ...string) {
	enabled := make(map[string]bool, len(categories))
	for _, c := range categories {
		enabled[c] = true
	}
	m.prefs[userID] = &entities.NotificationPreference{
		UserID:            userID,
		Locale:            locale,
		DeliveryToken:     token,
		EnabledCategories: enabled,
	}
}

func (m *mockPreferenceRepo) GetPreference(_ context.Context, userID string) (*entities.NotificationPreference, error) {
	pref, ok := m.prefs[userID]
	if !ok {
		return nil, repository.ErrPreferenceNotFound
	}
	return pref, nil
}

// mockSender is an in-memory push.Sender.
type mockSender struct {
	mu      sync.Mutex
	sendErr error
	sent    []sentPush
}

type sentPush struct {
	token string
	title string
	body  string
}

func (m *mockSender) Send(_ context.Context, token, title, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, sentPush{token: token, title: title, body: body})
	return "msg-1", nil
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func testCatalogResolver(t *testing.T) *ContentResolver {
	t.Helper()
	catalog, err := i18n.Load()
	require.NoError(t, err)
	return NewContentResolver(catalog, "en")
}

// newTestEngine wires an engine over the in-memory mocks. A nil sender puts
// the dispatcher in mock mode.
func newTestEngine(t *testing.T, signals *mockSignalSource, notifications *mockNotificationRepo, preferences *mockPreferenceRepo, sender *mockSender) *Engine {
	t.Helper()
	dispatcher := NewDispatcher(senderOrNil(sender), notifications, testLogger())
	return NewEngine(
		DefaultCatalog(),
		signals,
		notifications,
		NewPreferenceResolver(preferences, time.Minute),
		testCatalogResolver(t),
		dispatcher,
		4,
		testLogger(),
	)
}

// senderOrNil converts a possibly-nil *mockSender to a push.Sender without
// producing a non-nil interface wrapping a nil pointer.
func senderOrNil(m *mockSender) push.Sender {
	if m == nil {
		return nil
	}
	return m
}

var errStoreDown = errors.New("store unreachable")
