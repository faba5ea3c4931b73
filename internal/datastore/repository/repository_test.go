package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entities.GlucoseReading{},
		&entities.MealEntry{},
		&entities.RiskScore{},
		&entities.NotificationPreference{},
		&entities.NotificationRecord{},
	))
	return db
}

func TestSignalRepository_RecentReadingsWindowAndOrder(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.Create(&[]entities.GlucoseReading{
		{PatientID: "p1", ValueMgDl: 120, TakenAt: now.Add(-2 * time.Hour)},
		{PatientID: "p1", ValueMgDl: 150, TakenAt: now.Add(-30 * time.Minute)},
		{PatientID: "p1", ValueMgDl: 99, TakenAt: now.Add(-26 * time.Hour)},
		{PatientID: "p2", ValueMgDl: 310, TakenAt: now.Add(-time.Minute)},
	}).Error)

	repo := NewSignalRepository(db)
	readings, err := repo.RecentReadings(t.Context(), "p1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 120.0, readings[0].ValueMgDl, "oldest first")
	assert.Equal(t, 150.0, readings[1].ValueMgDl)
}

func TestSignalRepository_LatestRiskScore(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.Create(&[]entities.RiskScore{
		{PatientID: "p1", Percent: 50, ComputedAt: now.Add(-48 * time.Hour)},
		{PatientID: "p1", Percent: 93, ComputedAt: now.Add(-time.Hour)},
	}).Error)

	repo := NewSignalRepository(db)
	score, err := repo.LatestRiskScore(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 93.0, score.Percent)

	_, err = repo.LatestRiskScore(t.Context(), "p2")
	assert.ErrorIs(t, err, ErrNoRiskScore)
}

func TestSignalRepository_ActivePatientIDsUnion(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.Create(&entities.GlucoseReading{PatientID: "p1", ValueMgDl: 100, TakenAt: now}).Error)
	require.NoError(t, db.Create(&entities.MealEntry{PatientID: "p2", EatenAt: now}).Error)
	require.NoError(t, db.Create(&entities.RiskScore{PatientID: "p3", Percent: 10, ComputedAt: now}).Error)
	require.NoError(t, db.Create(&entities.NotificationPreference{UserID: "p4"}).Error)
	// p1 appears twice across tables; union must dedupe
	require.NoError(t, db.Create(&entities.MealEntry{PatientID: "p1", EatenAt: now}).Error)

	repo := NewSignalRepository(db)
	ids, err := repo.ActivePatientIDs(t.Context())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3", "p4"}, ids)
}

func TestPreferenceRepository_RoundTrip(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Create(&entities.NotificationPreference{
		UserID:            "u1",
		Locale:            "fi",
		DeliveryToken:     "tok",
		EnabledCategories: map[string]bool{"critical": true, "positive": false},
	}).Error)

	repo := NewPreferenceRepository(db)
	pref, err := repo.GetPreference(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fi", pref.Locale)
	assert.True(t, pref.CategoryEnabled("critical"))
	assert.False(t, pref.CategoryEnabled("positive"))
	assert.False(t, pref.CategoryEnabled("reminder"), "absent category counts as disabled")

	_, err = repo.GetPreference(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrPreferenceNotFound)
}

func TestNotificationRepository_AppendAndMostRecent(t *testing.T) {
	db := testDB(t)
	repo := NewNotificationRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Append(t.Context(), &entities.NotificationRecord{
		UserID: "u1", RuleType: "logDataReminder", FiredAt: now.Add(-2 * time.Hour),
		Outcome: "sent", Metadata: map[string]string{"message_id": "a"},
	}))
	require.NoError(t, repo.Append(t.Context(), &entities.NotificationRecord{
		UserID: "u1", RuleType: "logDataReminder", FiredAt: now.Add(-time.Hour),
		Outcome: "failed", Metadata: map[string]string{"error": "boom"},
	}))

	record, err := repo.MostRecent(t.Context(), "u1", "logDataReminder")
	require.NoError(t, err)
	assert.Equal(t, "failed", record.Outcome)
	assert.True(t, record.FiredAt.Equal(now.Add(-time.Hour)), "firedAt survives persistence intact")
	assert.Equal(t, "boom", record.Metadata["error"])

	_, err = repo.MostRecent(t.Context(), "u1", "otherRule")
	assert.ErrorIs(t, err, ErrNoNotifications)
}

func TestNotificationRepository_ListNewestFirstWithLimit(t *testing.T) {
	db := testDB(t)
	repo := NewNotificationRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	for i := range 5 {
		require.NoError(t, repo.Append(t.Context(), &entities.NotificationRecord{
			UserID: "u1", RuleType: "logDataReminder",
			FiredAt: now.Add(-time.Duration(i) * time.Hour), Outcome: "sent",
		}))
	}
	records, err := repo.List(t.Context(), "u1", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].FiredAt.After(records[1].FiredAt))
	assert.True(t, records[1].FiredAt.After(records[2].FiredAt))
}

func TestNotificationRepository_RecentlyNotifiedSince(t *testing.T) {
	db := testDB(t)
	repo := NewNotificationRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Append(t.Context(), &entities.NotificationRecord{
		UserID: "u1", RuleType: "glucoseSpikeCritical", FiredAt: now.Add(-time.Hour), Outcome: "sent",
	}))
	require.NoError(t, repo.Append(t.Context(), &entities.NotificationRecord{
		UserID: "u2", RuleType: "glucoseSpikeCritical", FiredAt: now.Add(-5 * time.Hour), Outcome: "mock",
	}))
	require.NoError(t, repo.Append(t.Context(), &entities.NotificationRecord{
		UserID: "u3", RuleType: "logDataReminder", FiredAt: now.Add(-time.Minute), Outcome: "sent",
	}))

	ids, err := repo.RecentlyNotifiedSince(t.Context(), "glucoseSpikeCritical", now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1"}, ids)
}

func TestNotificationRepository_DeleteBefore(t *testing.T) {
	db := testDB(t)
	repo := NewNotificationRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Append(t.Context(), &entities.NotificationRecord{
		UserID: "u1", RuleType: "logDataReminder", FiredAt: now.Add(-40 * 24 * time.Hour), Outcome: "sent",
	}))
	require.NoError(t, repo.Append(t.Context(), &entities.NotificationRecord{
		UserID: "u1", RuleType: "logDataReminder", FiredAt: now.Add(-time.Hour), Outcome: "sent",
	}))

	deleted, err := repo.DeleteBefore(t.Context(), now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	records, err := repo.List(t.Context(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
