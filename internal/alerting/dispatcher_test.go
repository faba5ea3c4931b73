package alerting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_SentOutcomeRecordsMessageID(t *testing.T) {
	notifications := newMockNotifications()
	sender := &mockSender{}
	dispatcher := NewDispatcher(sender, notifications, testLogger())

	outcome, err := dispatcher.Dispatch(t.Context(),
		Candidate{PatientID: "p1", RuleType: RuleGlucoseSpikeCritical},
		&Resolution{Locale: "en", Token: "tok-1"},
		Content{Title: "Title", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)

	record, err := notifications.MostRecent(t.Context(), "p1", RuleGlucoseSpikeCritical)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, record.Outcome)
	assert.Equal(t, "msg-1", record.Metadata["message_id"])
	assert.Equal(t, "Title", record.Title)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "tok-1", sender.sent[0].token)
}

func TestDispatcher_TransportErrorRecordsFailedOutcome(t *testing.T) {
	notifications := newMockNotifications()
	sender := &mockSender{sendErr: errors.New("provider unavailable")}
	dispatcher := NewDispatcher(sender, notifications, testLogger())

	outcome, err := dispatcher.Dispatch(t.Context(),
		Candidate{PatientID: "p1", RuleType: RuleHighRiskCritical},
		&Resolution{Token: "tok-1"},
		Content{Title: "t", Body: "b"})
	require.NoError(t, err, "a transport failure is an outcome, not a dispatch error")
	assert.Equal(t, OutcomeFailed, outcome)

	record, err := notifications.MostRecent(t.Context(), "p1", RuleHighRiskCritical)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, record.Outcome)
	assert.Equal(t, "provider unavailable", record.Metadata["error"])
}

func TestDispatcher_NilSenderRecordsMockOutcome(t *testing.T) {
	notifications := newMockNotifications()
	dispatcher := NewDispatcher(nil, notifications, testLogger())

	outcome, err := dispatcher.Dispatch(t.Context(),
		Candidate{PatientID: "p1", RuleType: RuleLogDataReminder},
		&Resolution{Token: "tok-1"},
		Content{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMock, outcome)

	record, err := notifications.MostRecent(t.Context(), "p1", RuleLogDataReminder)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMock, record.Outcome)
	assert.Equal(t, "true", record.Metadata["mock"])
}

func TestDispatcher_AppendFailureSurfacesError(t *testing.T) {
	notifications := newMockNotifications()
	notifications.appendErr = errStoreDown
	dispatcher := NewDispatcher(nil, notifications, testLogger())

	outcome, err := dispatcher.Dispatch(t.Context(),
		Candidate{PatientID: "p1", RuleType: RuleLogDataReminder},
		&Resolution{Token: "tok-1"},
		Content{Title: "t", Body: "b"})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, OutcomeMock, outcome)
}

func TestDispatcher_ExactlyOneRecordPerAttempt(t *testing.T) {
	notifications := newMockNotifications()
	dispatcher := NewDispatcher(&mockSender{}, notifications, testLogger())

	for range 3 {
		_, err := dispatcher.Dispatch(t.Context(),
			Candidate{PatientID: "p1", RuleType: RuleGlucoseSpikeCritical},
			&Resolution{Token: "tok-1"},
			Content{Title: "t", Body: "b"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, notifications.count())
}
