package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReminderStore struct {
	due     []DueReminder
	gotHHMM string
	err     error
}

func (f *fakeReminderStore) ListDueReminders(_ context.Context, hhmm string) ([]DueReminder, error) {
	f.gotHHMM = hhmm
	return f.due, f.err
}

type fakeSender struct {
	sent    []string
	failFor string
}

func (f *fakeSender) Send(to, message, refID string) (string, error) {
	if to == f.failFor {
		return "", errors.New("gateway down")
	}
	f.sent = append(f.sent, to)
	return "msg-1", nil
}

func TestReminder_RunOnce_SendsDue(t *testing.T) {
	store := &fakeReminderStore{due: []DueReminder{
		{DosageID: 1, ChildName: "Amani", Medication: "Risperidone", Amount: 0.5, Unit: "mg", Phone: "+254700000001"},
		{DosageID: 2, ChildName: "Brian", Medication: "Melatonin", Amount: 2, Unit: "mg", Phone: "+254700000002"},
	}}
	sender := &fakeSender{}
	reminder := NewReminder(store, sender, time.Minute, zap.NewNop())

	now := time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC)
	require.NoError(t, reminder.RunOnce(context.Background(), now))

	assert.Equal(t, "08:30", store.gotHHMM)
	assert.Equal(t, []string{"+254700000001", "+254700000002"}, sender.sent)
}

func TestReminder_RunOnce_ContainsPerReminderFailures(t *testing.T) {
	store := &fakeReminderStore{due: []DueReminder{
		{DosageID: 1, ChildName: "Amani", Medication: "Risperidone", Amount: 0.5, Unit: "mg", Phone: "+254700000001"},
		{DosageID: 2, ChildName: "Brian", Medication: "Melatonin", Amount: 2, Unit: "mg", Phone: ""},
		{DosageID: 3, ChildName: "Cara", Medication: "Vitamin D", Amount: 1, Unit: "tab", Phone: "+254700000003"},
	}}
	// 第一条发送失败，后两条仍应被处理
	sender := &fakeSender{failFor: "+254700000001"}
	reminder := NewReminder(store, sender, time.Minute, zap.NewNop())

	require.NoError(t, reminder.RunOnce(context.Background(), time.Now()))
	assert.Equal(t, []string{"+254700000003"}, sender.sent)
}

func TestReminder_RunOnce_StoreError(t *testing.T) {
	store := &fakeReminderStore{err: errors.New("db down")}
	reminder := NewReminder(store, &fakeSender{}, time.Minute, zap.NewNop())

	err := reminder.RunOnce(context.Background(), time.Now())
	require.Error(t, err)
}
