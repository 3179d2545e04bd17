package mailmsg

import (
	"testing"

	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SeedsInstancesAndMailFromFromFromTo(t *testing.T) {
	m, err := New(SourceSMTPD, "ABCDEFG1234", []FromTo{
		{From: "a@b.com", To: "c@d.com"},
		{From: "a@b.com", To: "e@f.com"},
	}, "mail.example.com", "10.0.0.5")
	require.NoError(t, err)

	assert.Equal(t, StateQueueIDIdentified, m.State)
	assert.Equal(t, "a@b.com", m.MailFrom)
	assert.Len(t, m.Instances, 2)
	assert.Contains(t, m.Instances, RecipientKey{To: "c@d.com"})
	assert.Contains(t, m.Instances, RecipientKey{To: "e@f.com"})
}

func TestNew_ConflictingSenderIsInvariantViolation(t *testing.T) {
	_, err := New(SourceSMTPD, "ABCDEFG1234", []FromTo{
		{From: "a@b.com", To: "c@d.com"},
		{From: "other@b.com", To: "e@f.com"},
	}, "mail.example.com", "10.0.0.5")
	require.Error(t, err)
	var invariant *faults.InvariantViolation
	assert.ErrorAs(t, err, &invariant)
	assert.Equal(t, "mail_from", invariant.Field)
}

func TestMessage_PickupToQueueIDIdentified(t *testing.T) {
	m, err := New(SourceLocal, "", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, StateInit, m.State)

	cmd, err := m.Process(classify.ParsedRecord{Rule: "pickup", Fields: map[string]string{"queueid": "17442321AC9"}})
	require.NoError(t, err)
	assert.Equal(t, CommandNone, cmd)
	assert.Equal(t, StateQueueIDIdentified, m.State)
	assert.Equal(t, "17442321AC9", m.QueueID)
}

func TestMessage_LocalDeliveryEndToEnd(t *testing.T) {
	m, err := New(SourceLocal, "", nil, "", "")
	require.NoError(t, err)
	require.NoError(t, step(t, m, "pickup", map[string]string{"queueid": "17442321AC9"}))
	require.NoError(t, step(t, m, "messageid_identified", map[string]string{"messageid": "<x@h>"}))
	require.NoError(t, step(t, m, "from_identified", map[string]string{"from": "zimbra@h"}))
	require.NoError(t, step(t, m, "local_delivery", map[string]string{"to": "u@h"}))

	cmd, err := m.Process(classify.ParsedRecord{Rule: "message_removed"})
	require.NoError(t, err)
	assert.Equal(t, CommandMessageDone, cmd)
	assert.Equal(t, StateMsgDone, m.State)

	inst, ok := m.Instances[RecipientKey{To: "u@h"}]
	require.True(t, ok)
	assert.Equal(t, InstanceLocallyDelivered, inst.State)
	assert.Equal(t, "zimbra@h", m.MailFrom)
}

func TestMessage_MilterRejectRetiresMessage(t *testing.T) {
	m, err := New(SourceAmavisd, "VWXYZAB3456", nil, "", "")
	require.NoError(t, err)
	require.NoError(t, step(t, m, "messageid_identified", map[string]string{"messageid": "<reject@h>"}))

	cmd, err := m.Process(classify.ParsedRecord{Rule: "cleanup_milter_reject"})
	require.NoError(t, err)
	assert.Equal(t, CommandMessageDone, cmd)
	assert.Equal(t, StateMilterReject, m.State)
}

func TestMessage_DeliveryStatusErrorRecordsReferencedQueueIDWithoutLinking(t *testing.T) {
	m, err := New(SourceSMTPD, "ABCDEFG1234", nil, "", "")
	require.NoError(t, err)
	require.NoError(t, step(t, m, "messageid_identified", map[string]string{"messageid": "<x@h>"}))

	cmd, err := m.Process(classify.ParsedRecord{Rule: "delivery_status_error", Fields: map[string]string{"newqueueid": "NEWQID12345"}})
	require.NoError(t, err)
	assert.Equal(t, CommandNone, cmd)
	assert.Equal(t, []string{"NEWQID12345"}, m.ReferencedQueueIDs())
	assert.NotEqual(t, StateMsgDone, m.State)
}

func TestMessage_FromIdentifiedMismatchIsInvariantViolation(t *testing.T) {
	m, err := New(SourceSMTPD, "ABCDEFG1234", []FromTo{{From: "a@b.com", To: "c@d.com"}}, "", "")
	require.NoError(t, err)
	require.NoError(t, step(t, m, "messageid_identified", map[string]string{"messageid": "<x@h>"}))

	_, err = m.Process(classify.ParsedRecord{Rule: "from_identified", Fields: map[string]string{"from": "different@b.com"}})
	require.Error(t, err)
	var invariant *faults.InvariantViolation
	assert.ErrorAs(t, err, &invariant)
	assert.Equal(t, "mail_from", invariant.Field)
}

func TestMessage_AmavisRejectedQueueIDStaysAtQueueIDIdentified(t *testing.T) {
	m, err := New(SourceAmavisd, "ABCDEFG1234", nil, "", "")
	require.NoError(t, err)
	require.NoError(t, step(t, m, "smtpd_amavis_10026_queueid", map[string]string{"from": "a@b.com", "to": "e@f.com"}))
	require.NoError(t, step(t, m, "smtpd_amavis_10024_queueid", map[string]string{"from": "a@b.com", "to": "e@f.com"}))
	require.NoError(t, step(t, m, "smtpd_address_rejected_queueid", map[string]string{"from": "a@b.com", "to": "e@f.com"}))

	assert.Equal(t, StateQueueIDIdentified, m.State)
	inst := m.Instances[RecipientKey{To: "e@f.com"}]
	require.NotNil(t, inst)
	assert.Equal(t, InstanceMessageRejected, inst.State)
}

func step(t *testing.T, m *MailMessage, rule string, fields map[string]string) error {
	t.Helper()
	_, err := m.Process(classify.ParsedRecord{Rule: rule, Fields: fields, Line: rule})
	return err
}
