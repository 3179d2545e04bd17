package engine

import (
	"testing"

	"github.com/kumina/mailtrace/mailmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(t *testing.T, e *Engine, lines ...string) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, e.ProcessLine(l), "line: %s", l)
	}
}

// Local pickup -> queued -> delivered locally -> removed.
func TestEngine_LocalPickupToDelivered(t *testing.T) {
	e := New(2026)
	feed(t, e,
		`Jan 10 09:00:00 mailhost postfix/pickup[2268]: 17442321AC9: uid=498 from=<zimbra>`,
		`Jan 10 09:00:01 mailhost postfix/cleanup[6880]: 17442321AC9: message-id=<x@h>`,
		`Jan 10 09:00:02 mailhost postfix/qmgr[3569]: 17442321AC9: from=<zimbra@h>, size=744, nrcpt=1 (queue active)`,
		`Jan 10 09:00:03 mailhost postfix/lmtp[9246]: 17442321AC9: to=<u@h>, relay=mail.example.com[172.16.20.3]:7025, delay=0.06, delays=0/0/0.01/0.05, dsn=2.1.5, status=sent (250 2.1.5 Delivery OK)`,
		`Jan 10 09:00:04 mailhost postfix/qmgr[3569]: 17442321AC9: removed`,
	)

	require.Empty(t, e.Live())
	require.NotEmpty(t, e.Processed())

	last := e.Processed()[len(e.Processed())-1]
	assert.Equal(t, mailmsg.StateMsgDone, last.State)
	assert.Equal(t, "<x@h>", last.MessageID)
	assert.Equal(t, "zimbra@h", last.MailFrom)

	inst, ok := last.Instances[mailmsg.RecipientKey{To: "u@h"}]
	require.True(t, ok)
	assert.Equal(t, mailmsg.InstanceLocallyDelivered, inst.State)
}

// SMTPD connect -> Amavis 10026 -> queue id minted.
func TestEngine_SMTPDAmavis10026MintsQueueID(t *testing.T) {
	e := New(2026)
	feed(t, e,
		`Jan 10 09:10:00 mailhost postfix/smtpd[123]: connect from mail.example.com[10.0.0.5]`,
		`Jan 10 09:10:01 mailhost postfix/smtpd[123]: NOQUEUE: filter: RCPT from mail.example.com[10.0.0.5]: <unused>: Sender address triggers FILTER smtp-amavis:[127.0.0.1]:10026; from=<a@b.com> to=<c@d.com> proto=ESMTP helo=<mail.example.com>`,
		`Jan 10 09:10:02 mailhost postfix/smtpd[123]: ABCDEFG1234: client=mail.example.com[10.0.0.5]`,
	)

	msg, ok := e.Live()["ABCDEFG1234"]
	require.True(t, ok)
	assert.Equal(t, mailmsg.SourceSMTPD, msg.Source)
	assert.Equal(t, "a@b.com", msg.MailFrom)
	_, hasRecipient := msg.Instances[mailmsg.RecipientKey{To: "c@d.com"}]
	assert.True(t, hasRecipient)
}

// Amavis 10026 -> 10024 -> address rejected for one recipient, on a
// message whose queue id was minted by the AmavisdProcess.
func TestEngine_Amavis10024AddressRejected(t *testing.T) {
	e := New(2026)
	feed(t, e,
		`Jan 10 09:20:00 mailhost postfix/amavisd/smtpd[777]: ABCDEFG1234: client=mail.example.com[10.0.0.5]`,
		`Jan 10 09:20:01 mailhost postfix/smtpd[555]: ABCDEFG1234: filter: RCPT from mail.example.com[10.0.0.5]: <unused>: Sender address triggers FILTER smtp-amavis:[127.0.0.1]:10026; from=<a@b.com> to=<e@f.com> proto=ESMTP helo=<mail.example.com>`,
		`Jan 10 09:20:02 mailhost postfix/smtpd[555]: ABCDEFG1234: filter: RCPT from mail.example.com[10.0.0.5]: <unused>: Sender address triggers FILTER smtp-amavis:[127.0.0.1]:10024; from=<a@b.com> to=<e@f.com> proto=ESMTP helo=<mail.example.com>`,
		`Jan 10 09:20:03 mailhost postfix/smtpd[555]: ABCDEFG1234: reject: RCPT from mail.example.com[10.0.0.5]: 550 5.1.1 <e@f.com>: Recipient address rejected: nosuchuser; from=<a@b.com> to=<e@f.com> proto=ESMTP helo=<mail.example.com>`,
	)

	msg, ok := e.Live()["ABCDEFG1234"]
	require.True(t, ok)
	assert.Equal(t, mailmsg.StateQueueIDIdentified, msg.State)

	inst, ok := msg.Instances[mailmsg.RecipientKey{To: "e@f.com"}]
	require.True(t, ok)
	assert.Equal(t, mailmsg.InstanceMessageRejected, inst.State)
	assert.Empty(t, inst.NewQueueID)
}

// Spam discarded must not land in MESSAGE_QUEUED — a rule-ordering
// regression would route it there instead.
func TestEngine_SpamDiscardedNotQueued(t *testing.T) {
	e := New(2026)
	feed(t, e,
		`Jan 10 09:30:00 mailhost postfix/amavisd/smtpd[888]: HIJKLMN5678: client=mail.example.com[10.0.0.5]`,
		`Jan 10 09:30:01 mailhost postfix/cleanup[889]: HIJKLMN5678: message-id=<spam@h>`,
		`Jan 10 09:30:02 mailhost postfix/smtp[890]: HIJKLMN5678: to=<spam@h>, relay=filter.example.com[10.0.0.9]:10024, delay=1.5, delays=0.1/0.2/0.3/0.9, dsn=2.7.0, status=sent (250 2.7.0 Ok, discarded, id=19653-19 - spam)`,
	)

	msg, ok := e.Live()["HIJKLMN5678"]
	require.True(t, ok)
	inst, ok := msg.Instances[mailmsg.RecipientKey{To: "spam@h"}]
	require.True(t, ok)
	assert.Equal(t, mailmsg.InstanceMessageSpam, inst.State)
	assert.Equal(t, "19653-19", inst.SpamID)
	assert.NotEqual(t, mailmsg.InstanceMessageQueued, inst.State)
}

// Deferred then queued: relay/newqueueid land correctly, with the
// relay-port bug from the reference corrected (port into RelayPort,
// not RelayHostIP).
func TestEngine_DeferredThenQueuedSetsRelayCorrectly(t *testing.T) {
	e := New(2026)
	feed(t, e,
		`Jan 10 09:40:00 mailhost postfix/amavisd/smtpd[900]: OPQRSTU9012: client=mail.example.com[10.0.0.5]`,
		`Jan 10 09:40:01 mailhost postfix/cleanup[901]: OPQRSTU9012: message-id=<deferred@h>`,
		`Jan 10 09:40:02 mailhost postfix/smtp[902]: OPQRSTU9012: to=<r@h>, relay=mx.example.com[10.0.0.20]:25, delay=5.0, delays=0.1/0.2/0.3/4.4, dsn=4.4.2, status=deferred (connection timed out)`,
		`Jan 10 09:40:03 mailhost postfix/smtp[903]: OPQRSTU9012: to=<r@h>, relay=mx.example.com[10.0.0.20]:25, delay=1.2, delays=0.1/0.2/0.3/0.6, dsn=2.0.0, status=sent (250 2.0.0 from MTA queued as NEWQID12345)`,
	)

	msg, ok := e.Live()["OPQRSTU9012"]
	require.True(t, ok)
	inst, ok := msg.Instances[mailmsg.RecipientKey{To: "r@h"}]
	require.True(t, ok)
	assert.Equal(t, mailmsg.InstanceMessageQueued, inst.State)
	assert.Equal(t, "NEWQID12345", inst.NewQueueID)
	assert.Equal(t, "mx.example.com", inst.RelayHostname)
	assert.Equal(t, "10.0.0.20", inst.RelayHostIP)
	assert.Equal(t, "25", inst.RelayPort)
}

// Milter reject at end-of-message retires the MailMessage in
// MILTERREJECT, not MSGDONE.
func TestEngine_MilterRejectRetires(t *testing.T) {
	e := New(2026)
	feed(t, e,
		`Jan 10 09:50:00 mailhost postfix/amavisd/smtpd[999]: VWXYZAB3456: client=mail.example.com[10.0.0.5]`,
		`Jan 10 09:50:01 mailhost postfix/cleanup[1000]: VWXYZAB3456: message-id=<reject@h>`,
		`Jan 10 09:50:02 mailhost postfix/cleanup[1000]: VWXYZAB3456: milter-reject: END-OF-MESSAGE from mail.example.com[10.0.0.5]: 5.7.1 Message rejected due to policy`,
	)

	require.Empty(t, e.Live())
	last := e.Processed()[len(e.Processed())-1]
	assert.Equal(t, mailmsg.StateMilterReject, last.State)
	assert.Equal(t, "<reject@h>", last.MessageID)
}

func TestEngine_ConsolidateGroupsByMessageID(t *testing.T) {
	e := New(2026)
	feed(t, e,
		`Jan 10 09:00:00 mailhost postfix/pickup[2268]: 17442321AC9: uid=498 from=<zimbra>`,
		`Jan 10 09:00:01 mailhost postfix/cleanup[6880]: 17442321AC9: message-id=<x@h>`,
		`Jan 10 09:00:02 mailhost postfix/qmgr[3569]: 17442321AC9: from=<zimbra@h>, size=744, nrcpt=1 (queue active)`,
		`Jan 10 09:00:03 mailhost postfix/lmtp[9246]: 17442321AC9: to=<u@h>, relay=mail.example.com[172.16.20.3]:7025, delay=0.06, delays=0/0/0.01/0.05, dsn=2.1.5, status=sent (250 2.1.5 Delivery OK)`,
		`Jan 10 09:00:04 mailhost postfix/qmgr[3569]: 17442321AC9: removed`,
	)

	first := e.Consolidate()
	second := e.Consolidate()
	assert.Equal(t, first, second)

	found := false
	for _, cm := range first {
		if cm.MessageID == "<x@h>" {
			found = true
			assert.Contains(t, cm.Recipients, mailmsg.RecipientKey{To: "u@h"})
		}
	}
	assert.True(t, found)
}
