package daemonproc

import (
	"testing"

	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostfixProcess_ConnectAmavisQueueIDMintsMessage(t *testing.T) {
	p := NewPostfixProcess("123")

	res, err := p.Process(classify.ParsedRecord{Rule: "smtpd_client_connect", Fields: map[string]string{"clienthostname": "mail.example.com", "clienthostip": "10.0.0.5"}})
	require.NoError(t, err)
	assert.Equal(t, CommandNone, res.Cmd)
	assert.Equal(t, PostfixConnected, p.State)

	res, err = p.Process(classify.ParsedRecord{Rule: "smtpd_amavis_10026", Fields: map[string]string{"from": "a@b.com", "to": "c@d.com"}})
	require.NoError(t, err)
	assert.Equal(t, PostfixAmavis10026, p.State)

	res, err = p.Process(classify.ParsedRecord{Rule: "smtpd_queueid_identified", Fields: map[string]string{"queueid": "ABCDEFG1234"}})
	require.NoError(t, err)
	assert.Equal(t, CommandAddMsg, res.Cmd)
	require.NotNil(t, res.Msg)
	assert.Equal(t, "ABCDEFG1234", res.Msg.QueueID)
	assert.Equal(t, PostfixMsgDone, p.State)
}

func TestPostfixProcess_DisconnectAnyTimeDelsPID(t *testing.T) {
	p := NewPostfixProcess("123")
	_, err := p.Process(classify.ParsedRecord{Rule: "smtpd_client_connect", Fields: map[string]string{}})
	require.NoError(t, err)

	res, err := p.Process(classify.ParsedRecord{Rule: "smtpd_client_disconnect"})
	require.NoError(t, err)
	assert.Equal(t, CommandDelPID, res.Cmd)
}

func TestPostfixProcess_UnexpectedEventFromInit(t *testing.T) {
	p := NewPostfixProcess("123")
	_, err := p.Process(classify.ParsedRecord{Rule: "smtpd_client_disconnect"})
	require.Error(t, err)
	var unexpected *faults.UnexpectedEvent
	assert.ErrorAs(t, err, &unexpected)
}

func TestPostfixProcess_MsgDoneAdmitsAnotherAmavisHit(t *testing.T) {
	p := NewPostfixProcess("123")
	require.NoError(t, stepPostfix(t, p, "smtpd_client_connect", nil))
	require.NoError(t, stepPostfix(t, p, "smtpd_amavis_10026", map[string]string{"from": "a@b.com", "to": "c@d.com"}))
	res, err := p.Process(classify.ParsedRecord{Rule: "smtpd_queueid_identified", Fields: map[string]string{"queueid": "ABCDEFG1234"}})
	require.NoError(t, err)
	require.NotNil(t, res.Msg)

	require.NoError(t, stepPostfix(t, p, "smtpd_amavis_10026", map[string]string{"from": "e@f.com", "to": "g@h.com"}))
	assert.Equal(t, PostfixAmavis10026, p.State)
	assert.Equal(t, []string{"e@f.com"}, []string{p.FromTo[0].From})
}

func stepPostfix(t *testing.T, p *PostfixProcess, rule string, fields map[string]string) error {
	t.Helper()
	_, err := p.Process(classify.ParsedRecord{Rule: rule, Fields: fields, Line: rule})
	return err
}
