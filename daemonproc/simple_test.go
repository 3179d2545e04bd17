package daemonproc

import (
	"testing"

	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/mailmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleProcess_DKIM_ConnectThenQueueIDIdentified(t *testing.T) {
	p := newSimpleProcess("555", dkimKind)

	res, err := p.Process(classify.ParsedRecord{Rule: "dkimmilter_client_connect"})
	require.NoError(t, err)
	assert.Equal(t, CommandNone, res.Cmd)

	res, err = p.Process(classify.ParsedRecord{Rule: "dkimmilter_queueid_identified", Fields: map[string]string{"queueid": "ABCDEFG1234"}})
	require.NoError(t, err)
	assert.Equal(t, CommandAddMsg, res.Cmd)
	assert.Equal(t, mailmsg.SourceDKIMMilter, res.Msg.Source)
}

func TestSimpleProcess_Amavis_QueueIDIdentifiedToleratedFromInit(t *testing.T) {
	// A log window that starts mid-stream can see the queue-id event
	// before ever observing a connect for this PID.
	p := newSimpleProcess("777", amavisKind)

	res, err := p.Process(classify.ParsedRecord{Rule: "amavisd_queueid_identified", Fields: map[string]string{"queueid": "ABCDEFG1234"}})
	require.NoError(t, err)
	assert.Equal(t, CommandAddMsg, res.Cmd)
	assert.Equal(t, mailmsg.SourceAmavisd, res.Msg.Source)
}

func TestSimpleProcess_Disconnect(t *testing.T) {
	p := newSimpleProcess("555", dkimKind)
	res, err := p.Process(classify.ParsedRecord{Rule: "dkimmilter_client_disconnect"})
	require.NoError(t, err)
	assert.Equal(t, CommandDelPID, res.Cmd)
}

func TestSimpleProcess_UnexpectedEvent(t *testing.T) {
	p := newSimpleProcess("555", dkimKind)
	_, err := p.Process(classify.ParsedRecord{Rule: "amavisd_queueid_identified"})
	require.Error(t, err)
}
