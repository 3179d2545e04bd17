package daemonproc

import (
	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/faults"
	"github.com/kumina/mailtrace/mailmsg"
)

// simpleState is one value shared by DKIMMilterProcess and
// AmavisdProcess, both simple {INIT, CONNECTED} machines (spec.md
// §4.3.2).
type simpleState string

const (
	simpleInit      simpleState = "INIT"
	simpleConnected simpleState = "CONNECTED"
)

// simpleKind names the three rules and the MailMessage source that
// distinguish a DKIMMilterProcess from an AmavisdProcess — the two
// machines are otherwise identical, so one implementation serves both
// rather than two near-duplicate types.
type simpleKind struct {
	label             string
	connect           string
	queueIDIdentified string
	disconnect        string
	source            mailmsg.Source
}

var dkimKind = simpleKind{
	label:             "DKIMMilterProcess",
	connect:           "dkimmilter_client_connect",
	queueIDIdentified: "dkimmilter_queueid_identified",
	disconnect:        "dkimmilter_client_disconnect",
	source:            mailmsg.SourceDKIMMilter,
}

var amavisKind = simpleKind{
	label:             "AmavisdProcess",
	connect:           "amavisd_client_connect",
	queueIDIdentified: "amavisd_queueid_identified",
	disconnect:        "amavisd_client_disconnect",
	source:            mailmsg.SourceAmavisd,
}

// simpleProcess implements the DKIMMilterProcess/AmavisdProcess
// machine for a given simpleKind.
type simpleProcess struct {
	pid   string
	state simpleState
	kind  simpleKind
}

func newSimpleProcess(pid string, kind simpleKind) *simpleProcess {
	return &simpleProcess{pid: pid, state: simpleInit, kind: kind}
}

// Process admits queueid_identified from either INIT or CONNECTED: a
// log starting mid-stream after rotation can see the queue-id event
// before ever seeing a connect for that PID (spec.md §4.3.2 calls this
// out explicitly for the Amavis variant; both machines share the rule
// here since the transition table in §4.3.2 states it generically).
func (p *simpleProcess) Process(rec classify.ParsedRecord) (Result, error) {
	switch rec.Rule {
	case p.kind.connect:
		p.state = simpleConnected
		return Result{}, nil
	case p.kind.queueIDIdentified:
		msg, err := mailmsg.New(p.kind.source, rec.Fields["queueid"], nil, "", "")
		if err != nil {
			return Result{}, err
		}
		p.state = simpleConnected
		return Result{Cmd: CommandAddMsg, Msg: msg}, nil
	case p.kind.disconnect:
		return Result{Cmd: CommandDelPID}, nil
	default:
		return Result{}, &faults.UnexpectedEvent{Machine: p.kind.label + "[" + p.pid + "]", State: string(p.state), Rule: rec.Rule, Line: rec.Line}
	}
}
