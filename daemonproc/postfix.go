package daemonproc

import (
	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/faults"
	"github.com/kumina/mailtrace/mailmsg"
)

// PostfixState is one value of PostfixProcess's state machine
// (spec.md §4.3.1).
type PostfixState string

const (
	PostfixInit        PostfixState = "INIT"
	PostfixConnected   PostfixState = "CONNECTED"
	PostfixAmavis10026 PostfixState = "AMAVIS_10026"
	PostfixMsgDone     PostfixState = "MSGDONE"
)

// PostfixProcess models one smtpd front-end process: the connecting
// client and the ⟨from, to⟩ pairs accumulated across its Amavis-10026
// filter hits, until a queue id is minted for them.
type PostfixProcess struct {
	PID            string
	State          PostfixState
	ClientHostname string
	ClientHostIP   string
	FromTo         []mailmsg.FromTo
}

// NewPostfixProcess returns a fresh INIT-state PostfixProcess.
func NewPostfixProcess(pid string) *PostfixProcess {
	return &PostfixProcess{PID: pid, State: PostfixInit}
}

func (p *PostfixProcess) unexpected(rec classify.ParsedRecord) error {
	return &faults.UnexpectedEvent{Machine: "PostfixProcess[" + p.PID + "]", State: string(p.State), Rule: rec.Rule, Line: rec.Line}
}

// Process drives the machine with one classified record. Lines
// addressed only to diagnostics (SASL warnings, TLS errors, lost
// connections, ...) route as RouterPID and never reach this method.
func (p *PostfixProcess) Process(rec classify.ParsedRecord) (Result, error) {
	switch p.State {
	case PostfixInit:
		if rec.Rule != "smtpd_client_connect" {
			return Result{}, p.unexpected(rec)
		}
		p.ClientHostname = rec.Fields["clienthostname"]
		p.ClientHostIP = rec.Fields["clienthostip"]
		p.State = PostfixConnected
		return Result{}, nil

	case PostfixConnected:
		switch rec.Rule {
		case "smtpd_amavis_10026":
			p.FromTo = append(p.FromTo, mailmsg.FromTo{From: rec.Fields["from"], To: rec.Fields["to"]})
			p.State = PostfixAmavis10026
			return Result{}, nil
		case "smtpd_client_disconnect":
			return Result{Cmd: CommandDelPID}, nil
		default:
			return Result{}, p.unexpected(rec)
		}

	case PostfixAmavis10026:
		switch rec.Rule {
		case "smtpd_amavis_10026":
			p.FromTo = append(p.FromTo, mailmsg.FromTo{From: rec.Fields["from"], To: rec.Fields["to"]})
			return Result{}, nil
		case "smtpd_queueid_identified":
			msg, err := mailmsg.New(mailmsg.SourceSMTPD, rec.Fields["queueid"], p.FromTo, p.ClientHostname, p.ClientHostIP)
			if err != nil {
				return Result{}, err
			}
			p.State = PostfixMsgDone
			return Result{Cmd: CommandAddMsg, Msg: msg}, nil
		case "smtpd_client_disconnect":
			return Result{Cmd: CommandDelPID}, nil
		default:
			return Result{}, p.unexpected(rec)
		}

	case PostfixMsgDone:
		switch rec.Rule {
		case "smtpd_client_disconnect":
			return Result{Cmd: CommandDelPID}, nil
		case "smtpd_amavis_10026":
			p.FromTo = []mailmsg.FromTo{{From: rec.Fields["from"], To: rec.Fields["to"]}}
			p.State = PostfixAmavis10026
			return Result{}, nil
		default:
			return Result{}, p.unexpected(rec)
		}

	default:
		return Result{}, &faults.UnhandledState{Machine: "PostfixProcess", State: string(p.State)}
	}
}
