// Package daemonproc implements the PID-keyed daemon-process state
// machines of spec.md §4.3: PostfixProcess, DKIMMilterProcess, and
// AmavisdProcess, plus the AddMsg/DelPID command protocol (§4.3.3) and
// the tracker that owns the pid → DaemonProcess map.
package daemonproc

import (
	"github.com/kumina/mailtrace/catalog"
	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/faults"
	"github.com/kumina/mailtrace/mailmsg"
)

// Command is the instruction a DaemonProcess returns to its tracker
// after consuming one record.
type Command int

const (
	CommandNone Command = iota
	CommandAddMsg
	CommandDelPID
)

// Result carries a DaemonProcess's command plus the MailMessage payload
// when the command is CommandAddMsg.
type Result struct {
	Cmd Command
	Msg *mailmsg.MailMessage
}

// DaemonProcess is the common shape of the three per-PID machines.
type DaemonProcess interface {
	Process(rec classify.ParsedRecord) (Result, error)
}

// Tracker owns the pid → DaemonProcess live map (spec.md §3's
// "Ownership": created on first sighting of a PID in its routing
// class, destroyed on the matching disconnect or DelPID command).
type Tracker struct {
	byPID map[string]DaemonProcess
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byPID: make(map[string]DaemonProcess)}
}

// Dispatch locates or creates the DaemonProcess for rec's PID under
// router, drives it, and applies the returned command: CommandDelPID
// removes the tracker's entry, CommandAddMsg returns the new
// MailMessage for the caller to insert into its own queueid map
// (daemon processes never hold a reference to a MailMessage once
// emitted — spec.md §9).
func (t *Tracker) Dispatch(router catalog.Router, rec classify.ParsedRecord) (*mailmsg.MailMessage, error) {
	proc, ok := t.byPID[rec.PID]
	if !ok {
		var err error
		proc, err = newProcess(router, rec.PID)
		if err != nil {
			return nil, err
		}
		t.byPID[rec.PID] = proc
	}

	res, err := proc.Process(rec)
	if err != nil {
		return nil, err
	}

	switch res.Cmd {
	case CommandNone:
		return nil, nil
	case CommandAddMsg:
		return res.Msg, nil
	case CommandDelPID:
		delete(t.byPID, rec.PID)
		return nil, nil
	default:
		return nil, &faults.UnknownCommand{Machine: "daemonproc.Tracker", Command: "unknown"}
	}
}

func newProcess(router catalog.Router, pid string) (DaemonProcess, error) {
	switch router {
	case catalog.RouterPostfix:
		return NewPostfixProcess(pid), nil
	case catalog.RouterDKIMMilter:
		return newSimpleProcess(pid, dkimKind), nil
	case catalog.RouterAmavisd:
		return newSimpleProcess(pid, amavisKind), nil
	default:
		return nil, &faults.UnhandledState{Machine: "daemonproc.newProcess", State: string(router)}
	}
}
