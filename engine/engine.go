// Package engine implements the per-line dispatcher of spec.md §4.6 and
// the post-stream consolidation pass of §2/§6: the Engine type owns the
// live pid → DaemonProcess map (via daemonproc.Tracker), the live
// queueid → MailMessage map, and the list of retired MailMessages.
package engine

import (
	"fmt"

	"github.com/kumina/mailtrace/catalog"
	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/daemonproc"
	"github.com/kumina/mailtrace/mailmsg"
)

// Engine is one parse run: strictly single-threaded, one line
// classified and dispatched to completion before the next is read
// (spec.md §5).
type Engine struct {
	classifier *classify.Classifier
	daemons    *daemonproc.Tracker
	year       int

	messages  map[string]*mailmsg.MailMessage
	processed []*mailmsg.MailMessage
}

// New returns an Engine that stamps classified timestamps with year.
func New(year int) *Engine {
	return &Engine{
		classifier: classify.New(),
		daemons:    daemonproc.NewTracker(),
		year:       year,
		messages:   make(map[string]*mailmsg.MailMessage),
	}
}

// ProcessLine classifies and dispatches one syslog line. Any returned
// error is fatal to the run (spec.md §7): the caller should stop
// feeding lines and report the diagnostic.
func (e *Engine) ProcessLine(line string) error {
	rec, err := e.classifier.Classify(line, e.year)
	if err != nil {
		return err
	}
	return e.dispatch(rec)
}

func (e *Engine) dispatch(rec classify.ParsedRecord) error {
	switch rec.Router {
	case catalog.RouterPostfix, catalog.RouterDKIMMilter, catalog.RouterAmavisd:
		msg, err := e.daemons.Dispatch(rec.Router, rec)
		if err != nil {
			return err
		}
		if msg != nil {
			e.messages[msg.QueueID] = msg
		}
		return nil

	case catalog.RouterQueueID:
		return e.dispatchQueueID(rec)

	case catalog.RouterPID:
		// Auxiliary diagnostic line: classified, but contributes no
		// state change (spec.md §4.6 step 4).
		return nil

	default:
		return fmt.Errorf("engine: rule %q has unknown router %q", rec.Rule, rec.Router)
	}
}

func (e *Engine) dispatchQueueID(rec classify.ParsedRecord) error {
	qid := rec.Fields["queueid"]
	msg, ok := e.messages[qid]

	switch {
	case !ok:
		var err error
		switch rec.Rule {
		case "messageid_identified":
			msg, err = mailmsg.New(mailmsg.SourceInternal, qid, nil, "", "")
		case "pickup":
			// No queueid yet: the pickup event this same record drives,
			// right below, is what fills it in (spec.md §4.6 step 3).
			msg, err = mailmsg.New(mailmsg.SourceLocal, "", nil, "", "")
		default:
			// Event for a message whose prolog predates the log window.
			return nil
		}
		if err != nil {
			return err
		}
		e.messages[qid] = msg

	case rec.Rule == "messageid_identified":
		// A message-id line for a queueid still live is end-of-old-
		// message, even when it is the first message-id seen for a
		// message minted by a daemon process or by pickup: retire the
		// current MailMessage and start a fresh one in its place
		// (spec.md §4.6 step 3).
		e.processed = append(e.processed, msg)
		var err error
		msg, err = mailmsg.New(mailmsg.SourceInternal, qid, nil, "", "")
		if err != nil {
			return err
		}
		e.messages[qid] = msg
	}

	cmd, err := msg.Process(rec)
	if err != nil {
		return err
	}
	if cmd == mailmsg.CommandMessageDone {
		e.processed = append(e.processed, msg)
		delete(e.messages, qid)
	}
	return nil
}

// Processed returns every MailMessage retired so far, in retirement
// order.
func (e *Engine) Processed() []*mailmsg.MailMessage {
	return e.processed
}

// Live returns the MailMessages still keyed by queueid at the point
// of the call (e.g. at end of stream, messages whose prolog never
// resolved to a terminal state).
func (e *Engine) Live() map[string]*mailmsg.MailMessage {
	return e.messages
}
