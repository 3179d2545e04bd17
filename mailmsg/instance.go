// Package mailmsg implements the MailMessage and MailMessageInstance
// state machines of the correlation engine (spec.md §4.4, §4.5): the
// per-queue-identifier mail object and its per-recipient sub-objects.
package mailmsg

import (
	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/faults"
)

// InstanceState is one value of MailMessageInstance's state machine.
type InstanceState string

const (
	InstanceInit             InstanceState = "INIT"
	InstanceMessageQueued    InstanceState = "MESSAGE_QUEUED"
	InstanceLocallyDelivered InstanceState = "LOCALY_DELIVERED"
	InstanceMessageBounced   InstanceState = "MESSAGE_BOUNCED"
	InstanceMessageSpam      InstanceState = "MESSAGE_SPAM"
	InstanceMessageRejected  InstanceState = "MESSAGE_REJECTED"
	InstanceMessageDeferred  InstanceState = "MESSAGE_DEFERRED"
	InstanceAmavis10024      InstanceState = "AMAVIS_10024"
	InstanceAmavis10026      InstanceState = "AMAVIS_10026"
)

// RecipientKey is the pair ⟨final recipient, original recipient⟩ that
// keys a MailMessage's instances map. HasOrigTo distinguishes "no
// orig_to field present" from "orig_to present and equal to the empty
// string", per spec.md §9's recipient-key note.
type RecipientKey struct {
	To        string
	OrigTo    string
	HasOrigTo bool
}

// RecipientKeyFrom builds a RecipientKey from a classified record's
// "to"/"orig_to" fields, honoring the absent-vs-empty distinction.
func RecipientKeyFrom(fields map[string]string) RecipientKey {
	origTo, has := fields["orig_to"]
	return RecipientKey{To: fields["to"], OrigTo: origTo, HasOrigTo: has}
}

// MailMessageInstance tracks the disposition of a single recipient of
// a MailMessage.
type MailMessageInstance struct {
	RcptTo RecipientKey
	State  InstanceState

	// NewQueueID is the downstream queue id minted by an internal
	// filter (e.g. Amavis re-injecting the message). Set at most once.
	NewQueueID string
	hasNewQID  bool

	// RelayHostname/RelayHostIP/RelayPort describe the next hop that
	// accepted the message for this recipient. Set at most once as a
	// triple. The reference implementation (original_source/LogParser.py)
	// writes the captured relay port into the relayhostip slot in the
	// AMAVIS_10026/AMAVIS_10024/MESSAGE_DEFERRED transitions; this is
	// corrected here per spec.md §9's preferred resolution rather than
	// replicated.
	RelayHostname string
	RelayHostIP   string
	RelayPort     string
	hasRelay      bool

	// SpamID is the Amavis-assigned identifier recorded when the
	// message was discarded as spam.
	SpamID string
}

// NewInstance creates a fresh, INIT-state instance for rcptTo.
func NewInstance(rcptTo RecipientKey) *MailMessageInstance {
	return &MailMessageInstance{RcptTo: rcptTo, State: InstanceInit}
}

func (i *MailMessageInstance) setNewQueueID(rec classify.ParsedRecord) error {
	newID := rec.Fields["newqueueid"]
	if i.hasNewQID {
		return &faults.InvariantViolation{Field: "newqueueid", Previous: i.NewQueueID, Attempt: newID, Line: rec.Line}
	}
	i.NewQueueID = newID
	i.hasNewQID = true
	return nil
}

func (i *MailMessageInstance) setRelay(rec classify.ParsedRecord) error {
	if i.hasRelay {
		return &faults.InvariantViolation{
			Field:    "relay",
			Previous: i.RelayHostname + "/" + i.RelayHostIP + "/" + i.RelayPort,
			Attempt:  rec.Fields["relayhostname"] + "/" + rec.Fields["relayhostip"] + "/" + rec.Fields["relayport"],
			Line:     rec.Line,
		}
	}
	i.RelayHostname = rec.Fields["relayhostname"]
	i.RelayHostIP = rec.Fields["relayhostip"]
	i.RelayPort = rec.Fields["relayport"]
	i.hasRelay = true
	return nil
}

// unexpected builds the UnexpectedEvent fault for this instance.
func (i *MailMessageInstance) unexpected(rec classify.ParsedRecord) error {
	return &faults.UnexpectedEvent{
		Machine: "MailMessageInstance[" + string(i.RcptTo.To) + "]",
		State:   string(i.State),
		Rule:    rec.Rule,
		Line:    rec.Line,
	}
}

// Process drives the instance's state machine with one classified
// record. Terminal states (MESSAGE_BOUNCED, MESSAGE_REJECTED,
// MESSAGE_SPAM) reject every further event.
func (i *MailMessageInstance) Process(rec classify.ParsedRecord) error {
	switch i.State {
	case InstanceInit:
		switch rec.Rule {
		case "message_queued":
			if err := i.setNewQueueID(rec); err != nil {
				return err
			}
			if err := i.setRelay(rec); err != nil {
				return err
			}
			i.State = InstanceMessageQueued
		case "message_queued_all":
			if err := i.setRelay(rec); err != nil {
				return err
			}
			i.State = InstanceMessageQueued
		case "local_delivery":
			i.State = InstanceLocallyDelivered
		case "message_deferred_smtp", "message_deferred_error":
			i.State = InstanceMessageDeferred
		case "message_bounced_smtp", "message_bounced_error":
			i.State = InstanceMessageBounced
		case "message_spam_discarded":
			i.SpamID = rec.Fields["spamid"]
			i.State = InstanceMessageSpam
		case "smtpd_amavis_10026_queueid":
			i.State = InstanceAmavis10026
		default:
			return i.unexpected(rec)
		}

	case InstanceAmavis10026:
		switch rec.Rule {
		case "message_queued":
			if err := i.setNewQueueID(rec); err != nil {
				return err
			}
			if err := i.setRelay(rec); err != nil {
				return err
			}
			i.State = InstanceMessageQueued
		case "smtpd_amavis_10024_queueid":
			i.State = InstanceAmavis10024
		default:
			return i.unexpected(rec)
		}

	case InstanceAmavis10024:
		switch rec.Rule {
		case "smtpd_address_rejected_queueid":
			i.State = InstanceMessageRejected
		case "message_queued":
			if err := i.setNewQueueID(rec); err != nil {
				return err
			}
			if err := i.setRelay(rec); err != nil {
				return err
			}
			i.State = InstanceMessageQueued
		default:
			return i.unexpected(rec)
		}

	case InstanceMessageQueued:
		switch rec.Rule {
		case "message_queued", "message_queued_all":
			// Redirections, mailing lists, and similar cause the same
			// recipient to be queued more than once under one queue id.
			// Tolerated as a no-op rather than treated as a conflict.
		default:
			return i.unexpected(rec)
		}

	case InstanceMessageDeferred:
		switch rec.Rule {
		case "message_queued":
			if err := i.setNewQueueID(rec); err != nil {
				return err
			}
			if err := i.setRelay(rec); err != nil {
				return err
			}
			i.State = InstanceMessageQueued
		case "message_queued_all":
			if err := i.setRelay(rec); err != nil {
				return err
			}
			i.State = InstanceMessageQueued
		case "message_deferred_smtp", "message_deferred_error":
			// Repeated deferral of the same recipient; tolerated.
		default:
			return i.unexpected(rec)
		}

	case InstanceLocallyDelivered:
		switch rec.Rule {
		case "local_delivery":
			// Tolerated duplicate, same rationale as MESSAGE_QUEUED above.
		default:
			return i.unexpected(rec)
		}

	case InstanceMessageBounced, InstanceMessageRejected, InstanceMessageSpam:
		return i.unexpected(rec)

	default:
		return &faults.UnhandledState{Machine: "MailMessageInstance", State: string(i.State)}
	}

	return nil
}
