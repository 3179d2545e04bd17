package mailmsg

import (
	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/faults"
)

// Source names where a MailMessage originated, per spec.md §3.
type Source string

const (
	SourceSMTPD      Source = "SMTPD"
	SourceDKIMMilter Source = "DKIMMILTER"
	SourceAmavisd    Source = "AMAVISD"
	SourceInternal   Source = "INTERNAL"
	SourceLocal      Source = "LOCAL"
)

// State is one value of MailMessage's state machine (spec.md §4.4).
type State string

const (
	StateInit                State = "INIT"
	StateQueueIDIdentified   State = "QUEUEID_IDENTIFIED"
	StateMessageIDIdentified State = "MESSAGEID_IDENTIFIED"
	StateMsgDone             State = "MSGDONE"
	StateMilterReject        State = "MILTERREJECT"
)

// Command is what MailMessage.Process asks the owning engine to do in
// response to a record.
type Command int

const (
	CommandNone Command = iota
	CommandMessageDone
)

// FromTo is one envelope ⟨sender, recipient⟩ pair accumulated by a
// PostfixProcess before the queue id was minted.
type FromTo struct {
	From, To string
}

// MailMessage is the per-queue-identifier mail object: spec.md §3/§4.4.
type MailMessage struct {
	Source         Source
	QueueID        string
	MessageID      string
	hasMessageID   bool
	MailFrom       string
	hasMailFrom    bool
	ClientHostname string
	ClientHostIP   string
	State          State

	Records   []classify.ParsedRecord
	Instances map[RecipientKey]*MailMessageInstance

	// referencedQueueIDs carries the open question of spec.md §9: new
	// queue ids captured by delivery_status_error/delivery_status_success
	// are recorded here rather than silently joined back onto this
	// message, since the source never performs that join either.
	referencedQueueIDs []string
}

// New constructs a MailMessage. fromTo seeds one INIT-state instance
// per distinct recipient and the message's single envelope sender; a
// conflicting sender across pairs is an InvariantViolation, matching
// the "single mail_from" rule PostfixProcess enforces before emitting
// AddMsg (spec.md §4.3.1).
func New(source Source, queueid string, fromTo []FromTo, clienthostname, clienthostip string) (*MailMessage, error) {
	m := &MailMessage{
		Source:         source,
		QueueID:        queueid,
		ClientHostname: clienthostname,
		ClientHostIP:   clienthostip,
		Instances:      make(map[RecipientKey]*MailMessageInstance),
	}
	if queueid != "" {
		m.State = StateQueueIDIdentified
	} else {
		m.State = StateInit
	}

	for _, ft := range fromTo {
		key := RecipientKey{To: ft.To}
		if _, ok := m.Instances[key]; !ok {
			m.Instances[key] = NewInstance(key)
		}
		if err := m.ensureMailFrom(ft.From, classify.ParsedRecord{Line: "(accumulated smtpd_amavis_10026)"}); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// MessageIDOrEmpty returns the message-id header value, or "" if none has
// been identified yet, matching the reference's getMessageID().
func (m *MailMessage) MessageIDOrEmpty() string {
	if m.hasMessageID {
		return m.MessageID
	}
	return ""
}

// ReferencedQueueIDs exposes the new queue ids mentioned by
// delivery_status_error/delivery_status_success records that this
// message consumed, without attempting to join them back onto a
// MailMessage object — see spec.md §9.
func (m *MailMessage) ReferencedQueueIDs() []string {
	return m.referencedQueueIDs
}

func (m *MailMessage) ensureMailFrom(from string, rec classify.ParsedRecord) error {
	if !m.hasMailFrom {
		m.MailFrom = from
		m.hasMailFrom = true
		return nil
	}
	if m.MailFrom != from {
		return &faults.InvariantViolation{Field: "mail_from", Previous: m.MailFrom, Attempt: from, Line: rec.Line}
	}
	return nil
}

func (m *MailMessage) instanceFor(key RecipientKey) *MailMessageInstance {
	inst, ok := m.Instances[key]
	if !ok {
		inst = NewInstance(key)
		m.Instances[key] = inst
	}
	return inst
}

func (m *MailMessage) unexpected(rec classify.ParsedRecord) error {
	return &faults.UnexpectedEvent{Machine: "MailMessage[" + m.QueueID + "]", State: string(m.State), Rule: rec.Rule, Line: rec.Line}
}

// orig_to-forbidding rules: smtpd_amavis_10024_queueid,
// smtpd_amavis_10026_queueid and smtpd_address_rejected_queueid are
// documented as never carrying an orig_to field; a record that does is
// a contract violation against the catalog, not a recoverable case.
func rejectOrigTo(rec classify.ParsedRecord) error {
	if _, has := rec.Fields["orig_to"]; has {
		return &faults.UnexpectedEvent{Machine: "MailMessage", State: "n/a", Rule: rec.Rule + ": unexpected orig_to field", Line: rec.Line}
	}
	return nil
}

var delegatedDeliveryRules = map[string]bool{
	"message_deferred_smtp": true, "message_deferred_error": true,
	"message_bounced_smtp": true, "message_bounced_error": true,
	"message_queued": true, "message_queued_all": true,
	"message_spam_discarded": true, "local_delivery": true,
}

// Process drives the MailMessage's state machine with one classified
// record. Every consumed record is appended to the event log
// regardless of whether it changed state (spec.md §4.4).
func (m *MailMessage) Process(rec classify.ParsedRecord) (Command, error) {
	m.Records = append(m.Records, rec)

	switch m.State {
	case StateInit:
		if rec.Rule != "pickup" {
			return CommandNone, m.unexpected(rec)
		}
		m.QueueID = rec.Fields["queueid"]
		m.State = StateQueueIDIdentified
		return CommandNone, nil

	case StateQueueIDIdentified:
		switch rec.Rule {
		case "messageid_identified":
			m.MessageID = rec.Fields["messageid"]
			m.hasMessageID = true
			m.State = StateMessageIDIdentified
			return CommandNone, nil

		case "smtpd_amavis_10024_queueid", "smtpd_amavis_10026_queueid", "smtpd_address_rejected_queueid":
			if err := rejectOrigTo(rec); err != nil {
				return CommandNone, err
			}
			if err := m.ensureMailFrom(rec.Fields["from"], rec); err != nil {
				return CommandNone, err
			}
			key := RecipientKey{To: rec.Fields["to"]}
			inst := m.instanceFor(key)
			if err := inst.Process(rec); err != nil {
				return CommandNone, err
			}
			return CommandNone, nil

		default:
			return CommandNone, m.unexpected(rec)
		}

	case StateMessageIDIdentified:
		switch {
		case rec.Rule == "from_identified":
			// Open question (spec.md §9): the source keeps a
			// commented-out prefix-tolerant check alongside its active
			// strict-equality check. Strict equality is implemented here,
			// matching the source's actual behavior; a mismatch is
			// surfaced rather than silently accepted as a valid prefix.
			if err := m.ensureMailFrom(rec.Fields["from"], rec); err != nil {
				return CommandNone, err
			}
			return CommandNone, nil

		case delegatedDeliveryRules[rec.Rule]:
			key := RecipientKeyFrom(rec.Fields)
			inst := m.instanceFor(key)
			if err := inst.Process(rec); err != nil {
				return CommandNone, err
			}
			return CommandNone, nil

		case rec.Rule == "message_removed":
			m.State = StateMsgDone
			return CommandMessageDone, nil

		case rec.Rule == "cleanup_milter_reject":
			m.State = StateMilterReject
			return CommandMessageDone, nil

		case rec.Rule == "delivery_status_error", rec.Rule == "delivery_status_success":
			if newID := rec.Fields["newqueueid"]; newID != "" {
				m.referencedQueueIDs = append(m.referencedQueueIDs, newID)
			}
			return CommandNone, nil

		case rec.Rule == "message_expired":
			// No new queue id is captured by this rule; nothing to link.
			return CommandNone, nil

		case rec.Rule == "smtp_unavailable", rec.Rule == "message_deferred_spam", rec.Rule == "smtp_pix_workarounds":
			return CommandNone, nil

		default:
			return CommandNone, m.unexpected(rec)
		}

	default:
		return CommandNone, &faults.UnhandledState{Machine: "MailMessage", State: string(m.State)}
	}
}
