package engine

import (
	"sort"

	"github.com/kumina/mailtrace/mailmsg"
)

// ConsolidatedMessage is one externally-originated logical message:
// every retired MailMessage sharing a messageid, re-grouped regardless
// of internal re-queueing (spec.md §2/§6).
type ConsolidatedMessage struct {
	MessageID  string
	QueueID    string // the first member's queueid
	MailFrom   string
	Recipients []mailmsg.RecipientKey
	Members    []*mailmsg.MailMessage
}

// Consolidate groups every retired MailMessage by messageid. It is a
// pure function of Processed() — calling it twice over an unchanged
// engine yields the same grouping in the same order (spec.md §8's
// consolidation idempotence property).
func (e *Engine) Consolidate() []ConsolidatedMessage {
	groups := make(map[string][]*mailmsg.MailMessage)
	var order []string

	for _, msg := range e.processed {
		key := msg.MessageIDOrEmpty()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], msg)
	}

	result := make([]ConsolidatedMessage, 0, len(order))
	for _, key := range order {
		members := groups[key]
		first := members[0]

		seen := make(map[mailmsg.RecipientKey]bool)
		var recipients []mailmsg.RecipientKey
		for _, m := range members {
			keys := make([]mailmsg.RecipientKey, 0, len(m.Instances))
			for rk := range m.Instances {
				keys = append(keys, rk)
			}
			sort.Slice(keys, func(a, b int) bool {
				if keys[a].To != keys[b].To {
					return keys[a].To < keys[b].To
				}
				if keys[a].OrigTo != keys[b].OrigTo {
					return keys[a].OrigTo < keys[b].OrigTo
				}
				return !keys[a].HasOrigTo && keys[b].HasOrigTo
			})
			for _, rk := range keys {
				if seen[rk] {
					continue
				}
				seen[rk] = true
				recipients = append(recipients, rk)
			}
		}

		result = append(result, ConsolidatedMessage{
			MessageID:  key,
			QueueID:    first.QueueID,
			MailFrom:   first.MailFrom,
			Recipients: recipients,
			Members:    members,
		})
	}

	return result
}
