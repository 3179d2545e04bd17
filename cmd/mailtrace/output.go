package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/kumina/mailtrace/engine"
)

// dump writes cms to w in format ("text" or "json").
func dump(w io.Writer, format string, cms []engine.ConsolidatedMessage) error {
	switch format {
	case "json":
		return dumpJSON(w, cms)
	default:
		return dumpText(w, cms)
	}
}

type jsonRecipient struct {
	To        string `json:"to"`
	OrigTo    string `json:"orig_to,omitempty"`
	HasOrigTo bool   `json:"has_orig_to"`
}

type jsonMessage struct {
	MessageID  string          `json:"message_id,omitempty"`
	QueueID    string          `json:"queue_id"`
	MailFrom   string          `json:"mail_from"`
	Recipients []jsonRecipient `json:"recipients"`
	Members    int             `json:"members"`
}

func dumpJSON(w io.Writer, cms []engine.ConsolidatedMessage) error {
	out := make([]jsonMessage, 0, len(cms))
	for _, cm := range cms {
		jm := jsonMessage{
			MessageID: cm.MessageID,
			QueueID:   cm.QueueID,
			MailFrom:  cm.MailFrom,
			Members:   len(cm.Members),
		}
		for _, rk := range cm.Recipients {
			jm.Recipients = append(jm.Recipients, jsonRecipient{To: rk.To, OrigTo: rk.OrigTo, HasOrigTo: rk.HasOrigTo})
		}
		out = append(out, jm)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func dumpText(w io.Writer, cms []engine.ConsolidatedMessage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MESSAGE-ID\tQUEUE-ID\tFROM\tRECIPIENTS\tMEMBERS")
	for _, cm := range cms {
		messageID := cm.MessageID
		if messageID == "" {
			messageID = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", messageID, cm.QueueID, cm.MailFrom, len(cm.Recipients), len(cm.Members))
	}
	return tw.Flush()
}
