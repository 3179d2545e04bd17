// Package metrics instruments engine.Engine with Prometheus counters,
// the way the teacher's PostfixExporter instruments its own line
// classification: one counter per terminal disposition, one for
// lines the classifier couldn't place, and one broken down by fault
// kind for the engine's fatal error classes (SPEC_FULL.md §B).
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kumina/mailtrace/classify"
	"github.com/kumina/mailtrace/engine"
	"github.com/kumina/mailtrace/faults"
)

// Instrumented wraps an *engine.Engine, counting every line fed
// through ProcessLine and registering as a prometheus.Collector.
type Instrumented struct {
	engine *engine.Engine

	linesTotal        prometheus.Counter
	unmatchedLines    prometheus.Counter
	faultsTotal       *prometheus.CounterVec
	messagesRetired   *prometheus.CounterVec
	instancesRetired  *prometheus.CounterVec
	logUnsupportedMsg bool
}

// Wrap returns an Instrumented engine. If logUnsupported is set, every
// unmatched line is also logged at the point it's seen, mirroring the
// teacher's -log.unsupported flag.
func Wrap(e *engine.Engine, logUnsupported bool) *Instrumented {
	return &Instrumented{
		engine: e,
		linesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailtrace",
			Name:      "lines_processed_total",
			Help:      "Syslog lines fed into the correlation engine.",
		}),
		unmatchedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailtrace",
			Name:      "unmatched_lines_total",
			Help:      "Lines that matched no catalog rule.",
		}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtrace",
			Name:      "faults_total",
			Help:      "Fatal state-machine faults, by kind.",
		}, []string{"kind"}),
		messagesRetired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtrace",
			Name:      "messages_retired_total",
			Help:      "MailMessages retired, by final state.",
		}, []string{"state"}),
		instancesRetired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtrace",
			Name:      "recipient_instances_total",
			Help:      "Recipient instances observed on a retired MailMessage, by disposition.",
		}, []string{"state"}),
		logUnsupportedMsg: logUnsupported,
	}
}

// ProcessLine feeds line to the wrapped engine and updates counters
// from the outcome: a classification/state-machine error increments
// the matching fault counter, and a record that caused one or more
// MailMessages to retire increments messagesRetired/instancesRetired
// for each.
func (i *Instrumented) ProcessLine(line string) error {
	i.linesTotal.Inc()
	before := len(i.engine.Processed())

	err := i.engine.ProcessLine(line)
	if err != nil {
		i.observeFault(line, err)
		return err
	}

	for _, msg := range i.engine.Processed()[before:] {
		i.messagesRetired.WithLabelValues(string(msg.State)).Inc()
		for _, inst := range msg.Instances {
			i.instancesRetired.WithLabelValues(string(inst.State)).Inc()
		}
	}
	return nil
}

func (i *Instrumented) observeFault(line string, err error) {
	switch err.(type) {
	case *classify.UnmatchedLineError:
		i.unmatchedLines.Inc()
		if i.logUnsupportedMsg {
			log.Printf("unsupported line: %v", line)
		}
	case *faults.UnexpectedEvent:
		i.faultsTotal.WithLabelValues("unexpected_event").Inc()
	case *faults.UnhandledState:
		i.faultsTotal.WithLabelValues("unhandled_state").Inc()
	case *faults.InvariantViolation:
		i.faultsTotal.WithLabelValues("invariant_violation").Inc()
	case *faults.UnknownCommand:
		i.faultsTotal.WithLabelValues("unknown_command").Inc()
	default:
		i.faultsTotal.WithLabelValues("other").Inc()
	}
}

// Engine returns the wrapped engine, for callers that need direct
// access to Processed()/Live()/Consolidate() once a run finishes.
func (i *Instrumented) Engine() *engine.Engine { return i.engine }

func (i *Instrumented) Describe(ch chan<- *prometheus.Desc) {
	i.linesTotal.Describe(ch)
	i.unmatchedLines.Describe(ch)
	i.faultsTotal.Describe(ch)
	i.messagesRetired.Describe(ch)
	i.instancesRetired.Describe(ch)
}

func (i *Instrumented) Collect(ch chan<- prometheus.Metric) {
	i.linesTotal.Collect(ch)
	i.unmatchedLines.Collect(ch)
	i.faultsTotal.Collect(ch)
	i.messagesRetired.Collect(ch)
	i.instancesRetired.Collect(ch)
}

var _ prometheus.Collector = (*Instrumented)(nil)
