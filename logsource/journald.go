//go:build linux
// +build linux

package logsource

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
	"gopkg.in/alecthomas/kingpin.v2"
)

// JournaldLogSource reads log lines from the systemd journal, filtered
// to the given unit names (the postfix/amavis/DKIM-milter systemd
// units, typically), oldest first, then following new entries.
type JournaldLogSource struct {
	journal *sdjournal.Journal
	units   []string
}

// NewJournaldLogSource opens the journal and seeks to its head,
// matching any of units (an empty units list reads the whole journal).
func NewJournaldLogSource(units []string) (*JournaldLogSource, error) {
	j, err := sdjournal.NewJournal()
	if err != nil {
		return nil, fmt.Errorf("logsource: opening journal: %w", err)
	}

	for _, unit := range units {
		if err := j.AddMatch(sdjournal.SD_JOURNAL_FIELD_SYSTEMD_UNIT + "=" + unit); err != nil {
			j.Close()
			return nil, fmt.Errorf("logsource: matching unit %s: %w", unit, err)
		}
		// Each AddMatch call ANDs onto the previous one by default;
		// a disjunction needs an explicit AddDisjunction between units.
		if err := j.AddDisjunction(); err != nil {
			j.Close()
			return nil, fmt.Errorf("logsource: adding disjunction for %s: %w", unit, err)
		}
	}

	if err := j.SeekHead(); err != nil {
		j.Close()
		return nil, fmt.Errorf("logsource: seeking journal head: %w", err)
	}

	return &JournaldLogSource{journal: j, units: units}, nil
}

func (s *JournaldLogSource) Path() string {
	return "journald:" + fmt.Sprint(s.units)
}

func (s *JournaldLogSource) Read(ctx context.Context) (string, error) {
	for {
		n, err := s.journal.Next()
		if err != nil {
			return "", fmt.Errorf("logsource: reading journal entry: %w", err)
		}
		if n == 0 {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if s.journal.Wait(time.Second) == sdjournal.SD_JOURNAL_NOP {
				continue
			}
			continue
		}

		entry, err := s.journal.GetEntry()
		if err != nil {
			return "", fmt.Errorf("logsource: reading journal entry fields: %w", err)
		}
		line, ok := entry.Fields[sdjournal.SD_JOURNAL_FIELD_MESSAGE]
		if !ok {
			continue
		}
		return line, nil
	}
}

func (s *JournaldLogSource) Close() error {
	return s.journal.Close()
}

var _ io.Closer = (*JournaldLogSource)(nil)

type journaldFactory struct {
	units []string
}

func (*journaldFactory) Name() string { return "journald" }

func (f *journaldFactory) Init(app *kingpin.Application) {
	app.Flag("journald.unit", "systemd unit(s) to read (repeatable); reads the whole journal if unset.").StringsVar(&f.units)
}

func (f *journaldFactory) New(ctx context.Context) (Closer, error) {
	return NewJournaldLogSource(f.units)
}

func init() {
	Default.Register(&journaldFactory{})
}
