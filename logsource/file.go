package logsource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nxadm/tail"
	"github.com/ulikunitz/xz"
	"gopkg.in/alecthomas/kingpin.v2"
)

// FileLogSource reads lines from a live, growing maillog by tailing
// it (nxadm/tail, following rotations), or from a static file — which
// includes transparently decompressed .xz archives — by a plain
// buffered scan. Either way it hands back one line per Read call.
type FileLogSource struct {
	path   string
	t      *tail.Tail
	static *bufio.Scanner
	closer io.Closer
}

// NewFileLogSource tails path for new lines as they're appended,
// following truncation/rotation the way `tail -F` does.
func NewFileLogSource(path string) (*FileLogSource, error) {
	t, err := tail.TailFile(path, tail.Config{
		ReOpen:    true,
		Follow:    true,
		MustExist: true,
		Poll:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("logsource: tailing %s: %w", path, err)
	}
	return &FileLogSource{path: path, t: t}, nil
}

// NewStaticFileLogSource reads path once, start to finish, with no
// following. A ".xz" suffix is transparently decompressed.
func NewStaticFileLogSource(path string) (*FileLogSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logsource: opening %s: %w", path, err)
	}

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("logsource: initializing xz reader for %s: %w", path, err)
		}
		r = xr
	}

	return &FileLogSource{path: path, static: bufio.NewScanner(r), closer: f}, nil
}

func (s *FileLogSource) Path() string { return s.path }

func (s *FileLogSource) Read(ctx context.Context) (string, error) {
	if s.static != nil {
		if !s.static.Scan() {
			if err := s.static.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return s.static.Text(), nil
	}

	select {
	case line, ok := <-s.t.Lines:
		if !ok {
			return "", io.EOF
		}
		if line.Err != nil {
			return "", line.Err
		}
		return strings.TrimRight(line.Text, "\r\n"), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *FileLogSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	if s.t != nil {
		return s.t.Stop()
	}
	return nil
}

// fileFactory is the default, always-available log source: a path on
// local disk, tailed unless -log.file.static is set (in which case
// it's read once, start to finish, with .xz archives handled
// transparently).
type fileFactory struct {
	path   string
	static bool
}

func (*fileFactory) Name() string { return "file" }

func (f *fileFactory) Init(app *kingpin.Application) {
	app.Flag("log.file", "Path to the Postfix/Amavis/DKIM-milter syslog file to read.").Default("/var/log/maillog").StringVar(&f.path)
	app.Flag("log.file.static", "Read log.file once, start to finish, instead of tailing it. Implied when log.file ends in .xz.").BoolVar(&f.static)
}

func (f *fileFactory) New(ctx context.Context) (Closer, error) {
	if f.static || strings.HasSuffix(f.path, ".xz") {
		return NewStaticFileLogSource(f.path)
	}
	return NewFileLogSource(f.path)
}

func init() {
	Default.Register(&fileFactory{})
}
