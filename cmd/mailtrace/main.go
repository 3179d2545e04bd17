// Command mailtrace reads a Postfix/Amavis/DKIM-milter syslog stream
// from a selectable source and reconstructs each mail message's
// lifecycle, dumping the consolidated result once the source is
// exhausted.
package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/kumina/mailtrace/engine"
	"github.com/kumina/mailtrace/logsource"
	"github.com/kumina/mailtrace/metrics"
)

func main() {
	var (
		app = kingpin.New("mailtrace", "Reconstructs mail message lifecycles from Postfix/Amavis/DKIM-milter syslog lines.")

		source = app.Flag("source", "Log source to read from ("+joinNames(logsource.Default.Names())+").").
			Default("file").String()
		year = app.Flag("year", "Calendar year to stamp against year-less syslog timestamps.").
			Default(strconv.Itoa(time.Now().Year())).Int()
		logUnsupported = app.Flag("log.unsupported", "Log every line that matched no catalog rule.").Bool()
		output         = app.Flag("output", "Consolidated-dump output format.").Default("text").Enum("text", "json")
		listenAddress  = app.Flag("web.listen-address", "Address to expose Prometheus metrics on; empty disables the HTTP server.").Default("").String()
		metricsPath    = app.Flag("web.telemetry-path", "Path under which to expose metrics.").Default("/metrics").String()
	)

	logsource.Default.Init(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := logsource.Default.New(*source, ctx)
	if err != nil {
		log.Fatalf("mailtrace: opening log source %q: %v", *source, err)
	}
	defer src.Close()

	eng := engine.New(*year)
	instrumented := metrics.Wrap(eng, *logUnsupported)
	prometheus.MustRegister(instrumented)

	if *listenAddress != "" {
		http.Handle(*metricsPath, promhttp.Handler())
		go func() {
			log.Fatal(http.ListenAndServe(*listenAddress, nil))
		}()
		log.Printf("mailtrace: serving metrics on %s%s", *listenAddress, *metricsPath)
	}

	for {
		line, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("mailtrace: reading from %s: %v", src.Path(), err)
		}

		if err := instrumented.ProcessLine(line); err != nil {
			log.Fatalf("mailtrace: %v", err)
		}
	}

	if err := dump(os.Stdout, *output, eng.Consolidate()); err != nil {
		log.Fatalf("mailtrace: writing output: %v", err)
	}
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
