package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/sjawhar/audiocat/internal/config"
)

// errUsage means the usage text was printed and the program should exit
// successfully.
var errUsage = errors.New("usage requested")

type options struct {
	inputs         []string
	configPath     string
	outputPrefix   string
	blockSize      int
	queueCapacity  int
	backpressure   string
	failurePolicy  string
	statusInterval string
	httpAddr       string
	dbPath         string
	help           bool

	flags *flag.FlagSet
}

const helpString = `Capture raw audio from one or more inputs into per-input files

Usage: audiocat -i FILE [-i FILE]... [OPTION]...

Capture:
  -i, --input=FILE            Input device or file, repeatable (required)
  -o, --output-prefix=PREFIX  Output files are PREFIX-N.wav (default: recording)
  -b, --block-size=NUM        Bytes per read (default: 4096)

Queue:
      --queue-capacity=NUM    Maximum queued blocks, 0 for unbounded (default: 0)
      --backpressure=MODE     unbounded, block or drop (default: unbounded)
      --failure-policy=MODE   fail-fast or isolate (default: fail-fast)

Reporting:
      --status-interval=DUR   Status line period (default: 1s)
      --http-addr=ADDR        Serve status and recordings on ADDR (default: disabled)
      --db-path=FILE          Keep a recording history in FILE (default: disabled)

Miscellaneous:
  -c, --config=FILE           YAML configuration file
  -h, --help                  Prints this help message and exits`

func usage(w io.Writer) {
	fmt.Fprintln(w, helpString)
}

// parseArgs parses the command line. It prints the usage to stderr and
// returns errUsage for -h, an unknown flag, or a missing input.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	var o options

	fs := flag.NewFlagSet("audiocat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringArrayVarP(&o.inputs, "input", "i", nil, "")
	fs.StringVarP(&o.outputPrefix, "output-prefix", "o", "recording", "")
	fs.IntVarP(&o.blockSize, "block-size", "b", 4096, "")
	fs.StringVarP(&o.configPath, "config", "c", "", "")
	fs.IntVar(&o.queueCapacity, "queue-capacity", 0, "")
	fs.StringVar(&o.backpressure, "backpressure", "unbounded", "")
	fs.StringVar(&o.failurePolicy, "failure-policy", "fail-fast", "")
	fs.StringVar(&o.statusInterval, "status-interval", "1s", "")
	fs.StringVar(&o.httpAddr, "http-addr", "", "")
	fs.StringVar(&o.dbPath, "db-path", "", "")
	fs.BoolVarP(&o.help, "help", "h", false, "")
	o.flags = fs

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "audiocat: %v\n\n", err)
		usage(stderr)
		return o, errUsage
	}
	if o.help || len(o.inputs) == 0 {
		usage(stderr)
		return o, errUsage
	}
	return o, nil
}

// apply overrides cfg with every flag given on the command line and
// returns the warnings for values that had to be repaired.
func (o options) apply(cfg *config.Config) []string {
	changed := func(name string) bool {
		return o.flags != nil && o.flags.Changed(name)
	}

	if changed("output-prefix") {
		cfg.OutputPrefix = o.outputPrefix
	}
	if changed("block-size") {
		cfg.BlockSize = o.blockSize
	}
	if changed("queue-capacity") {
		cfg.QueueCapacity = o.queueCapacity
	}
	if changed("backpressure") {
		cfg.Backpressure = o.backpressure
	}
	if changed("failure-policy") {
		cfg.FailurePolicy = o.failurePolicy
	}
	if changed("status-interval") {
		cfg.StatusInterval = o.statusInterval
	}
	if changed("http-addr") {
		cfg.HTTPAddr = o.httpAddr
	}
	if changed("db-path") {
		cfg.DBPath = o.dbPath
	}

	return cfg.Validate()
}
