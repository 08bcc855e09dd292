package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/gonvenience/ytbx"
	"github.com/homeport/dyff/pkg/dyff"
	"github.com/mattn/go-isatty"
	"github.com/starkandwayne/goutils/ansi"
	"github.com/voxelbrain/goptions"
	"gopkg.in/yaml.v3"

	"github.com/project-lighter/sparkwheel/internal/log"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/diff"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/symbol"
)

// Version holds the current version of sparkwheel.
var Version = "(development)"

var printfStdOut = func(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

var getopts = func(o interface{}) {
	if err := goptions.Parse(o); err != nil {
		usage()
	}
}

var exit = func(code int) {
	os.Exit(code)
}

var usage = func() {
	goptions.PrintHelp()
	exit(1)
}

func envFlag(varname string) bool {
	val := os.Getenv(varname)
	return val != "" && strings.ToLower(val) != "false" && val != "0"
}

type resolveOpts struct {
	ID            string             `goptions:"--id, description='Id to resolve (default: whole config)'"`
	NoInstantiate bool               `goptions:"--no-instantiate, description='Return component specs instead of invoking _target_'"`
	NoEval        bool               `goptions:"--no-eval, description='Do not evaluate $ expressions'"`
	Help          bool               `goptions:"--help, -h"`
	Files         goptions.Remainder `goptions:"description='Config files to load and merge, in order'"`
}

type getOpts struct {
	ID    string             `goptions:"--id, description='Id to look up (raw, unresolved)'"`
	Help  bool               `goptions:"--help, -h"`
	Files goptions.Remainder `goptions:"description='Config files to load and merge, in order'"`
}

type diffOpts struct {
	Pretty bool               `goptions:"--pretty, description='Render a colorized semantic diff via dyff instead of a structural summary'"`
	Help   bool               `goptions:"--help, -h"`
	Files  goptions.Remainder `goptions:"description='Exactly two YAML files to compare'"`
}

func main() {
	var options struct {
		Debug   bool   `goptions:"-D, --debug, description='Enable debugging'"`
		Trace   bool   `goptions:"-T, --trace, description='Enable trace mode debugging (very verbose)'"`
		Version bool   `goptions:"-v, --version, description='Display version information'"`
		Color   string `goptions:"--color, description='Control color output (on/off/auto, default: auto)'"`
		Action  goptions.Verbs
		Resolve resolveOpts `goptions:"resolve"`
		Get     getOpts     `goptions:"get"`
		Diff    diffOpts    `goptions:"diff"`
	}
	getopts(&options)

	if envFlag("SPARKWHEEL_DEBUG") || options.Debug {
		log.DebugOn = true
	}
	if envFlag("SPARKWHEEL_TRACE") || options.Trace {
		log.TraceOn = true
		log.DebugOn = true
	}

	if options.Resolve.Help || options.Get.Help || options.Diff.Help {
		usage()
		return
	}

	if options.Version {
		printfStdOut("%s - Version %s\n", os.Args[0], Version)
		exit(0)
		return
	}

	shouldEnableColor := false
	switch options.Color {
	case "on":
		shouldEnableColor = true
	case "off":
		shouldEnableColor = false
	case "auto", "":
		shouldEnableColor = isatty.IsTerminal(os.Stdout.Fd())
	default:
		fmt.Fprintf(os.Stderr, "Invalid --color option: %s. Must be 'on', 'off', or 'auto'.\n", options.Color)
		exit(1)
		return
	}
	ansi.Color(shouldEnableColor)

	switch options.Action {
	case "resolve":
		runResolve(options.Resolve)
	case "get":
		runGet(options.Get)
	case "diff":
		runDiff(options.Diff)
	default:
		usage()
		return
	}
	exit(0)
}

func loadConfig(files []string) (*sparkwheel.Config, error) {
	if len(files) == 0 {
		return nil, ansi.Errorf("@R{at least one config file is required}")
	}
	return sparkwheel.Load(files, nil, sparkwheel.WithSymbols(symbol.NewRegistry().WithBuiltins()))
}

func runResolve(opts resolveOpts) {
	cfg, err := loadConfig(opts.Files)
	if err != nil {
		fail(err)
		return
	}

	v, err := cfg.Resolve(opts.ID,
		sparkwheel.WithInstantiate(!opts.NoInstantiate),
		sparkwheel.WithEvalExpr(!opts.NoEval),
	)
	if err != nil {
		fail(err)
		return
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		fail(ansi.Errorf("@R{unable to render result as YAML: %s}", err))
		return
	}
	printfStdOut("%s", string(out))
}

func runGet(opts getOpts) {
	if opts.ID == "" {
		fail(ansi.Errorf("@R{--id is required}"))
		return
	}

	cfg, err := loadConfig(opts.Files)
	if err != nil {
		fail(err)
		return
	}

	v, err := cfg.Get(opts.ID)
	if err != nil {
		fail(err)
		return
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		fail(ansi.Errorf("@R{unable to render result as YAML: %s}", err))
		return
	}
	printfStdOut("%s", string(out))
}

func runDiff(opts diffOpts) {
	if len(opts.Files) != 2 {
		usage()
		return
	}

	if opts.Pretty {
		output, hasDifferences, err := prettyDiff(opts.Files[0], opts.Files[1])
		if err != nil {
			fail(err)
			return
		}
		printfStdOut("%s\n", output)
		if hasDifferences {
			exit(1)
		}
		return
	}

	cfgA, err := loadConfig(opts.Files[:1])
	if err != nil {
		fail(err)
		return
	}
	cfgB, err := loadConfig(opts.Files[1:])
	if err != nil {
		fail(err)
		return
	}

	rawA, _ := cfgA.Get("")
	rawB, _ := cfgB.Get("")
	d := diff.Compare(rawA, rawB)

	for _, key := range d.SortedKeys() {
		switch {
		case isChange(d, key):
			c := d.Changed[key]
			printfStdOut("%s %v -> %v\n", key, c.Old, c.New)
		case isAdded(d, key):
			printfStdOut("+ %s %v\n", key, d.Added[key])
		case isRemoved(d, key):
			printfStdOut("- %s %v\n", key, d.Removed[key])
		}
	}
	printfStdOut("\nSummary: %s\n", d.Summary())
	if d.HasChanges() {
		exit(1)
	}
}

func isChange(d diff.Diff, key string) bool {
	_, ok := d.Changed[key]
	return ok
}

func isAdded(d diff.Diff, key string) bool {
	_, ok := d.Added[key]
	return ok
}

func isRemoved(d diff.Diff, key string) bool {
	_, ok := d.Removed[key]
	return ok
}

// prettyDiff renders a colorized semantic diff of the two raw YAML
// files through the teacher's own diff stack, the way cmd/graft's
// diffFiles does, rather than reformatting our own structural Diff.
func prettyDiff(pathA, pathB string) (string, bool, error) {
	from, to, err := ytbx.LoadFiles(pathA, pathB)
	if err != nil {
		return "", false, err
	}

	report, err := dyff.CompareInputFiles(from, to)
	if err != nil {
		return "", false, err
	}

	reportWriter := &dyff.HumanReport{
		Report:            report,
		DoNotInspectCerts: false,
		NoTableStyle:      false,
		OmitHeader:        true,
	}

	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	if err := reportWriter.WriteReport(out); err != nil {
		return "", false, err
	}
	out.Flush()

	return buf.String(), len(report.Diffs) > 0, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err.Error())
	exit(2)
}
