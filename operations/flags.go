package operations

import (
	"strings"

	"github.com/urfave/cli"
)

////////////////////////////////////////////////////////////////////////
//
// Flag Name Constants

const (
	levelFlag    = "level"
	configFlag   = "config"
	dataFlag     = "data"
	repoURLFlag  = "repo-url"
	outputFlag   = "output"
	serviceFlag  = "service"
	suiteFlag    = "suite"
	nameFlag     = "name"
	limitFlag    = "limit"
	afterFlag    = "after"
	beforeFlag   = "before"
	benchesFlag  = "benches"
	commitFlag   = "commit"
	toolFlag     = "tool"
	dateFlag     = "date"
	backfillFlag = "backfill"
	retriesFlag  = "retries"
	dryRunFlag   = "dry-run"
	portFlag     = "port"
	prefixFlag   = "prefix"

	defaultRetries = 3
	defaultTool    = "customBiggerIsBetter"
)

////////////////////////////////////////////////////////////////////////
//
// Utility Functions

func joinFlagNames(ids ...string) string { return strings.Join(ids, ", ") }

func mergeFlags(in ...[]cli.Flag) []cli.Flag {
	out := []cli.Flag{}

	for idx := range in {
		out = append(out, in[idx]...)
	}

	return out
}

////////////////////////////////////////////////////////////////////////
//
// Flag Groups

// GlobalFlags are registered on the application and read by every
// command through the global context.
func GlobalFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.StringFlag{
			Name:  levelFlag,
			Value: "info",
			Usage: "Specify lowest visible loglevel as string: 'emergency|alert|critical|error|warning|notice|info|debug'",
		},
		cli.StringFlag{
			Name:   joinFlagNames(configFlag, "c"),
			Usage:  "path to a larch YAML configuration file",
			EnvVar: "LARCH_CONFIG",
		},
		cli.StringFlag{
			Name:   dataFlag,
			Usage:  "path of the benchmark document on the local file system; overrides the configured storage",
			EnvVar: "LARCH_DATA_PATH",
		},
		cli.StringFlag{
			Name:   repoURLFlag,
			Usage:  "url of the repository the benchmarks belong to",
			EnvVar: "LARCH_REPO_URL",
		},
	)
}

func suiteFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(suiteFlag, "s"),
		Usage: "name of the benchmark suite",
	})
}

func measurementFlags(flags ...cli.Flag) []cli.Flag {
	return append(suiteFlags(flags...), cli.StringFlag{
		Name:  joinFlagNames(nameFlag, "n"),
		Usage: "name of the measurement",
	})
}

func remoteServiceFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:   serviceFlag,
		Usage:  "url of a running larch service, e.g. http://localhost:3000/rest; when set, requests go to the service instead of storage",
		EnvVar: "LARCH_SERVICE_URL",
	})
}

func ingestFlags(flags ...cli.Flag) []cli.Flag {
	return remoteServiceFlags(suiteFlags(append(flags,
		cli.StringFlag{
			Name:  joinFlagNames(benchesFlag, "b"),
			Usage: "path to a JSON array of {name, value, unit, range, extra} measurements",
		},
		cli.StringFlag{
			Name:  commitFlag,
			Usage: "path to a JSON commit object",
		},
		cli.StringFlag{
			Name:  toolFlag,
			Usage: "name of the tool that produced the measurements",
			Value: defaultTool,
		},
		cli.StringFlag{
			Name:  dateFlag,
			Usage: "time the run was recorded, as unix milliseconds or RFC 3339; defaults to now",
		},
		cli.BoolFlag{
			Name:  backfillFlag,
			Usage: "admit an entry older than the newest entry of the suite",
		},
		cli.IntFlag{
			Name:  retriesFlag,
			Usage: "number of times to retry an ingestion that conflicted with a concurrent writer",
			Value: defaultRetries,
		},
		cli.BoolFlag{
			Name:  dryRunFlag,
			Usage: "report verdicts without recording the entry",
		},
	)...)...)
}

func serviceFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.IntFlag{
			Name:   joinFlagNames(portFlag, "p"),
			Usage:  "specify a port to run the service on; defaults to the configured port",
			EnvVar: "LARCH_SERVICE_PORT",
		},
		cli.StringFlag{
			Name:  prefixFlag,
			Usage: "url prefix for the service routes",
			Value: "rest",
		},
	)
}

func addOutputPath(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(outputFlag, "o"),
		Usage: "path to the output file; defaults to standard output",
	})
}
