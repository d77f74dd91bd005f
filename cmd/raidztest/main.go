package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/templexxx/raidz"
)

// VERSION is injected by buildflags
var VERSION = "SELFBUILD"

func main() {
	_, impls := raidz.Implementations()

	// -v is taken by verbose.
	cli.VersionFlag = cli.BoolFlag{Name: "version", Usage: "print the version"}

	myApp := cli.NewApp()
	myApp.Name = "raidztest"
	myApp.Usage = "check and benchmark raidz parity implementations"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.UintFlag{
			Name:  "ashift, a",
			Value: 9,
			Usage: "sector shift, 9..13",
		},
		cli.UintFlag{
			Name:  "offset, o",
			Value: 0,
			Usage: "block offset exponent, offset is 2^o rounded down to a sector, max 12",
		},
		cli.IntFlag{
			Name:  "dcols, d",
			Value: 8,
			Usage: "data columns, 1..252",
		},
		cli.UintFlag{
			Name:  "size, s",
			Value: 19,
			Usage: "block size exponent, 9..24",
		},
		cli.BoolFlag{
			Name:  "sweep, S",
			Usage: "check every parameter combination in parallel",
		},
		cli.IntFlag{
			Name:  "timeout, t",
			Value: 0,
			Usage: "stop the sweep after this many seconds, 0 for none",
		},
		cli.BoolFlag{
			Name:  "benchmark, B",
			Usage: "benchmark every implementation",
		},
		cli.IntFlag{
			Name:  "benchtime",
			Value: 100,
			Usage: "milliseconds spent timing one method of one implementation",
		},
		cli.IntFlag{
			Name:  "verbose, v",
			Value: 0,
			Usage: "0 warnings only, 1 results, 2 every target",
		},
		cli.BoolFlag{
			Name:  "sanity, T",
			Usage: "test the test: skip the computation so every check fails",
		},
		cli.StringFlag{
			Name:  "impl, i",
			Value: "",
			Usage: "check only this implementation: " + strings.Join(impls[2:], ", "),
		},
		cli.StringFlag{
			Name:  "textfile",
			Value: "",
			Usage: "write benchmark results to a Prometheus textfile",
		},
		cli.StringFlag{
			Name:  "config, c",
			Value: "", // when the value is not empty, the config path must exists
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		config := Config{}
		config.Ashift = c.Uint("ashift")
		config.Offset = c.Uint("offset")
		config.DataCols = c.Int("dcols")
		config.Size = c.Uint("size")
		config.Sweep = c.Bool("sweep")
		config.Timeout = c.Int("timeout")
		config.Benchmark = c.Bool("benchmark")
		config.BenchTime = c.Int("benchtime")
		config.Verbose = c.Int("verbose")
		config.Sanity = c.Bool("sanity")
		config.Impl = c.String("impl")
		config.Textfile = c.String("textfile")

		if c.String("config") != "" {
			err := parseJSONConfig(&config, c.String("config"))
			checkError(err)
		}

		log := newLogger(config.Verbose)
		err := run(context.Background(), &config, log)
		checkError(err)
		return nil
	}
	myApp.Run(os.Args)
}

func newLogger(verbose int) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case verbose >= 2:
		log.SetLevel(logrus.DebugLevel)
	case verbose == 1:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

func run(ctx context.Context, config *Config, log *logrus.Logger) error {
	if config.Benchmark {
		return runBenchmark(os.Stdout, log, config.benchTime(), config.Textfile)
	}

	k, err := newChecker(log, config.Impl, config.Sanity)
	if err != nil {
		return err
	}

	if config.Sweep {
		cases := sweepCases()
		n, err := sweep(ctx, k, cases, config.timeout())
		if err != nil {
			return err
		}
		fmt.Printf("Sweep test succeeded on %d of %d raidz maps!\n", n, len(cases))
		return nil
	}

	tc := config.testCase()
	log.WithFields(logrus.Fields{
		"ashift": tc.Ashift,
		"offset": tc.Offset,
		"dcols":  tc.DataCols,
		"size":   humanize.IBytes(uint64(tc.Size)),
		"impls":  k.impls,
	}).Info("raidz test")
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err = k.run(ctx, tc, rnd); err != nil {
		return err
	}
	fmt.Println("raidz test passed")
	return nil
}

func checkError(err error) {
	if err != nil {
		logrus.Errorf("%+v", err)
		os.Exit(-1)
	}
}
