// Command clara runs a CFG program against a test suite and reports which
// tests pass. Programs and suites are YAML documents produced by the
// per-language parsers.
//
// Usage:
//
//	clara [options] <program.yaml> <tests.yaml>
//
// Defaults come from the environment: CLARA_LANG, CLARA_TIMEOUT (seconds),
// CLARA_FILTER (output normalization pattern), CLARA_LOG (log level).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/xyproto/env/v2"

	"github.com/bruggerl/clara/pkg/filter"
	"github.com/bruggerl/clara/pkg/interp"
	"github.com/bruggerl/clara/pkg/ir"
	"github.com/bruggerl/clara/pkg/java"
)

func main() {
	lang := flag.String("lang", env.Str("CLARA_LANG", "java"), "language semantics to use")
	timeout := flag.Int("timeout", env.Int("CLARA_TIMEOUT", 30), "per-run timeout in seconds (0 = none)")
	pattern := flag.String("filter", env.Str("CLARA_FILTER", ""), "output normalization pattern")
	logLevel := flag.String("log", env.Str("CLARA_LOG", "warn"), "log level (error, warn, info, debug)")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: clara [options] <program.yaml> <tests.yaml>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(*lang, *timeout, *pattern, *logLevel, flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, "clara:", err)
		os.Exit(1)
	}
}

func run(lang string, timeout int, pattern, logLevel, progPath, suitePath string) error {
	progData, err := os.ReadFile(progPath)
	if err != nil {
		return err
	}
	prog, err := ir.DecodeProgram(progData)
	if err != nil {
		return fmt.Errorf("%s: %w", progPath, err)
	}

	suiteData, err := os.ReadFile(suitePath)
	if err != nil {
		return err
	}
	suite, err := filter.DecodeSuite(suiteData)
	if err != nil {
		return fmt.Errorf("%s: %w", suitePath, err)
	}

	reg := interp.NewRegistry()
	java.Register(reg)

	opts := []interp.Option{
		interp.WithLogger(interp.NewStdLogger(os.Stderr, interp.ParseLogLevel(logLevel))),
	}
	if timeout > 0 {
		opts = append(opts, interp.WithTimeout(time.Duration(timeout)*time.Second))
	}
	if pattern != "" {
		opts = append(opts, interp.WithOutputFilter(pattern))
	}
	eng, err := interp.New(reg, lang, opts...)
	if err != nil {
		return err
	}
	harness := filter.New(eng, suite.Entry)

	failed := 0
	for i, test := range suite.Tests {
		if checkErr := harness.Check(context.Background(), prog, test); checkErr != nil {
			fmt.Printf("test %d: FAIL (%v)\n", i+1, checkErr)
			failed++
		} else {
			fmt.Printf("test %d: ok\n", i+1)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tests failed", failed, len(suite.Tests))
	}
	fmt.Printf("all %d tests passed\n", len(suite.Tests))
	return nil
}
