package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	programschema "sproutdir.app/sproutdir/schema"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "validate requires at least one JSON file argument")
		return 2
	}

	failures := 0
	for _, path := range fs.Args() {
		payload, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: read failed: %v\n", path, err)
			failures++
			continue
		}

		submission, err := programschema.ValidateProgramSubmission(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: invalid: %v\n", path, err)
			failures++
			continue
		}
		fmt.Printf("%s: ok name=%q categories=%d\n", path, submission.Name, len(submission.Categories))
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d file(s) failed validation\n", failures)
		return 1
	}
	return 0
}
