package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "scrape":
		return runScrape(args[1:])
	case "screen":
		return runScreen(args[1:])
	case "sweep":
		return runSweep(args[1:])
	case "suggest":
		return runSuggest(args[1:])
	case "merge":
		return runMerge(args[1:])
	case "merge-value":
		return runMergeValue(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "sproutdir CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  sproutdir <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health       Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  validate     Validate program submission JSON files against v1 schema")
	fmt.Fprintln(os.Stderr, "  scrape       Extract program fields from a provider page")
	fmt.Fprintln(os.Stderr, "  screen       Check a program name against the catalog for duplicates")
	fmt.Fprintln(os.Stderr, "  sweep        Partition the live catalog into duplicate groups")
	fmt.Fprintln(os.Stderr, "  suggest      Suggest canonical values for a mergeable field")
	fmt.Fprintln(os.Stderr, "  merge        Consolidate duplicate programs into a canonical record")
	fmt.Fprintln(os.Stderr, "  merge-value  Canonicalize variant spellings of a field value")
	fmt.Fprintln(os.Stderr, "  hash-token   Hash a merge token for MERGE_TOKEN_HASH")
	fmt.Fprintln(os.Stderr, "  serve        Start the admin API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"sproutdir <command> -h\" for command-specific flags.")
}
