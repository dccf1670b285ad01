package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"sproutdir.app/sproutdir/internal/cli"
	"sproutdir.app/sproutdir/internal/dedupe"
)

func runSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel, rt, err := connectRuntime(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.pool.Close()

	groups, err := rt.service.SweepForDuplicateGroups(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"groups": groups}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
			return 1
		}
		return 0
	}

	if len(groups) == 0 {
		fmt.Println("no duplicate groups")
		return 0
	}

	printGroupTable(groups)
	fmt.Printf("%d group(s)\n", len(groups))
	return 0
}

func printGroupTable(groups []dedupe.Group) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CANONICAL\tNAME\tVARIANTS")
	for _, group := range groups {
		names := make([]string, 0, len(group.Variants))
		for _, variant := range group.Variants {
			names = append(names, fmt.Sprintf("%s (%d)", variant.Name, variant.ID))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			group.Canonical.UUID,
			group.Canonical.Name,
			strings.Join(names, "; "),
		)
	}
	_ = w.Flush()
}
