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
	"sproutdir.app/sproutdir/internal/db"
)

func runSuggest(args []string) int {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	field := fs.String("field", "", "Mergeable field: "+strings.Join(db.ValueFields(), ", "))
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*field) == "" {
		fmt.Fprintln(os.Stderr, "--field is required")
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

	groups, err := rt.service.SuggestValueMerges(ctx, strings.TrimSpace(*field))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"field": *field, "groups": groups}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
			return 1
		}
		return 0
	}

	if len(groups) == 0 {
		fmt.Println("no value merges suggested")
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CANONICAL\tROWS\tVARIANTS")
	for _, group := range groups {
		variants := make([]string, 0, len(group.Variants))
		for _, variant := range group.Variants {
			variants = append(variants, fmt.Sprintf("%s (%d)", variant, group.Usage[variant]))
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n",
			group.Canonical,
			group.Usage[group.Canonical],
			strings.Join(variants, "; "),
		)
	}
	_ = w.Flush()
	return 0
}
