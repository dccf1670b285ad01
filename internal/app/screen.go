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
	programschema "sproutdir.app/sproutdir/schema"
)

func runScreen(args []string) int {
	fs := flag.NewFlagSet("screen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	name := fs.String("name", "", "Program name to screen")
	categories := fs.String("categories", "", "Comma-separated category tags")
	file := fs.String("file", "", "Submission payload file to screen instead of flags")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	screenName := strings.TrimSpace(*name)
	screenCategories := parseCategoriesFlag(*categories)
	if *file != "" {
		payload, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *file, err)
			return 1
		}
		submission, err := programschema.ValidateProgramSubmission(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid submission payload: %v\n", err)
			return 1
		}
		screenName = submission.Name
		screenCategories = submission.Categories
	}
	if screenName == "" {
		fmt.Fprintln(os.Stderr, "--name or --file is required")
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

	matches, err := rt.service.ScreenForDuplicates(ctx, screenName, screenCategories)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Screen failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"matches": matches}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
			return 1
		}
		return 0
	}

	if len(matches) == 0 {
		fmt.Println("no likely duplicates")
		return 0
	}

	printRecordTable(matches)
	return 0
}

func printRecordTable(records []dedupe.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUUID\tNAME\tCATEGORIES\tRICHNESS")
	for _, record := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n",
			record.ID,
			record.UUID,
			record.Name,
			strings.Join(record.Categories, ","),
			dedupe.Richness(record),
		)
	}
	_ = w.Flush()
}
