package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sproutdir.app/sproutdir/internal/auth"
	"sproutdir.app/sproutdir/internal/cli"
	"sproutdir.app/sproutdir/internal/dedupe"
)

func runMerge(args []string) int {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	mode := fs.String("mode", string(dedupe.ModeSoftMark), "Removal mode: soft or hard")
	dryRun := fs.Bool("dry-run", false, "Preview the merge group without applying changes")
	force := fs.Bool("force", false, "Skip confirmation prompt")
	auto := fs.Bool("auto", false, "Merge every group found by a sweep instead of explicit uuids")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if !*auto && fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "merge requires <canonical_uuid> <variant_uuid>... or --auto")
		printMergeUsage()
		return 2
	}

	ctx, cancel, rt, err := connectRuntime(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.pool.Close()

	var groups []dedupe.Group
	if *auto {
		groups, err = rt.service.SweepForDuplicateGroups(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
			return 1
		}
	} else {
		group, err := rt.service.ResolveGroup(ctx, fs.Arg(0), fs.Args()[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve merge group: %v\n", err)
			return 1
		}
		groups = []dedupe.Group{group}
	}

	if len(groups) == 0 {
		fmt.Println("nothing to merge")
		return 0
	}

	variantTotal := 0
	for _, group := range groups {
		variantTotal += len(group.Variants)
	}

	if *dryRun {
		printGroupTable(groups)
		fmt.Printf("dry_run=true groups=%d variants=%d mode=%s\n", len(groups), variantTotal, *mode)
		return 0
	}

	if !*force {
		prompt := fmt.Sprintf("Merge %d variant(s) across %d group(s) with mode=%s?", variantTotal, len(groups), *mode)
		ok, err := confirmDangerousAction(prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read confirmation: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Cancelled")
			return 1
		}
	}

	outcomes, err := rt.service.ConsolidateRecords(ctx, groups, dedupe.ConsolidateOptions{
		Mode:      dedupe.Mode(strings.TrimSpace(strings.ToLower(*mode))),
		Confirmed: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Merge failed: %v\n", err)
		return 1
	}

	return reportOutcomes(outcomes)
}

func runMergeValue(args []string) int {
	fs := flag.NewFlagSet("merge-value", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	field := fs.String("field", "", "Mergeable field name")
	force := fs.Bool("force", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*field) == "" {
		fmt.Fprintln(os.Stderr, "--field is required")
		printMergeUsage()
		return 2
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "merge-value requires <canonical_value> <variant_value>...")
		printMergeUsage()
		return 2
	}

	canonical := fs.Arg(0)
	variants := fs.Args()[1:]

	if !*force {
		prompt := fmt.Sprintf("Rewrite %d variant value(s) of %s to %q?", len(variants), *field, canonical)
		ok, err := confirmDangerousAction(prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read confirmation: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Cancelled")
			return 1
		}
	}

	ctx, cancel, rt, err := connectRuntime(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.pool.Close()

	outcomes, err := rt.service.ConsolidateValue(ctx, strings.TrimSpace(*field), canonical, variants, dedupe.ConsolidateOptions{
		Confirmed: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Value merge failed: %v\n", err)
		return 1
	}

	return reportOutcomes(outcomes)
}

func runHashToken(args []string) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "hash-token requires exactly one token argument")
		return 2
	}

	hash, err := auth.HashMergeToken(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}

func reportOutcomes(outcomes []dedupe.Outcome) int {
	succeeded, failed, noops := 0, 0, 0
	for _, outcome := range outcomes {
		if !outcome.Success {
			failed++
			fmt.Fprintf(os.Stderr, "failed: %s\n", outcome.Message)
			continue
		}
		if outcome.NoOp {
			noops++
			continue
		}
		succeeded++
	}

	fmt.Printf("succeeded=%d no_op=%d failed=%d\n", succeeded, noops, failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func printMergeUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  sproutdir merge <canonical_uuid> <variant_uuid>... [--mode soft|hard] [--dry-run] [--force]")
	fmt.Fprintln(os.Stderr, "  sproutdir merge --auto [--mode soft|hard] [--dry-run] [--force]")
	fmt.Fprintln(os.Stderr, "  sproutdir merge-value --field <name> <canonical_value> <variant_value>... [--force]")
}
