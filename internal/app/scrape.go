package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sproutdir.app/sproutdir/internal/cli"
	"sproutdir.app/sproutdir/internal/scrape"
	programschema "sproutdir.app/sproutdir/schema"
)

func runScrape(args []string) int {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	name := fs.String("name", "", "Program name (extraction cannot infer it reliably)")
	city := fs.String("city", "San Francisco", "City used for neighborhood fallback")
	screen := fs.Bool("screen", false, "Screen the extracted program against the catalog")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "scrape requires exactly one provider URL argument")
		return 2
	}

	pageURL := strings.TrimSpace(fs.Arg(0))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	text, err := scrape.FetchPageText(ctx, pageURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		return 1
	}

	extraction := scrape.Extract(text)

	var output any
	if strings.TrimSpace(*name) != "" {
		submission := submissionFromExtraction(*name, pageURL, *city, extraction)
		payload, err := json.Marshal(submission)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode submission: %v\n", err)
			return 1
		}
		if _, err := programschema.ValidateProgramSubmission(payload); err != nil {
			fmt.Fprintf(os.Stderr, "Extracted submission is invalid: %v\n", err)
			return 1
		}
		output = submission
	} else {
		fields := map[string]any{
			"url":            pageURL,
			"contact_email":  extraction.ContactEmail,
			"contact_phone":  extraction.ContactPhone,
			"categories":     extraction.Categories,
			"operating_days": extraction.OperatingDays,
			"price_min":      extraction.PriceMin,
			"price_max":      extraction.PriceMax,
			"price_unit":     extraction.PriceUnit,
			"language":       extraction.Language,
		}
		if extraction.PriceDescription != nil {
			fields["price_description"] = *extraction.PriceDescription
		}
		if extraction.Address != nil {
			fields["address"] = *extraction.Address
			fields["neighborhood"] = scrape.InferNeighborhood(*extraction.Address, *city)
		}
		output = fields
	}

	if !*screen {
		if err := printJSON(output); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
			return 1
		}
		return 0
	}

	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--screen requires --name")
		return 2
	}

	dbCtx, dbCancel, rt, err := connectRuntime(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer dbCancel()
	defer rt.pool.Close()

	matches, err := rt.service.ScreenForDuplicates(dbCtx, *name, extraction.Categories)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Screen failed: %v\n", err)
		return 1
	}

	if err := printJSON(output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		return 1
	}
	fmt.Printf("Likely duplicates: %d\n", len(matches))
	if len(matches) > 0 {
		printRecordTable(matches)
	}
	return 0
}

// submissionFromExtraction shapes scraped fields into the same payload the
// submission API accepts.
func submissionFromExtraction(name, pageURL, city string, extraction scrape.Extraction) *programschema.ProgramSubmission {
	submission := &programschema.ProgramSubmission{
		PayloadVersion:   "v1",
		Name:             strings.TrimSpace(name),
		Categories:       extraction.Categories,
		Address:          extraction.Address,
		ContactEmail:     extraction.ContactEmail,
		ContactPhone:     extraction.ContactPhone,
		WebsiteURL:       &pageURL,
		OperatingDays:    extraction.OperatingDays,
		PriceMin:         extraction.PriceMin,
		PriceMax:         extraction.PriceMax,
		PriceUnit:        extraction.PriceUnit,
		PriceDescription: extraction.PriceDescription,
		SourceMetadata:   map[string]any{"scraped_from": pageURL},
	}
	if extraction.Address != nil {
		neighborhood := scrape.InferNeighborhood(*extraction.Address, city)
		submission.Neighborhood = &neighborhood
	}
	if extraction.Language != nil {
		submission.SourceMetadata["language"] = *extraction.Language
	}
	return submission
}
