package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"sproutdir.app/sproutdir/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel, rt, err := connectRuntime(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.pool.Close()

	var one int
	if err := rt.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		fmt.Fprintf(os.Stderr, "Database probe failed: %v\n", err)
		return 1
	}

	fmt.Println("database=ok")
	return 0
}
