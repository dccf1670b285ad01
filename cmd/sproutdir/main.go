package main

import (
	"os"

	"sproutdir.app/sproutdir/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
