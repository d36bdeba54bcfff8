// Command rebuild regenerates a single GPX track from the durable fix log.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/banshee-data/gps-recorder/internal/db"
	"github.com/banshee-data/gps-recorder/internal/export"
	"github.com/banshee-data/gps-recorder/internal/fsutil"
	"github.com/banshee-data/gps-recorder/internal/rebuild"
	"github.com/banshee-data/gps-recorder/internal/timeutil"
)

var (
	dbPath = flag.String("db", db.DefaultPath, "Path of the fix log database")
	outDir = flag.String("out", ".", "Directory for the rebuilt GPX file")
	prefix = flag.String("prefix", "rebuild", "File name prefix of the rebuilt GPX file")
)

// run returns the process exit code.
func run(ctx context.Context) int {
	if _, err := os.Stat(*dbPath); err != nil {
		log.Printf("failed to open fix log: %v", err)
		return 1
	}
	fixLog, err := db.OpenReadOnly(*dbPath)
	if err != nil {
		log.Printf("failed to open fix log: %v", err)
		return 1
	}
	defer fixLog.Close()

	exporter := export.New(fsutil.OSFileSystem{}, timeutil.RealClock{}, export.Options{
		Dir:    *outDir,
		Prefix: *prefix,
	})
	path, err := rebuild.New(fixLog, exporter).Run(ctx)
	if err != nil {
		log.Printf("rebuild failed: %v", err)
		return 1
	}
	if path != "" {
		log.Printf("rebuilt track written to %s", path)
	}
	return 0
}

func main() {
	flag.Parse()
	os.Exit(run(context.Background()))
}
