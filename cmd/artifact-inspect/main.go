// Command artifact-inspect summarises the FIT files inside an archived
// original bundle, read from a local path or a gs:// URI.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/pflag"

	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	"github.com/lancerinf/garmin-importer/pkg/domain/bundle"
	infrastorage "github.com/lancerinf/garmin-importer/pkg/infrastructure/storage"
)

func main() {
	input := pflag.StringP("input", "i", "", "Path or gs:// URI of an archived .zip bundle")
	raw := pflag.Bool("fit", false, "Treat the input as a bare FIT file instead of a bundle")
	pflag.Parse()

	if *input == "" {
		fmt.Println("Please provide input with --input")
		os.Exit(1)
	}

	data, err := read(*input)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", *input, err)
		os.Exit(1)
	}

	var summaries []bundle.FITSummary
	if *raw {
		s, err := bundle.SummarizeFIT(data)
		if err != nil {
			fmt.Printf("Failed to decode FIT file: %v\n", err)
			os.Exit(1)
		}
		s.File = *input
		summaries = []bundle.FITSummary{*s}
	} else {
		b, err := bundle.Open(data)
		if err != nil {
			fmt.Printf("Failed to open bundle: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Bundle entries: %d\n", len(b.Files))
		summaries, err = b.Summarize()
		if err != nil {
			fmt.Printf("Failed to decode FIT file: %v\n", err)
			os.Exit(1)
		}
	}

	for _, s := range summaries {
		fmt.Printf("\n=== %s: %d sessions, %d laps, %d records ===\n", s.File, len(s.Sessions), s.Laps, s.Records)
		if len(s.Sessions) == 0 {
			continue
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tStart Time\tDuration\tDistance\tSport\tSubSport")
		fmt.Fprintln(w, "-\t----------\t--------\t--------\t-----\t--------")
		for i, sess := range s.Sessions {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2f km\t%s\t%s\n",
				i+1, sess.StartTime.Format(time.RFC3339), sess.Elapsed.Round(time.Second), sess.DistanceMeters/1000, sess.Sport, sess.SubSport)
		}
		w.Flush()
	}
}

func read(input string) ([]byte, error) {
	bucket, object, ok := activity.ParseGCSURI(input)
	if !ok {
		return os.ReadFile(input)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	defer client.Close()
	return infrastorage.NewStorageAdapter(client).Read(ctx, bucket, object)
}
