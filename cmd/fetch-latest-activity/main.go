// Command fetch-latest-activity prints the newest archived activity of an
// account, which is where the next import will resume.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/spf13/pflag"

	"github.com/lancerinf/garmin-importer/pkg/bootstrap"
	"github.com/lancerinf/garmin-importer/pkg/credentials"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/database"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/secrets"
)

func main() {
	username := pflag.StringP("username", "u", "", "Garmin Connect username (defaults to the account in the credentials secret)")
	asJSON := pflag.Bool("json", false, "Print the whole record as JSON")
	timeout := pflag.Duration("timeout", 30*time.Second, "Overall timeout")
	pflag.Parse()

	cfg := bootstrap.LoadConfig()
	bootstrap.InitLogger(bootstrap.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *username == "" {
		sm, err := secrets.NewSecretsAdapter(ctx)
		if err != nil {
			fmt.Printf("Failed to create Secret Manager client: %v\n", err)
			os.Exit(1)
		}
		defer sm.Close()
		creds, err := credentials.NewProvider(sm, cfg.ProjectID, cfg.CredentialsSecret).Retrieve(ctx)
		if err != nil {
			fmt.Printf("Failed to read credentials: %v\n", err)
			os.Exit(1)
		}
		*username = creds.Username
	}

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		fmt.Printf("Failed to create Firestore client: %v\n", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	latest, err := database.NewFirestoreAdapter(fsClient).GetLatestArchivedActivity(ctx, *username)
	if err != nil {
		fmt.Printf("Failed to query archive: %v\n", err)
		os.Exit(1)
	}
	if latest == nil {
		fmt.Printf("No archived activities for %s (next import starts at %s)\n", *username, cfg.DefaultSince.Format(time.DateOnly))
		return
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(latest); err != nil {
			fmt.Printf("Failed to encode record: %v\n", err)
			os.Exit(1)
		}
		return
	}

	started := time.UnixMilli(latest.ActivityTs).UTC()
	fmt.Printf("Username:       %s\n", latest.Username)
	fmt.Printf("Activity ID:    %s\n", latest.ActivityID)
	fmt.Printf("Activity TS:    %d (%s)\n", latest.ActivityTs, started.Format(time.RFC3339))
	fmt.Printf("Start (local):  %s\n", latest.StartTimeLocal)
	fmt.Printf("Original:       %s\n", latest.ZipObject)
	fmt.Printf("GPX:            %s\n", latest.GpxObject)
	fmt.Printf("Archived at:    %s\n", latest.ArchivedAt.Format(time.RFC3339))
	fmt.Printf("Next import:    since %s\n", started.Format(time.DateOnly))
}
