// Command sweeper performs a single expiry sweep: every available donation
// whose expiration date has passed is moved to the expired status. It runs
// one sweep and exits; scheduling belongs to whatever invokes it (cron, a
// systemd timer), not to this binary or the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/jredh-dev/surpluserve/config"
	"github.com/jredh-dev/surpluserve/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Report what would expire without writing")
	flag.Parse()

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	asOf := time.Now().UTC()

	if *dryRun {
		candidates, err := st.SearchAvailable(ctx, store.Filter{})
		if err != nil {
			log.Fatalf("Failed to list available donations: %v", err)
		}
		n := 0
		for _, d := range candidates {
			if d.ExpirationDate.Before(asOf) {
				n++
			}
		}
		log.Printf("Dry run: %d donation(s) would expire", n)
		os.Exit(0)
	}

	moved, err := st.ExpireDonations(ctx, asOf)
	if err != nil {
		log.Fatalf("Expiry sweep failed: %v", err)
	}
	log.Printf("Expiry sweep complete: %d donation(s) expired", moved)
}

// openStore selects the persistence driver from configuration.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.OpenSQLite(cfg.Store.SQLitePath)
	case "firestore":
		if cfg.Firebase.ProjectID == "" {
			return nil, fmt.Errorf("firestore driver requires FIREBASE_PROJECT_ID")
		}
		var opts []option.ClientOption
		if cfg.Firebase.CredentialsPath != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsPath))
		}
		client, err := firestore.NewClientWithDatabase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.FirestoreDatabase, opts...)
		if err != nil {
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		return store.NewFirestore(client), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
