package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mansoorceksport/nutritico/internal/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Older custom foods only carry their group inside the portion text,
// e.g. "100 g (Proteinas)". This fills the explicit group field.
func main() {
	mongoURI := flag.String("mongo", "", "MongoDB URI (required)")
	dbName := flag.String("db", "nutritico", "Database name")
	dryRun := flag.Bool("dry-run", true, "Preview changes without writing (default: true)")
	flag.Parse()

	if *mongoURI == "" {
		*mongoURI = os.Getenv("MONGO_URI")
		if *mongoURI == "" {
			log.Fatal("MongoDB URI is required. Use -mongo flag or MONGO_URI env var")
		}
	}

	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	repo := repository.NewMongoStateRepository(client.Database(*dbName))

	fmt.Println("=== Custom Food Group Migration ===")
	fmt.Printf("Database: %s\n", *dbName)
	fmt.Printf("Dry Run: %v\n\n", *dryRun)

	userIDs, err := repo.ListUserIDs(ctx)
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}

	var usersUpdated, foodsUpdated int
	for _, userID := range userIDs {
		state, err := repo.Load(ctx, userID)
		if err != nil {
			log.Printf("  ERROR loading %s: %v", userID, err)
			continue
		}
		if state == nil {
			continue
		}

		n := state.MigrateCustomFoods()
		if n == 0 {
			continue
		}
		fmt.Printf("  User %s: %d custom foods\n", userID, n)

		if !*dryRun {
			if err := repo.Save(ctx, userID, state); err != nil {
				log.Printf("  ERROR saving %s: %v", userID, err)
				continue
			}
		}
		usersUpdated++
		foodsUpdated += n
	}

	fmt.Println("\n=== Migration Summary ===")
	fmt.Printf("Users scanned: %d\n", len(userIDs))
	fmt.Printf("Users updated: %d\n", usersUpdated)
	fmt.Printf("Foods updated: %d\n", foodsUpdated)

	if *dryRun {
		fmt.Println("\n⚠️  This was a DRY RUN. No data was modified.")
		fmt.Println("Run with -dry-run=false to apply changes.")
	} else {
		fmt.Println("\n✅ Migration complete!")
	}
}
