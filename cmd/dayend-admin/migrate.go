// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
)

func init() {
	rootCmd.AddCommand(migrateDateIDsCmd)
	migrateDateIDsCmd.Flags().String("user", "", "Target a single user ID")
	migrateDateIDsCmd.Flags().Bool("all", false, "Target every known user")
	migrateDateIDsCmd.Flags().Bool("dry-run", false, "Report what would change without writing")
}

var migrateDateIDsCmd = &cobra.Command{
	Use:   "migrate-date-ids",
	Short: "Re-key legacy daily records to date document IDs",
	Long: `Re-key daily progress records stored under auto-generated document IDs
to their date key (YYYY-MM-DD), which makes day lookups point reads.
Records already keyed by date are left alone, and a legacy record whose
date key is already occupied is skipped rather than overwritten.`,
	RunE: runMigrateDateIDs,
}

func runMigrateDateIDs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, _ := cmd.Flags().GetString("user")
	all, _ := cmd.Flags().GetBool("all")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	users, err := resolveUsers(ctx, e.store, user, all)
	if err != nil {
		return err
	}

	totalMigrated, totalSkipped := 0, 0
	for _, uid := range users {
		migrated, skipped, err := migrateUser(ctx, e, uid, dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "user %s: migration failed: %v\n", uid, err)
			continue
		}
		totalMigrated += migrated
		totalSkipped += skipped
	}

	verb := "migrated"
	if dryRun {
		verb = "would migrate"
	}
	fmt.Printf("done: %s %d records, skipped %d, across %d users\n",
		verb, totalMigrated, totalSkipped, len(users))
	return nil
}

func migrateUser(ctx context.Context, e *env, userID string, dryRun bool) (migrated, skipped int, err error) {
	docs, err := e.store.Query(ctx, userID, ledger.RecordsCollection, docstore.Query{})
	if err != nil {
		return 0, 0, err
	}

	for _, doc := range docs {
		var rec struct {
			Date string `json:"date"`
		}
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			fmt.Fprintf(os.Stderr, "user %s: skipping undecodable record %s: %v\n", userID, doc.ID, err)
			skipped++
			continue
		}
		if _, err := e.clock.ParseDateKey(rec.Date); err != nil {
			fmt.Fprintf(os.Stderr, "user %s: skipping record %s with invalid date %q\n", userID, doc.ID, rec.Date)
			skipped++
			continue
		}
		if doc.ID == rec.Date {
			continue
		}

		_, err := e.store.Get(ctx, userID, ledger.RecordsCollection, rec.Date)
		if err == nil {
			fmt.Printf("user %s: record %s skipped, date key %s already exists\n", userID, doc.ID, rec.Date)
			skipped++
			continue
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return migrated, skipped, err
		}

		if dryRun {
			fmt.Printf("user %s: would migrate %s to %s\n", userID, doc.ID, rec.Date)
			migrated++
			continue
		}

		batch := e.store.NewBatch()
		batch.Set(userID, ledger.RecordsCollection, rec.Date, json.RawMessage(doc.Data))
		batch.Delete(userID, ledger.RecordsCollection, doc.ID)
		if err := batch.Commit(ctx); err != nil {
			return migrated, skipped, fmt.Errorf("failed to re-key record %s: %w", doc.ID, err)
		}
		migrated++
	}

	return migrated, skipped, nil
}
