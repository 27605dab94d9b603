// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AccelByte/extend-dayend-engine/pkg/history"
	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
)

func init() {
	rootCmd.AddCommand(backfillHistoryCmd)
	backfillHistoryCmd.Flags().String("user", "", "Target a single user ID")
	backfillHistoryCmd.Flags().Bool("all", false, "Target every known user")
	backfillHistoryCmd.Flags().Bool("recalculate", false,
		"Recompute recent daily records before rebuilding history")
}

var backfillHistoryCmd = &cobra.Command{
	Use:   "backfill-history",
	Short: "Rebuild the rolling score history from daily records",
	Long: `Rebuild each user's rolling cumulative-score history document from their
persisted daily records, discarding whatever the history document held.
With --recalculate the recent daily records are recomputed first, so the
rebuilt history reflects current scoring rules.`,
	RunE: runBackfillHistory,
}

func runBackfillHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, _ := cmd.Flags().GetString("user")
	all, _ := cmd.Flags().GetBool("all")
	recalculate, _ := cmd.Flags().GetBool("recalculate")

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	users, err := resolveUsers(ctx, e.store, user, all)
	if err != nil {
		return err
	}

	failures := 0
	for _, uid := range users {
		if recalculate {
			opts := ledger.Options{Overwrite: true}
			if err := e.persister.BackfillRecent(ctx, uid, history.MaxEntries, opts); err != nil {
				fmt.Fprintf(os.Stderr, "user %s: recalculation failed: %v\n", uid, err)
				failures++
				continue
			}
		}
		count, err := e.compactor.Rebuild(ctx, uid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "user %s: history rebuild failed: %v\n", uid, err)
			failures++
			continue
		}
		fmt.Printf("user %s: history rebuilt with %d entries\n", uid, count)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d users failed", failures, len(users))
	}
	fmt.Printf("done: %d users\n", len(users))
	return nil
}
