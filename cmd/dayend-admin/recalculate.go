// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
)

func init() {
	rootCmd.AddCommand(recalculateCmd)
	recalculateCmd.Flags().String("user", "", "Target user ID (required)")
	recalculateCmd.Flags().String("from", "", "Range start date, YYYY-MM-DD (required)")
	recalculateCmd.Flags().String("to", "", "Range end date, YYYY-MM-DD (required)")
	_ = recalculateCmd.MarkFlagRequired("user")
	_ = recalculateCmd.MarkFlagRequired("from")
	_ = recalculateCmd.MarkFlagRequired("to")
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Recompute a user's daily records over a date range",
	Long: `Recompute a user's daily progress records between --from and --to
inclusive, in ascending date order so each day's opening score chains
from the recomputed previous day. Existing records are overwritten.`,
	RunE: runRecalculate,
}

func runRecalculate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, _ := cmd.Flags().GetString("user")
	fromKey, _ := cmd.Flags().GetString("from")
	toKey, _ := cmd.Flags().GetString("to")

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	from, err := e.clock.ParseDateKey(fromKey)
	if err != nil {
		return fmt.Errorf("invalid --from date %q: expected YYYY-MM-DD", fromKey)
	}
	to, err := e.clock.ParseDateKey(toKey)
	if err != nil {
		return fmt.Errorf("invalid --to date %q: expected YYYY-MM-DD", toKey)
	}

	opts := ledger.Options{Overwrite: true}
	if err := e.persister.PersistRange(ctx, user, from, to, opts); err != nil {
		return fmt.Errorf("recalculation failed: %w", err)
	}

	fmt.Printf("user %s: recalculated %s through %s\n", user, fromKey, toKey)
	return nil
}
