// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

//go:build integration
// +build integration

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-dayend-engine/pkg/activity"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayend"
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
	"github.com/AccelByte/extend-dayend-engine/pkg/maintenance"
	"github.com/AccelByte/extend-dayend-engine/pkg/scoring"
)

// This is a manual integration test for the day-end flow against a real
// Redis instance.
// Run this with: go run -tags integration test_redis_integration.go
// Requires: Redis running on localhost:6379

func main() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.Infof("Starting Redis integration test...")

	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}

	store := docstore.NewRedisStore(client, docstore.RedisStoreConfig{})
	clock := dayclock.New(0)
	manager := maintenance.NewManager(store, clock)
	persister := ledger.NewPersister(store, clock, scoring.DayCountRecovery{})
	processor := dayend.NewProcessor(store, clock, manager, persister, dayend.Config{})

	testUserID := fmt.Sprintf("test-user-%d", time.Now().Unix())
	yesterday := clock.YesterdayStart()
	logrus.Infof("Testing with user ID: %s, day: %s", testUserID, clock.DateKey(yesterday))

	// Test 1: Seed a completed habit instance for yesterday
	logrus.Infof("=== Test 1: Seed completed habit instance ===")
	completedAt := yesterday.Add(9 * time.Hour)
	inst := activity.Instance{
		TemplateID:           "tpl-integration",
		Status:               activity.StatusCompleted,
		DueDate:              &yesterday,
		BelongsToDate:        &yesterday,
		CompletedAt:          &completedAt,
		IsActive:             true,
		TemplateName:         "integration habit",
		TemplateCategoryType: activity.CategoryHabit,
		TemplatePriority:     2,
		TemplateTrackingType: activity.TrackingBinary,
	}
	if err := store.Set(ctx, testUserID, activity.InstancesCollection, "inst-1", inst); err != nil {
		logrus.Fatalf("Failed to seed instance: %v", err)
	}
	logrus.Infof("✓ Seeded instance")

	// Test 2: Run the full per-user day transition
	logrus.Infof("=== Test 2: Process user day ===")
	if err := processor.ProcessUserDay(ctx, testUserID, yesterday, ledger.Options{SetLastProcessed: true}); err != nil {
		logrus.Fatalf("ProcessUserDay failed: %v", err)
	}
	logrus.Infof("✓ Processed day")

	// Test 3: Verify the daily record was written under its date key
	logrus.Infof("=== Test 3: Verify daily record ===")
	doc, err := store.Get(ctx, testUserID, ledger.RecordsCollection, clock.DateKey(yesterday))
	if err != nil {
		logrus.Fatalf("Daily record lookup failed: %v", err)
	}
	logrus.Infof("✓ Daily record written: %d bytes", len(doc.Data))

	// Test 4: Verify the stats head exists
	logrus.Infof("=== Test 4: Verify stats head ===")
	if _, err := store.Get(ctx, testUserID, ledger.StatsCollection, ledger.StatsDocID); err != nil {
		logrus.Fatalf("Stats head lookup failed: %v", err)
	}
	logrus.Infof("✓ Stats head written")

	// Test 5: Reprocessing without overwrite leaves the record untouched
	logrus.Infof("=== Test 5: Idempotent reprocess ===")
	if err := processor.ProcessUserDay(ctx, testUserID, yesterday, ledger.Options{}); err != nil {
		logrus.Fatalf("Reprocess failed: %v", err)
	}
	doc2, err := store.Get(ctx, testUserID, ledger.RecordsCollection, clock.DateKey(yesterday))
	if err != nil {
		logrus.Fatalf("Daily record lookup failed: %v", err)
	}
	if string(doc.Data) != string(doc2.Data) {
		logrus.Fatalf("❌ Record changed on reprocess without overwrite")
	}
	logrus.Infof("✓ Reprocess left record untouched")

	// Cleanup
	for _, coll := range []string{activity.InstancesCollection, ledger.RecordsCollection, ledger.StatsCollection} {
		docs, _ := store.Query(ctx, testUserID, coll, docstore.Query{})
		for _, d := range docs {
			_ = store.Delete(ctx, testUserID, coll, d.ID)
		}
	}
	logrus.Infof("All integration tests passed")
}
