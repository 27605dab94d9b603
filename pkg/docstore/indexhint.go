// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package docstore

import (
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// IndexHintError is returned by Store implementations whose backend
// rejects a filtered query for lack of a secondary/composite index. Hint,
// when present, is an actionable instruction (typically an index-creation
// console link) that must reach the operator's logs.
type IndexHintError struct {
	Op   string
	Hint string
	Err  error
}

func (e *IndexHintError) Error() string {
	if e.Hint != "" {
		return "query requires an index (" + e.Op + "): " + e.Hint
	}
	return "query requires an index (" + e.Op + ")"
}

func (e *IndexHintError) Unwrap() error { return e.Err }

var indexURLPattern = regexp.MustCompile(`https://[^\s)]+`)

// IsIndexHint reports whether err indicates a missing secondary index,
// either as a typed IndexHintError or by the backend's well-known error
// text ("requires an index", "failed-precondition").
func IsIndexHint(err error) bool {
	if err == nil {
		return false
	}
	var ih *IndexHintError
	if errors.As(err, &ih) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "requires an index") ||
		strings.Contains(msg, "failed-precondition") ||
		strings.Contains(msg, "create_composite")
}

// LogIndexHint surfaces a missing-index diagnostic with its creation hint
// when err matches; any other error is ignored. Maintenance sub-steps call
// this so a missing index never silently degrades a run.
func LogIndexHint(context string, err error) {
	if !IsIndexHint(err) {
		return
	}

	var ih *IndexHintError
	if errors.As(err, &ih) && ih.Hint != "" {
		logrus.Errorf("[%s] missing store index, create it: %s", context, ih.Hint)
		return
	}
	if url := indexURLPattern.FindString(err.Error()); url != "" {
		logrus.Errorf("[%s] missing store index, create it: %s", context, url)
		return
	}
	logrus.Errorf("[%s] missing store index detected but no creation link found in error payload", context)
}
