// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package docstore

import (
	"encoding/json"
	"time"
)

// Stamp is a tagged timestamp: either a concrete client instant or a
// server-assigned value that is still pending. Pending stamps resolve to
// the wall clock exactly once, when the document crosses the store
// boundary (JSON marshalling). Engine logic only ever reads resolved
// instants; after a round trip through the store every Stamp is resolved.
type Stamp struct {
	Time          time.Time
	ServerPending bool
}

// At creates a resolved Stamp for a known instant.
func At(t time.Time) Stamp {
	return Stamp{Time: t.UTC()}
}

// ServerNow creates a Stamp whose value the store assigns at write time.
func ServerNow() Stamp {
	return Stamp{ServerPending: true}
}

// IsZero reports whether the stamp carries no instant and is not pending.
func (s Stamp) IsZero() bool {
	return !s.ServerPending && s.Time.IsZero()
}

// MarshalJSON resolves a pending stamp to the current wall clock; resolved
// stamps serialize their instant as RFC 3339 UTC so that lexicographic and
// chronological order agree for query comparisons.
func (s Stamp) MarshalJSON() ([]byte, error) {
	t := s.Time
	if s.ServerPending {
		t = time.Now()
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON always yields a resolved stamp.
func (s *Stamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return err
	}
	s.Time = t.UTC()
	s.ServerPending = false
	return nil
}
