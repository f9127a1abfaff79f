// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package idgen

import (
	crand "crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// JobIDBytes is the number of random bytes in a harvest job id. Hex encoding
// doubles it, so ids are 16 characters.
const JobIDBytes = 8

// idempotencyNamespace scopes name-based UUIDs derived from caller keys.
var idempotencyNamespace = uuid.MustParse("6d0b6a9e-4c1f-5a57-9d3e-2f8c1b7e4a90")

// HarvestJobID returns a fresh random job id.
func HarvestJobID() (string, error) {
	b := make([]byte, JobIDBytes)
	if _, err := crand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IdempotentJobID derives a job id from a caller-supplied key. The same key
// always yields the same id, in the same format as HarvestJobID.
func IdempotentJobID(key string) string {
	u := uuid.NewSHA1(idempotencyNamespace, []byte(key))
	return hex.EncodeToString(u[:JobIDBytes])
}

// RequestID creates a short random base32 id for correlating local requests.
// It is 8 characters long and not suitable for anything security sensitive.
func RequestID() string {
	b := make([]byte, 5)
	_, _ = crand.Read(b)
	return strings.ToLower(base32.StdEncoding.EncodeToString(b))
}
