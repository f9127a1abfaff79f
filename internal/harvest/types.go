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

package harvest

import (
	"fmt"
	"time"

	"github.com/cardinalhq/mediarunner/internal/apiresponse"
)

// Status is a MediaPackage harvest job status.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
)

// Response bodies reported to callers.
const (
	MsgNoBody            = "No Event Body"
	MsgMissingConfig     = "Missing Harvest Configuration"
	MsgInvalidTimeRange  = "Invalid Harvest Time Range"
	MsgMissingBucket     = "Missing S3 Bucket"
	MsgMissingRole       = "Missing Harvest Role ARN"
	MsgMissingGroup      = "Missing MP Packaging Group"
	MsgMissingJob        = "Missing Harvest Job"
	MsgMissingDest       = "Missing Harvest Destination"
	MsgHarvestFailed     = "Harvest Failed"
	MsgNoEgressEndpoints = "Something went wrong"
	MsgOK                = "ok"
)

// Request is the caller's harvest request body.
type Request struct {
	Min      string `json:"min"`
	Max      string `json:"max"`
	OriginID string `json:"originId"`
	// IdempotencyKey, when set, makes the job id a function of the key so a
	// retried request cannot create a second job.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Validate checks that the request names a source and a well-formed range.
func (r Request) Validate() error {
	if r.Min == "" || r.Max == "" || r.OriginID == "" {
		return apiresponse.NewValidation(MsgMissingConfig)
	}
	start, err := ParseTimestamp(r.Min)
	if err != nil {
		return apiresponse.NewValidation(MsgInvalidTimeRange)
	}
	end, err := ParseTimestamp(r.Max)
	if err != nil {
		return apiresponse.NewValidation(MsgInvalidTimeRange)
	}
	if !end.After(start) {
		return apiresponse.NewValidation(MsgInvalidTimeRange)
	}
	return nil
}

// timestampLayouts are the ISO 8601 date-time forms MediaPackage accepts for
// a harvest window. Every form carries a zone; fractional seconds are
// accepted by all of them.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
}

// ParseTimestamp parses an ISO 8601 date-time with a zone designator, such
// as 2024-05-01T10:00:00Z, 2024-05-01T10:00:00.5+02:00 or
// 2024-05-01T10:00:00+0000.
func ParseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Destination is where MediaPackage writes a harvested clip.
type Destination struct {
	BucketName  string `json:"bucket_name"`
	ManifestKey string `json:"manifest_key"`
	RoleARN     string `json:"role_arn"`
}

// Complete reports whether both the bucket and the manifest key are set.
func (d Destination) Complete() bool {
	return d.BucketName != "" && d.ManifestKey != ""
}

// SourceARN is the S3 ARN of the harvested manifest.
func (d Destination) SourceARN() string {
	return fmt.Sprintf("arn:aws:s3:::%s/%s", d.BucketName, d.ManifestKey)
}

// ManifestKey is the object key of the HLS manifest for job id.
func ManifestKey(id string) string {
	return id + "/index.m3u8"
}

// Job is a submitted harvest job as reported back by MediaPackage.
type Job struct {
	ID          string
	Status      Status
	OriginID    string
	Destination Destination
}

// JobDetail is the harvest_job object of a HarvestJob Notification event.
type JobDetail struct {
	ID               string      `json:"id"`
	ARN              string      `json:"arn,omitempty"`
	Status           Status      `json:"status"`
	OriginEndpointID string      `json:"origin_endpoint_id,omitempty"`
	StartTime        string      `json:"start_time,omitempty"`
	EndTime          string      `json:"end_time,omitempty"`
	S3Destination    Destination `json:"s3_destination"`
}

// CompletionDetail is the detail payload of a HarvestJob Notification event.
type CompletionDetail struct {
	HarvestJob *JobDetail `json:"harvest_job"`
}

// Asset is a registered VOD asset.
type Asset struct {
	ID             string
	PackagingGroup string
	SourceARN      string
	EgressURLs     []string
}
