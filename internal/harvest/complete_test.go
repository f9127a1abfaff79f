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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/mediarunner/internal/apiresponse"
)

func TestCompleterRegistersSucceededJob(t *testing.T) {
	assets := &fakeAssets{endpoints: []string{"https://example.com/out/index.m3u8"}}
	c := NewCompleter(assets, "vod-group")

	resp, err := c.Handle(context.Background(), completionEvent("job1", StatusSucceeded))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, MsgOK, resp.Body)
	assertCORS(t, resp)

	require.Len(t, assets.calls, 1)
	in := assets.calls[0]
	assert.Equal(t, "job1", aws.ToString(in.Id))
	assert.Equal(t, "vod-group", aws.ToString(in.PackagingGroupId))
	assert.Equal(t, "arn:aws:s3:::vod-bucket/job1/index.m3u8", aws.ToString(in.SourceArn))
	assert.Equal(t, "arn:aws:iam::123456789012:role/harvest", aws.ToString(in.SourceRoleArn))
}

func TestCompleterComplete(t *testing.T) {
	assets := &fakeAssets{endpoints: []string{"https://a/index.m3u8", "", "https://b/index.mpd"}}
	c := NewCompleter(assets, "vod-group")

	asset, err := c.Complete(context.Background(), completionDetail("job1", StatusSucceeded))
	require.NoError(t, err)
	assert.Equal(t, "job1", asset.ID)
	assert.Equal(t, "vod-group", asset.PackagingGroup)
	assert.Equal(t, []string{"https://a/index.m3u8", "https://b/index.mpd"}, asset.EgressURLs)
}

func TestCompleterNoCatalogCall(t *testing.T) {
	tests := []struct {
		name     string
		group    string
		detail   json.RawMessage
		wantBody string
	}{
		{"failed job", "vod-group", completionDetail("job1", StatusFailed), MsgHarvestFailed},
		{"in progress", "vod-group", completionDetail("job1", StatusInProgress), "Unhandled Harvest Status: IN_PROGRESS"},
		{"unknown status", "vod-group", completionDetail("job1", Status("CANCELLED")), "Unhandled Harvest Status: CANCELLED"},
		{"missing group", "", completionDetail("job1", StatusSucceeded), MsgMissingGroup},
		{"missing group wins over failed", "", completionDetail("job1", StatusFailed), MsgMissingGroup},
		{"empty detail", "vod-group", nil, MsgMissingJob},
		{"no harvest_job", "vod-group", json.RawMessage(`{"other":1}`), MsgMissingJob},
		{"no job id", "vod-group", json.RawMessage(`{"harvest_job":{"status":"SUCCEEDED"}}`), MsgMissingJob},
		{"garbage", "vod-group", json.RawMessage(`[1,2`), MsgMissingJob},
		{"no destination", "vod-group", json.RawMessage(`{"harvest_job":{"id":"x","status":"SUCCEEDED"}}`), MsgMissingDest},
		{"no manifest key", "vod-group", json.RawMessage(`{"harvest_job":{"id":"x","status":"SUCCEEDED","s3_destination":{"bucket_name":"vod-bucket"}}}`), MsgMissingDest},
		{"failed job without destination", "vod-group", json.RawMessage(`{"harvest_job":{"id":"x","status":"FAILED"}}`), MsgHarvestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := &fakeAssets{endpoints: []string{"https://a"}}
			c := NewCompleter(assets, tt.group)

			resp, err := c.Handle(context.Background(), events.CloudWatchEvent{Detail: tt.detail})
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantBody, resp.Body)
			assertCORS(t, resp)
			assert.Empty(t, assets.calls)
		})
	}
}

func TestCompleterNoEgressEndpoints(t *testing.T) {
	assets := &fakeAssets{}
	c := NewCompleter(assets, "vod-group")

	resp, err := c.Handle(context.Background(), completionEvent("job1", StatusSucceeded))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, MsgNoEgressEndpoints, resp.Body)
	assert.Len(t, assets.calls, 1)
}

func TestCompleterRegistrationErrorIsReturned(t *testing.T) {
	assets := &fakeAssets{err: errors.New("throttled")}
	c := NewCompleter(assets, "vod-group")

	resp, err := c.Handle(context.Background(), completionEvent("job1", StatusSucceeded))
	require.Error(t, err)
	assert.True(t, Retryable(err))
	assert.ErrorAs(t, err, new(apiresponse.UpstreamError))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "throttled", resp.Body)
	assert.Len(t, assets.calls, 1)
}

func TestCompleterClientFaultIsTerminal(t *testing.T) {
	exists := &smithy.GenericAPIError{
		Code:    "UnprocessableEntityException",
		Message: "Asset job1 already exists",
		Fault:   smithy.FaultClient,
	}
	assets := &fakeAssets{err: fmt.Errorf("operation error MediaPackage Vod: CreateAsset: %w", exists)}
	c := NewCompleter(assets, "vod-group")

	resp, err := c.Handle(context.Background(), completionEvent("job1", StatusSucceeded))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Asset job1 already exists", resp.Body)

	_, err = c.Complete(context.Background(), completionDetail("job1", StatusSucceeded))
	require.Error(t, err)
	assert.False(t, Retryable(err))
}

func TestRetryable(t *testing.T) {
	upstream := func(err error) error {
		return apiresponse.NewUpstream(http.StatusInternalServerError, err)
	}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", upstream(errors.New("connection reset")), true},
		{"server fault", upstream(&smithy.GenericAPIError{Code: "InternalServerErrorException", Fault: smithy.FaultServer}), true},
		{"unknown fault", upstream(&smithy.GenericAPIError{Code: "Weird"}), true},
		{"throttled client fault", upstream(&smithy.GenericAPIError{Code: "TooManyRequestsException", Fault: smithy.FaultClient}), true},
		{"client fault", upstream(&smithy.GenericAPIError{Code: "UnprocessableEntityException", Fault: smithy.FaultClient}), false},
		{"wrapped client fault", upstream(fmt.Errorf("op: %w", &smithy.GenericAPIError{Code: "ForbiddenException", Fault: smithy.FaultClient})), false},
		{"harvest failed", ErrHarvestFailed, false},
		{"no egress", apiresponse.NewUpstreamShape(http.StatusBadRequest, MsgNoEgressEndpoints), false},
		{"validation", apiresponse.NewValidation(MsgMissingJob), false},
		{"missing destination", apiresponse.NewValidation(MsgMissingDest), false},
		{"unhandled status", StatusNotHandledError{JobID: "j", Status: "X"}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}
