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
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/mediapackagevod"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/mediarunner/internal/apiresponse"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// AssetAPI is the subset of the MediaPackage VOD client used to register
// harvested clips.
type AssetAPI interface {
	CreateAsset(ctx context.Context, params *mediapackagevod.CreateAssetInput, optFns ...func(*mediapackagevod.Options)) (*mediapackagevod.CreateAssetOutput, error)
}

// StatusNotHandledError is returned for completion events whose status is
// neither SUCCEEDED nor FAILED.
type StatusNotHandledError struct {
	JobID  string
	Status Status
}

func (e StatusNotHandledError) Error() string {
	return fmt.Sprintf("harvest job %s has unhandled status %q", e.JobID, e.Status)
}

func (e StatusNotHandledError) StatusCode() int { return http.StatusBadRequest }
func (e StatusNotHandledError) Body() string {
	return fmt.Sprintf("Unhandled Harvest Status: %s", e.Status)
}

// ErrHarvestFailed is returned for completion events reporting FAILED.
var ErrHarvestFailed = apiresponse.NewUpstreamShape(http.StatusBadRequest, MsgHarvestFailed)

// Completer registers successfully harvested clips as VOD assets.
type Completer struct {
	client         AssetAPI
	packagingGroup string
}

func NewCompleter(client AssetAPI, packagingGroup string) *Completer {
	return &Completer{client: client, packagingGroup: packagingGroup}
}

// Handle is the EventBridge entry point. The response reports every outcome.
// An error is also returned when the VOD registration call failed in a way
// redelivery can fix, so the event source retries it.
func (c *Completer) Handle(ctx context.Context, ev events.CloudWatchEvent) (events.APIGatewayProxyResponse, error) {
	ctx, ll := logctx.WithInvocation(ctx, "harvest-complete")

	asset, err := c.Complete(ctx, ev.Detail)
	if err != nil {
		resp := apiresponse.FromError(err)
		if Retryable(err) {
			ll.Error("Asset registration failed", slog.String("eventID", ev.ID), slog.Any("error", err))
			return resp, err
		}
		ll.Warn("Harvest completion not registered", slog.String("eventID", ev.ID), slog.Any("error", err))
		return resp, nil
	}

	ll.Info("Registered harvested asset",
		slog.String("assetID", asset.ID),
		slog.Int("egressEndpoints", len(asset.EgressURLs)))
	return apiresponse.Text(http.StatusOK, MsgOK), nil
}

// Complete processes the detail of one HarvestJob Notification event.
func (c *Completer) Complete(ctx context.Context, detail json.RawMessage) (*Asset, error) {
	if c.packagingGroup == "" {
		recordComplete(ctx, "misconfigured")
		return nil, apiresponse.NewConfiguration(http.StatusBadRequest, MsgMissingGroup)
	}

	var cd CompletionDetail
	if len(detail) == 0 {
		recordComplete(ctx, "invalid")
		return nil, apiresponse.NewValidation(MsgMissingJob)
	}
	if err := json.Unmarshal(detail, &cd); err != nil || cd.HarvestJob == nil || cd.HarvestJob.ID == "" {
		recordComplete(ctx, "invalid")
		return nil, apiresponse.NewValidation(MsgMissingJob)
	}
	job := cd.HarvestJob

	ll := logctx.FromContext(ctx).With(
		slog.String("jobID", job.ID),
		slog.String("status", string(job.Status)),
	)

	switch job.Status {
	case StatusSucceeded:
	case StatusFailed:
		recordComplete(ctx, "failed")
		ll.Warn("Harvest job failed")
		return nil, ErrHarvestFailed
	default:
		recordComplete(ctx, "unhandled")
		return nil, StatusNotHandledError{JobID: job.ID, Status: job.Status}
	}

	if !job.S3Destination.Complete() {
		recordComplete(ctx, "invalid")
		ll.Warn("Harvest job has no S3 destination")
		return nil, apiresponse.NewValidation(MsgMissingDest)
	}

	sourceARN := job.S3Destination.SourceARN()
	ll.Info("Registering harvested clip",
		slog.String("packagingGroup", c.packagingGroup),
		slog.String("source", sourceARN))

	out, err := c.client.CreateAsset(ctx, &mediapackagevod.CreateAssetInput{
		Id:               aws.String(job.ID),
		PackagingGroupId: aws.String(c.packagingGroup),
		SourceArn:        aws.String(sourceARN),
		SourceRoleArn:    aws.String(job.S3Destination.RoleARN),
	})
	if err != nil {
		recordComplete(ctx, "error")
		return nil, apiresponse.NewUpstream(http.StatusInternalServerError, err)
	}
	if len(out.EgressEndpoints) == 0 {
		recordComplete(ctx, "no_egress")
		return nil, apiresponse.NewUpstreamShape(http.StatusBadRequest, MsgNoEgressEndpoints)
	}

	asset := &Asset{
		ID:             job.ID,
		PackagingGroup: c.packagingGroup,
		SourceARN:      sourceARN,
	}
	for _, ep := range out.EgressEndpoints {
		if url := aws.ToString(ep.Url); url != "" {
			asset.EgressURLs = append(asset.EgressURLs, url)
		}
	}
	recordComplete(ctx, "registered")
	return asset, nil
}

// Retryable reports whether a Complete error should cause redelivery. Only
// failed registration calls qualify, and of those only server faults,
// throttling and errors that never reached the service. Anything else is
// terminal for the event.
func Retryable(err error) bool {
	var u apiresponse.UpstreamError
	if !errors.As(err, &u) || u.Err == nil {
		return false
	}
	var apiErr smithy.APIError
	if !errors.As(u.Err, &apiErr) {
		return true
	}
	if _, ok := retry.DefaultThrottleErrorCodes[apiErr.ErrorCode()]; ok {
		return true
	}
	return apiErr.ErrorFault() != smithy.FaultClient
}

func recordComplete(ctx context.Context, outcome string) {
	completeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
