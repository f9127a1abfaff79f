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
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediapackage"
	mptypes "github.com/aws/aws-sdk-go-v2/service/mediapackage/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/apiresponse"
	"github.com/cardinalhq/mediarunner/internal/idgen"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// HarvestJobAPI is the subset of the MediaPackage client used to submit jobs.
type HarvestJobAPI interface {
	CreateHarvestJob(ctx context.Context, params *mediapackage.CreateHarvestJobInput, optFns ...func(*mediapackage.Options)) (*mediapackage.CreateHarvestJobOutput, error)
}

// Submitter turns harvest requests into MediaPackage harvest jobs.
type Submitter struct {
	client HarvestJobAPI
	cfg    config.HarvestConfig
	newID  func() (string, error)
}

func NewSubmitter(client HarvestJobAPI, cfg config.HarvestConfig) *Submitter {
	return &Submitter{
		client: client,
		cfg:    cfg,
		newID:  idgen.HarvestJobID,
	}
}

// Handle is the API Gateway entry point. Every outcome is reported in the
// response; the returned error is always nil.
func (s *Submitter) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx, ll := logctx.WithInvocation(ctx, "harvest-start")

	body, err := requestBody(req)
	if err != nil {
		return apiresponse.FromError(err), nil
	}

	job, err := s.Submit(ctx, body)
	if err != nil {
		ll.Warn("Harvest submission rejected", slog.Any("error", err))
		return apiresponse.FromError(err), nil
	}

	return apiresponse.Text(http.StatusCreated, string(job.Status)), nil
}

// Submit validates a raw JSON request body and creates one harvest job.
func (s *Submitter) Submit(ctx context.Context, body string) (*Job, error) {
	if strings.TrimSpace(body) == "" {
		recordSubmit(ctx, "invalid")
		return nil, apiresponse.NewValidation(MsgNoBody)
	}

	var req Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		recordSubmit(ctx, "invalid")
		return nil, apiresponse.NewValidation(MsgMissingConfig)
	}
	if err := req.Validate(); err != nil {
		recordSubmit(ctx, "invalid")
		return nil, err
	}

	if s.cfg.DestinationBucket == "" {
		recordSubmit(ctx, "misconfigured")
		return nil, apiresponse.NewConfiguration(http.StatusBadRequest, MsgMissingBucket)
	}
	if s.cfg.RoleARN == "" {
		recordSubmit(ctx, "misconfigured")
		return nil, apiresponse.NewConfiguration(http.StatusBadRequest, MsgMissingRole)
	}

	id, err := s.jobID(req)
	if err != nil {
		recordSubmit(ctx, "error")
		return nil, err
	}

	dest := Destination{
		BucketName:  s.cfg.DestinationBucket,
		ManifestKey: ManifestKey(id),
		RoleARN:     s.cfg.RoleARN,
	}

	ll := logctx.FromContext(ctx).With(
		slog.String("jobID", id),
		slog.String("originID", req.OriginID),
	)
	ll.Info("Submitting harvest job",
		slog.String("start", req.Min),
		slog.String("end", req.Max),
		slog.String("manifest", dest.SourceARN()))

	out, err := s.client.CreateHarvestJob(ctx, &mediapackage.CreateHarvestJobInput{
		Id:               aws.String(id),
		StartTime:        aws.String(req.Min),
		EndTime:          aws.String(req.Max),
		OriginEndpointId: aws.String(req.OriginID),
		S3Destination: &mptypes.S3Destination{
			BucketName:  aws.String(dest.BucketName),
			ManifestKey: aws.String(dest.ManifestKey),
			RoleArn:     aws.String(dest.RoleARN),
		},
	})
	if err != nil {
		recordSubmit(ctx, "error")
		ll.Error("CreateHarvestJob failed", slog.Any("error", err))
		return nil, apiresponse.NewUpstream(http.StatusInternalServerError, err)
	}

	recordSubmit(ctx, "submitted")
	job := &Job{
		ID:          id,
		Status:      Status(out.Status),
		OriginID:    req.OriginID,
		Destination: dest,
	}
	ll.Info("Harvest job submitted", slog.String("status", string(job.Status)))
	return job, nil
}

func (s *Submitter) jobID(req Request) (string, error) {
	if req.IdempotencyKey != "" {
		return idgen.IdempotentJobID(req.IdempotencyKey), nil
	}
	return s.newID()
}

func recordSubmit(ctx context.Context, outcome string) {
	submitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// requestBody returns the request body, decoding it when API Gateway
// delivered it base64 encoded.
func requestBody(req events.APIGatewayProxyRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", apiresponse.NewValidation(MsgNoBody)
	}
	return string(b), nil
}
