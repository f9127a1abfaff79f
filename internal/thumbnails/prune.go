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

package thumbnails

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/apiresponse"
	"github.com/cardinalhq/mediarunner/internal/awsclient/s3helper"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

const (
	MsgNoBucket       = "No bucket name in environment"
	MsgNotEnoughFiles = "Not enough files to trigger a delete!"
	MsgDone           = "Done!"
	MsgListFailed     = "Unable to list thumbnails"
	MsgDeleteFailed   = "Unable to delete thumbnails"
)

// PruneAPI is the subset of the S3 client the Pruner needs.
type PruneAPI interface {
	s3.ListObjectsV2APIClient
	s3helper.DeleteObjectsAPI
}

// PruneResult describes one pruning run.
type PruneResult struct {
	Listed int
	// Deleted counts keys sent in successful delete calls.
	Deleted int
	// Failed lists keys S3 reported it could not delete.
	Failed []string
}

// ErrNothingToPrune is returned when the bucket holds no more than the
// retained number of objects.
var ErrNothingToPrune = apiresponse.NewValidation(MsgNotEnoughFiles)

// Pruner keeps a thumbnail bucket down to its newest frame captures.
type Pruner struct {
	client PruneAPI
	tracer trace.Tracer
	cfg    config.ThumbnailsConfig
}

func NewPruner(client PruneAPI, tracer trace.Tracer, cfg config.ThumbnailsConfig) *Pruner {
	return &Pruner{client: client, tracer: tracer, cfg: cfg}
}

// Handle is the scheduled-event entry point.
func (p *Pruner) Handle(ctx context.Context, _ events.CloudWatchEvent) (events.APIGatewayProxyResponse, error) {
	ctx, ll := logctx.WithInvocation(ctx, "thumbnails-prune")

	res, err := p.Prune(ctx)
	switch {
	case errors.Is(err, ErrNothingToPrune):
		ll.Info("Not enough thumbnails to prune", slog.Int("listed", res.Listed))
		return apiresponse.HTML(http.StatusBadRequest, MsgNotEnoughFiles), nil
	case err != nil:
		ll.Error("Thumbnail prune failed", slog.Any("error", err))
		return apiresponse.FromError(err), nil
	}

	ll.Info("Thumbnail prune finished",
		slog.Int("listed", res.Listed),
		slog.Int("deleted", res.Deleted),
		slog.Int("failed", len(res.Failed)))
	return apiresponse.HTML(http.StatusOK, MsgDone), nil
}

// Prune lists the bucket and deletes everything but the newest Retain
// objects. Failed delete calls do not stop later chunks.
func (p *Pruner) Prune(ctx context.Context) (PruneResult, error) {
	var res PruneResult
	if p.cfg.Bucket == "" {
		return res, apiresponse.NewConfiguration(http.StatusInternalServerError, MsgNoBucket)
	}

	ll := logctx.FromContext(ctx).With(slog.String("bucket", p.cfg.Bucket))

	objs, err := s3helper.ListObjects(ctx, p.tracer, p.client, p.cfg.Bucket, "", p.cfg.ListPageSize)
	if err != nil {
		pruneCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "list_error")))
		return res, apiresponse.UpstreamError{Message: MsgListFailed, Status: http.StatusInternalServerError, Err: err}
	}
	res.Listed = len(objs)

	expired := SelectExpired(objs, p.retain())
	if len(expired) == 0 {
		pruneCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
		return res, ErrNothingToPrune
	}

	ll.Info("Pruning thumbnails", slog.Int("listed", res.Listed), slog.Int("expired", len(expired)))
	dr, err := s3helper.DeleteKeys(ctx, p.tracer, p.client, p.cfg.Bucket, expired, p.cfg.DeleteBatchSize)
	res.Deleted = dr.Requested
	res.Failed = dr.Failed

	prunedCounter.Add(ctx, int64(dr.Requested-len(dr.Failed)), metric.WithAttributes(attribute.String("bucket", p.cfg.Bucket)))
	if err != nil {
		pruneCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "delete_error")))
		return res, apiresponse.UpstreamError{Message: MsgDeleteFailed, Status: http.StatusInternalServerError, Err: err}
	}
	pruneCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "pruned")))
	return res, nil
}

func (p *Pruner) retain() int {
	if p.cfg.Retain < 0 {
		return 0
	}
	return p.cfg.Retain
}

// SelectExpired returns the keys of all but the newest retain objects,
// oldest first. Objects are ordered by LastModified, with the key breaking
// ties, so the result does not depend on listing order.
func SelectExpired(objs []s3helper.Object, retain int) []string {
	if len(objs) <= retain {
		return nil
	}
	sorted := slices.Clone(objs)
	slices.SortFunc(sorted, func(a, b s3helper.Object) int {
		if c := a.LastModified.Compare(b.LastModified); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})

	n := len(sorted) - retain
	keys := make([]string, n)
	for i := range n {
		keys[i] = sorted[i].Key
	}
	return keys
}
