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

package s3helper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// MaxDeleteBatch is the most keys S3 accepts in one DeleteObjects call.
const MaxDeleteBatch = 1000

var noopTracer = noop.NewTracerProvider().Tracer("")

// startSpan starts name on tracer, which is normally the Tracer of the
// awsclient.S3Client the caller was built from. A nil tracer records nothing.
func startSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noopTracer
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// DeleteObjectsAPI is the subset of the S3 client used for batch deletes.
type DeleteObjectsAPI interface {
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Object is a listed key with its modification time.
type Object struct {
	Key          string
	LastModified time.Time
}

func S3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	return errors.As(err, &noKeyErr)
}

// ListObjects returns every object in bucket under prefix, following
// continuation tokens until the listing is exhausted. The whole listing is
// held in memory.
func ListObjects(ctx context.Context, tracer trace.Tracer, client s3.ListObjectsV2APIClient, bucket, prefix string, pageSize int32) ([]Object, error) {
	ctx, span := startSpan(ctx, tracer, "s3helper.ListObjects",
		attribute.String("bucketID", bucket),
		attribute.String("prefix", prefix),
	)
	defer span.End()

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if pageSize > 0 {
		input.MaxKeys = aws.Int32(pageSize)
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list failed")
			return nil, fmt.Errorf("listing s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	span.SetAttributes(attribute.Int("object_count", len(objects)))
	return objects, nil
}

// DeleteResult summarizes a chunked delete.
type DeleteResult struct {
	// Requested is the number of keys sent in calls that succeeded.
	Requested int
	// Calls is the number of DeleteObjects calls issued.
	Calls int
	// Failed lists keys S3 reported as not deleted inside successful calls.
	Failed []string
}

// DeleteKeys deletes keys in chunks of at most batchSize (capped at
// MaxDeleteBatch). Every chunk is attempted even when an earlier one fails;
// call failures are aggregated into the returned error. Per-object failures
// reported by S3 are logged and collected in the result but are not errors.
func DeleteKeys(ctx context.Context, tracer trace.Tracer, client DeleteObjectsAPI, bucket string, keys []string, batchSize int) (DeleteResult, error) {
	var result DeleteResult
	if len(keys) == 0 {
		return result, nil
	}
	if batchSize <= 0 || batchSize > MaxDeleteBatch {
		batchSize = MaxDeleteBatch
	}

	ctx, span := startSpan(ctx, tracer, "s3helper.DeleteKeys",
		attribute.String("bucketID", bucket),
		attribute.Int("object_count", len(keys)),
	)
	defer span.End()

	ll := logctx.FromContext(ctx)

	var errs *multierror.Error
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		batch := keys[i:end]

		objects := make([]types.ObjectIdentifier, len(batch))
		for j, key := range batch {
			objects[j] = types.ObjectIdentifier{
				Key: aws.String(key),
			}
		}

		result.Calls++
		out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true), // only return errors
			},
		})
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("deleting keys %d-%d from %s: %w", i, end-1, bucket, err))
			continue
		}
		result.Requested += len(batch)

		for _, failed := range out.Errors {
			key := aws.ToString(failed.Key)
			ll.Warn("S3 did not delete object",
				slog.String("bucket", bucket),
				slog.String("key", key),
				slog.String("code", aws.ToString(failed.Code)),
				slog.String("message", aws.ToString(failed.Message)))
			result.Failed = append(result.Failed, key)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return result, err
	}
	return result, nil
}

// ReadObject downloads a small object fully into memory.
func ReadObject(ctx context.Context, tracer trace.Tracer, client manager.DownloadAPIClient, bucket, key string) ([]byte, error) {
	ctx, span := startSpan(ctx, tracer, "s3helper.ReadObject",
		attribute.String("bucketID", bucket),
		attribute.String("objectID", key),
	)
	defer span.End()

	buf := manager.NewWriteAtBuffer(nil)
	downloader := manager.NewDownloader(client)
	if _, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download failed")
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return buf.Bytes(), nil
}
