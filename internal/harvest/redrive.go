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

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// QueueAPI is the subset of the SQS client used to drain a dead-letter queue.
type QueueAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

const (
	maxReceiveBatch          = 10
	redriveWaitSeconds       = 1
	redriveVisibilitySeconds = 60
)

// RedriveResult counts what happened to each received message.
type RedriveResult struct {
	Received   int
	Registered int
	// Dropped messages were terminal (failed job, bad status) and deleted.
	Dropped int
	// Retained messages were left on the queue for a later attempt.
	Retained int
}

// Redriver replays completion events that the event source gave up on.
type Redriver struct {
	queue     QueueAPI
	tracer    trace.Tracer
	queueURL  string
	completer *Completer
}

// NewRedriver builds a Redriver. tracer is normally the Tracer of the
// awsclient.SQSClient that queue came from; nil disables spans.
func NewRedriver(queue QueueAPI, tracer trace.Tracer, queueURL string, completer *Completer) *Redriver {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Redriver{queue: queue, tracer: tracer, queueURL: queueURL, completer: completer}
}

// Redrive processes at most limit messages. Messages are deleted once the
// Completer has either registered the asset or rejected the event as
// terminal; registration failures and undecodable bodies stay on the queue.
func (r *Redriver) Redrive(ctx context.Context, limit int) (result RedriveResult, err error) {
	if r.queueURL == "" {
		return result, errors.New("no dead-letter queue URL configured")
	}

	ctx, span := r.tracer.Start(ctx, "harvest.Redrive",
		trace.WithAttributes(attribute.String("queueURL", r.queueURL)))
	defer func() {
		span.SetAttributes(
			attribute.Int("received", result.Received),
			attribute.Int("retained", result.Retained))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "redrive failed")
		}
		span.End()
	}()

	ll := logctx.FromContext(ctx).With(slog.String("queueURL", r.queueURL))
	var errs *multierror.Error

	for result.Received < limit {
		out, err := r.queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(r.queueURL),
			MaxNumberOfMessages: int32(min(maxReceiveBatch, limit-result.Received)),
			WaitTimeSeconds:     redriveWaitSeconds,
			VisibilityTimeout:   redriveVisibilitySeconds,
		})
		if err != nil {
			return result, fmt.Errorf("receiving from %s: %w", r.queueURL, err)
		}
		if len(out.Messages) == 0 {
			break
		}

		for _, msg := range out.Messages {
			result.Received++
			outcome := r.replay(ctx, ll, msg)
			redriveCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

			switch outcome {
			case "registered":
				result.Registered++
			case "dropped":
				result.Dropped++
			default:
				result.Retained++
				continue
			}

			if _, err := r.queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(r.queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("deleting message %s: %w", aws.ToString(msg.MessageId), err))
			}
		}
	}

	ll.Info("Redrive finished",
		slog.Int("received", result.Received),
		slog.Int("registered", result.Registered),
		slog.Int("dropped", result.Dropped),
		slog.Int("retained", result.Retained))
	return result, errs.ErrorOrNil()
}

func (r *Redriver) replay(ctx context.Context, ll *slog.Logger, msg types.Message) string {
	mll := ll.With(slog.String("messageID", aws.ToString(msg.MessageId)))

	var cwe events.CloudWatchEvent
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &cwe); err != nil {
		mll.Error("Leaving undecodable message on queue", slog.Any("error", err))
		return "undecodable"
	}

	_, err := r.completer.Complete(logctx.WithLogger(ctx, mll), cwe.Detail)
	switch {
	case err == nil:
		return "registered"
	case Retryable(err):
		mll.Warn("Registration still failing", slog.Any("error", err))
		return "retained"
	default:
		mll.Info("Dropping terminal completion event", slog.Any("error", err))
		return "dropped"
	}
}
