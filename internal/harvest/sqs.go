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
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// HandleSQS drives the Completer from an SQS event source, such as a queue
// that EventBridge targets instead of invoking the function directly.
// Messages whose registration call failed are reported as batch item
// failures so only they are redelivered.
func (c *Completer) HandleSQS(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	ctx, ll := logctx.WithInvocation(ctx, "harvest-complete-sqs")

	var resp events.SQSEventResponse
	for _, msg := range ev.Records {
		mll := ll.With(slog.String("messageID", msg.MessageId))

		var cwe events.CloudWatchEvent
		if err := json.Unmarshal([]byte(msg.Body), &cwe); err != nil {
			// Redelivery cannot fix a body that does not decode.
			mll.Error("Dropping undecodable completion message", slog.Any("error", err))
			continue
		}

		asset, err := c.Complete(logctx.WithLogger(ctx, mll), cwe.Detail)
		switch {
		case err == nil:
			mll.Info("Registered harvested asset", slog.String("assetID", asset.ID))
		case Retryable(err):
			mll.Error("Asset registration failed", slog.Any("error", err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: msg.MessageId,
			})
		default:
			mll.Warn("Harvest completion not registered", slog.Any("error", err))
		}
	}
	return resp, nil
}
