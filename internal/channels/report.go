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

package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/medialive"
	mltypes "github.com/aws/aws-sdk-go-v2/service/medialive/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/apiresponse"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

const ReportSubject = "MediaLive Running Channels Summary and Cost Warning"

const costWarning = "\nWARNING: Running MediaLive channels incur AWS charges. " +
	"Over a long period of time, these charges can add up significantly. " +
	"Please review your channel usage regularly to optimize costs."

// PublishAPI is the subset of the SNS client used to send the report.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// RunningChannel identifies a channel included in the report.
type RunningChannel struct {
	ID   string
	Name string
}

var ErrNoTopic = errors.New("no report topic ARN configured")

// RunningReport notifies a topic about tagged MediaLive channels that are
// still running.
type RunningReport struct {
	channels medialive.ListChannelsAPIClient
	topic    PublishAPI
	cfg      config.ChannelsConfig
}

func NewRunningReport(channels medialive.ListChannelsAPIClient, topic PublishAPI, cfg config.ChannelsConfig) *RunningReport {
	return &RunningReport{channels: channels, topic: topic, cfg: cfg}
}

// Handle is the scheduled-event entry point.
func (r *RunningReport) Handle(ctx context.Context, _ events.CloudWatchEvent) (events.APIGatewayProxyResponse, error) {
	ctx, ll := logctx.WithInvocation(ctx, "channel-report")

	running, err := r.Send(ctx)
	if err != nil {
		ll.Error("Running channel report failed", slog.Any("error", err))
		return apiresponse.Text(http.StatusInternalServerError, fmt.Sprintf("Error in Lambda function: %v", err)), nil
	}
	if len(running) == 0 {
		return apiresponse.Text(http.StatusOK, fmt.Sprintf("No running channels found with %s tag.", r.cfg.ReportTag)), nil
	}
	return apiresponse.Text(http.StatusOK, "Successfully sent running channels summary with cost warning."), nil
}

// Send publishes the report when any tagged channel is running and returns
// the channels it reported.
func (r *RunningReport) Send(ctx context.Context) ([]RunningChannel, error) {
	ll := logctx.FromContext(ctx)

	running, err := r.Running(ctx)
	if err != nil {
		return nil, err
	}
	ll.Info("Found running channels", slog.Int("count", len(running)), slog.String("tag", r.cfg.ReportTag))
	if len(running) == 0 {
		return nil, nil
	}

	if r.cfg.ReportTopicARN == "" {
		return running, ErrNoTopic
	}
	out, err := r.topic.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(r.cfg.ReportTopicARN),
		Subject:  aws.String(ReportSubject),
		Message:  aws.String(ReportMessage(running)),
	})
	if err != nil {
		return running, fmt.Errorf("publishing report: %w", err)
	}
	reportCounter.Add(ctx, 1)
	ll.Info("Running channel report sent", slog.String("messageID", aws.ToString(out.MessageId)))
	return running, nil
}

// Running lists RUNNING channels that carry the report tag.
func (r *RunningReport) Running(ctx context.Context) ([]RunningChannel, error) {
	var running []RunningChannel
	paginator := medialive.NewListChannelsPaginator(r.channels, &medialive.ListChannelsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing channels: %w", err)
		}
		for _, ch := range page.Channels {
			if ch.State != mltypes.ChannelStateRunning {
				continue
			}
			if !hasTag(ch, r.cfg.ReportTag) {
				continue
			}
			running = append(running, RunningChannel{
				ID:   aws.ToString(ch.Id),
				Name: aws.ToString(ch.Name),
			})
		}
	}
	return running, nil
}

func hasTag(ch mltypes.ChannelSummary, tag string) bool {
	if tag == "" {
		return true
	}
	_, ok := ch.Tags[tag]
	return ok
}

// ReportMessage formats the notification body.
func ReportMessage(running []RunningChannel) string {
	var sb strings.Builder
	sb.WriteString("Summary of running MediaLive channels:\n\n")
	for _, ch := range running {
		fmt.Fprintf(&sb, "Channel ID: %s\n", ch.ID)
		fmt.Fprintf(&sb, "Name: %s\n\n", ch.Name)
	}
	sb.WriteString(costWarning)
	return sb.String()
}
