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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/medialive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// StartAPI is the subset of the MediaLive client used to start channels.
type StartAPI interface {
	StartChannel(ctx context.Context, params *medialive.StartChannelInput, optFns ...func(*medialive.Options)) (*medialive.StartChannelOutput, error)
}

// StartRequest accepts either a MediaLive "Channel State Change" event from
// EventBridge or a direct invocation naming the channel.
type StartRequest struct {
	Resources []string `json:"resources"`
	Detail    struct {
		State string `json:"state"`
	} `json:"detail"`
	MediaLiveChannelID string `json:"mediaLiveChannelId"`
}

// ChannelID returns the channel to act on. For state change events it is
// the last ":" separated segment of the first resource ARN.
func (r StartRequest) ChannelID() string {
	if r.MediaLiveChannelID != "" {
		return r.MediaLiveChannelID
	}
	if len(r.Resources) == 0 {
		return ""
	}
	arn := r.Resources[0]
	return arn[strings.LastIndex(arn, ":")+1:]
}

// shouldStart reports whether the request asks for a start: direct
// invocations always do, state changes only once the channel is created.
func (r StartRequest) shouldStart() bool {
	if r.MediaLiveChannelID != "" {
		return true
	}
	return strings.Contains(r.Detail.State, "CREATED")
}

// StartResult reports what the Starter did.
type StartResult struct {
	ChannelID string `json:"channelId"`
	State     string `json:"state,omitempty"`
	Started   bool   `json:"started"`
}

var ErrNoChannelID = errors.New("no MediaLive channel id in request")

// Starter starts MediaLive channels once they have been created.
type Starter struct {
	client StartAPI
	delay  time.Duration
}

func NewStarter(client StartAPI, delay time.Duration) *Starter {
	return &Starter{client: client, delay: delay}
}

// Handle is the Lambda entry point. The raw payload is decoded here so the
// same function can serve EventBridge rules and direct invocations.
func (s *Starter) Handle(ctx context.Context, payload json.RawMessage) (StartResult, error) {
	ctx, ll := logctx.WithInvocation(ctx, "channel-start")

	var req StartRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return StartResult{}, fmt.Errorf("decoding start request: %w", err)
	}

	res, err := s.Start(ctx, req)
	if err != nil {
		ll.Error("Channel start failed", slog.String("channelID", res.ChannelID), slog.Any("error", err))
		return res, err
	}
	return res, nil
}

// Start starts the channel named by req when req asks for it, after the
// configured delay.
func (s *Starter) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	res := StartResult{ChannelID: req.ChannelID(), State: req.Detail.State}
	if res.ChannelID == "" {
		startCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "invalid")))
		return res, ErrNoChannelID
	}

	ll := logctx.FromContext(ctx).With(slog.String("channelID", res.ChannelID))
	if !req.shouldStart() {
		ll.Debug("Ignoring channel state change", slog.String("state", req.Detail.State))
		startCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ignored")))
		return res, nil
	}

	if s.delay > 0 {
		ll.Info("Waiting before starting channel", slog.Duration("delay", s.delay))
		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return res, ctx.Err()
		case <-t.C:
		}
	}

	if _, err := s.client.StartChannel(ctx, &medialive.StartChannelInput{
		ChannelId: aws.String(res.ChannelID),
	}); err != nil {
		startCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return res, fmt.Errorf("starting channel %s: %w", res.ChannelID, err)
	}

	startCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "started")))
	ll.Info("Channel started")
	res.Started = true
	return res, nil
}
