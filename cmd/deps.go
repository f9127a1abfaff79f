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

package cmd

import (
	"context"
	"fmt"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/awsclient"
	"github.com/cardinalhq/mediarunner/internal/channels"
	"github.com/cardinalhq/mediarunner/internal/endpoints"
	"github.com/cardinalhq/mediarunner/internal/harvest"
	"github.com/cardinalhq/mediarunner/internal/thumbnails"
)

// deps holds what every handler constructor draws from: the loaded
// configuration and the AWS client manager.
type deps struct {
	cfg *config.Config
	aws *awsclient.Manager
}

func loadDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	mgr, err := awsclient.NewManagerFromConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS client manager: %w", err)
	}
	return &deps{cfg: cfg, aws: mgr}, nil
}

func (d *deps) submitter(ctx context.Context) (*harvest.Submitter, error) {
	client, err := d.aws.GetMediaPackage(ctx)
	if err != nil {
		return nil, err
	}
	return harvest.NewSubmitter(client, d.cfg.Harvest), nil
}

func (d *deps) completer(ctx context.Context) (*harvest.Completer, error) {
	client, err := d.aws.GetMediaPackageVOD(ctx)
	if err != nil {
		return nil, err
	}
	return harvest.NewCompleter(client, d.cfg.Harvest.PackagingGroup), nil
}

func (d *deps) redriver(ctx context.Context, queueURL string) (*harvest.Redriver, error) {
	completer, err := d.completer(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := d.aws.GetSQS(ctx)
	if err != nil {
		return nil, err
	}
	return harvest.NewRedriver(queue.Client, queue.Tracer, queueURL, completer), nil
}

func (d *deps) pruner(ctx context.Context) (*thumbnails.Pruner, error) {
	s3client, err := d.aws.GetS3(ctx)
	if err != nil {
		return nil, err
	}
	return thumbnails.NewPruner(s3client.Client, s3client.Tracer, d.cfg.Thumbnails), nil
}

func (d *deps) viewer(ctx context.Context) (*thumbnails.Viewer, error) {
	live, err := d.aws.GetMediaLive(ctx)
	if err != nil {
		return nil, err
	}
	s3client, err := d.aws.GetS3(ctx)
	if err != nil {
		return nil, err
	}
	return thumbnails.NewViewer(live, s3client.Client, s3client.Tracer, d.cfg.Thumbnails), nil
}

func (d *deps) starter(ctx context.Context) (*channels.Starter, error) {
	live, err := d.aws.GetMediaLive(ctx)
	if err != nil {
		return nil, err
	}
	return channels.NewStarter(live, d.cfg.Channels.StartDelay), nil
}

func (d *deps) report(ctx context.Context) (*channels.RunningReport, error) {
	live, err := d.aws.GetMediaLive(ctx)
	if err != nil {
		return nil, err
	}
	topic, err := d.aws.GetSNS(ctx)
	if err != nil {
		return nil, err
	}
	return channels.NewRunningReport(live, topic, d.cfg.Channels), nil
}

func (d *deps) publisher(ctx context.Context) (*endpoints.Publisher, error) {
	origins, err := d.aws.GetMediaPackage(ctx)
	if err != nil {
		return nil, err
	}
	v2, err := d.aws.GetMediaPackageV2(ctx)
	if err != nil {
		return nil, err
	}
	params, err := d.aws.GetSSM(ctx)
	if err != nil {
		return nil, err
	}
	return endpoints.NewPublisher(origins, v2, params), nil
}
