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
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/medialive"
	mltypes "github.com/aws/aws-sdk-go-v2/service/medialive/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/apiresponse"
	"github.com/cardinalhq/mediarunner/internal/awsclient/s3helper"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

const (
	MsgNoChannelID      = "No ChannelId"
	MsgNoChannel        = "No channel"
	MsgNotRunning       = "Channel not in Running State"
	MsgNoThumbnailIDs   = "Channel has no thumbnails ID's fetchable in MediaLive config"
	MsgChannelNotFound  = "Channel Not Found"
	MsgOutputsFailed    = "Unable to fetch output thumbnails"
	operationsGroupName = "operations"
	thumbnailType       = "CURRENT_ACTIVE"
)

// Pipelines whose input thumbnails are shown, in display order.
var pipelines = []string{"0", "1"}

// ChannelAPI is the subset of the MediaLive client the Viewer needs.
type ChannelAPI interface {
	DescribeChannel(ctx context.Context, params *medialive.DescribeChannelInput, optFns ...func(*medialive.Options)) (*medialive.DescribeChannelOutput, error)
	DescribeThumbnails(ctx context.Context, params *medialive.DescribeThumbnailsInput, optFns ...func(*medialive.Options)) (*medialive.DescribeThumbnailsOutput, error)
}

// StorageAPI is the subset of the S3 client the Viewer needs.
type StorageAPI interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// Frame is one rendered image.
type Frame struct {
	Label     string
	Timestamp time.Time
	// Data is the base64 encoded JPEG.
	Data string
}

// Page is everything shown for one channel.
type Page struct {
	ChannelID string
	Inputs    []Frame
	Outputs   []Frame
}

// Viewer renders a monitoring page with the live input thumbnails of a
// running MediaLive channel and its latest frame-capture outputs.
type Viewer struct {
	channels ChannelAPI
	storage  StorageAPI
	tracer   trace.Tracer
	cfg      config.ThumbnailsConfig
	// describe results are reused across the page's periodic refreshes.
	cache *ttlcache.Cache[string, *medialive.DescribeChannelOutput]
}

func NewViewer(channels ChannelAPI, storage StorageAPI, tracer trace.Tracer, cfg config.ThumbnailsConfig) *Viewer {
	v := &Viewer{
		channels: channels,
		storage:  storage,
		tracer:   tracer,
		cfg:      cfg,
	}
	if cfg.ChannelCacheTTL > 0 {
		v.cache = ttlcache.New(
			ttlcache.WithTTL[string, *medialive.DescribeChannelOutput](cfg.ChannelCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, *medialive.DescribeChannelOutput](),
			ttlcache.WithCapacity[string, *medialive.DescribeChannelOutput](1024),
		)
	}
	return v
}

// Handle is the API Gateway entry point for GET /thumbnails/{channelId}.
func (v *Viewer) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx, ll := logctx.WithInvocation(ctx, "thumbnails-view")

	channelID := req.PathParameters["channelId"]
	page, err := v.Collect(ctx, channelID)
	if err != nil {
		viewCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		ll.Warn("Unable to render thumbnails", slog.String("channelID", channelID), slog.Any("error", err))
		return apiresponse.FromError(err), nil
	}

	html, err := RenderPage(page)
	if err != nil {
		viewCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		ll.Error("Rendering thumbnail page failed", slog.Any("error", err))
		return apiresponse.FromError(err), nil
	}

	viewCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "rendered")))
	return apiresponse.HTML(http.StatusOK, html), nil
}

// Collect gathers the input and output thumbnails for channelID.
func (v *Viewer) Collect(ctx context.Context, channelID string) (*Page, error) {
	if v.cfg.Bucket == "" {
		return nil, apiresponse.NewConfiguration(http.StatusInternalServerError, MsgNoBucket)
	}
	if channelID == "" {
		return nil, apiresponse.NewConfiguration(http.StatusInternalServerError, MsgNoChannelID)
	}

	ch, err := v.describeChannel(ctx, channelID)
	if err != nil {
		return nil, apiresponse.UpstreamError{Message: MsgNoChannel, Status: http.StatusInternalServerError, Err: err}
	}
	if ch.State != mltypes.ChannelStateRunning {
		return nil, apiresponse.NewUpstreamShape(http.StatusInternalServerError, MsgNotRunning)
	}

	ids := ThumbnailIDs(ch)
	if len(ids) == 0 {
		return nil, apiresponse.NewUpstreamShape(http.StatusInternalServerError, MsgNoThumbnailIDs)
	}

	page := &Page{ChannelID: channelID}
	var outputs []Frame

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page.Inputs = v.inputFrames(gctx, channelID)
		return nil
	})
	g.Go(func() error {
		var err error
		outputs, err = v.outputFrames(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apiresponse.UpstreamError{Message: MsgOutputsFailed, Status: http.StatusInternalServerError, Err: err}
	}
	if len(page.Inputs) == 0 {
		return nil, apiresponse.NewUpstreamShape(http.StatusInternalServerError, MsgChannelNotFound)
	}
	page.Outputs = outputs
	return page, nil
}

func (v *Viewer) describeChannel(ctx context.Context, channelID string) (*medialive.DescribeChannelOutput, error) {
	if v.cache != nil {
		if item := v.cache.Get(channelID); item != nil {
			channelCacheLookup.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
			return item.Value(), nil
		}
		channelCacheLookup.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))
	}

	out, err := v.channels.DescribeChannel(ctx, &medialive.DescribeChannelInput{
		ChannelId: aws.String(channelID),
	})
	if err != nil {
		return nil, err
	}
	// Only running channels are cached so a channel that was just started
	// is picked up on the next refresh.
	if v.cache != nil && out.State == mltypes.ChannelStateRunning {
		v.cache.Set(channelID, out, ttlcache.DefaultTTL)
	}
	return out, nil
}

// inputFrames fetches the current input thumbnail of each pipeline.
// Pipelines without a thumbnail, including the missing pipeline of a
// single-pipeline channel, are skipped.
func (v *Viewer) inputFrames(ctx context.Context, channelID string) []Frame {
	frames := make([]*Frame, len(pipelines))

	g, gctx := errgroup.WithContext(ctx)
	for i, pipeline := range pipelines {
		g.Go(func() error {
			out, err := v.channels.DescribeThumbnails(gctx, &medialive.DescribeThumbnailsInput{
				ChannelId:     aws.String(channelID),
				PipelineId:    aws.String(pipeline),
				ThumbnailType: aws.String(thumbnailType),
			})
			if err != nil {
				logctx.FromContext(ctx).Debug("No thumbnail for pipeline",
					slog.String("pipeline", pipeline), slog.Any("error", err))
				return nil
			}
			for _, detail := range out.ThumbnailDetails {
				for _, thumb := range detail.Thumbnails {
					if aws.ToString(thumb.Body) == "" {
						continue
					}
					frames[i] = &Frame{
						Label:     "Pipeline " + pipeline,
						Timestamp: aws.ToTime(thumb.TimeStamp),
						Data:      aws.ToString(thumb.Body),
					}
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var result []Frame
	for _, f := range frames {
		if f != nil {
			result = append(result, *f)
		}
	}
	return result
}

// outputFrames fetches the newest frame capture for each thumbnail id.
// A frame deleted between listing and download, usually by the pruner, is
// left out of the page.
func (v *Viewer) outputFrames(ctx context.Context, ids []string) ([]Frame, error) {
	objs, err := s3helper.ListObjects(ctx, v.tracer, v.storage, v.cfg.Bucket, "", v.cfg.ListPageSize)
	if err != nil {
		return nil, err
	}
	latest := LatestPerID(objs, ids)

	frames := make([]*Frame, len(latest))
	g, gctx := errgroup.WithContext(ctx)
	for i, obj := range latest {
		g.Go(func() error {
			data, err := s3helper.ReadObject(gctx, v.tracer, v.storage, v.cfg.Bucket, obj.Key)
			if s3helper.S3ErrorIs404(err) {
				logctx.FromContext(ctx).Debug("Frame capture vanished before download", slog.String("key", obj.Key))
				return nil
			}
			if err != nil {
				return err
			}
			frames[i] = &Frame{
				Label:     obj.Key,
				Timestamp: obj.LastModified,
				Data:      base64.StdEncoding.EncodeToString(data),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var result []Frame
	for _, f := range frames {
		if f != nil {
			result = append(result, *f)
		}
	}
	return result, nil
}

// ThumbnailIDs returns the frame-capture file name prefixes configured on a
// channel. Only frame-capture output groups whose name contains
// "operations" are considered; the id is the last path segment of each
// URL of the destination the group writes to.
func ThumbnailIDs(ch *medialive.DescribeChannelOutput) []string {
	if ch == nil || ch.EncoderSettings == nil {
		return nil
	}

	refs := mapset.NewThreadUnsafeSet[string]()
	for _, og := range ch.EncoderSettings.OutputGroups {
		if !strings.Contains(aws.ToString(og.Name), operationsGroupName) {
			continue
		}
		if og.OutputGroupSettings == nil || og.OutputGroupSettings.FrameCaptureGroupSettings == nil {
			continue
		}
		dest := og.OutputGroupSettings.FrameCaptureGroupSettings.Destination
		if dest == nil || aws.ToString(dest.DestinationRefId) == "" {
			continue
		}
		refs.Add(aws.ToString(dest.DestinationRefId))
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	var ids []string
	for _, d := range ch.Destinations {
		if !refs.Contains(aws.ToString(d.Id)) {
			continue
		}
		for _, s := range d.Settings {
			url := strings.TrimRight(aws.ToString(s.Url), "/")
			if url == "" {
				continue
			}
			id := url[strings.LastIndex(url, "/")+1:]
			if id != "" && seen.Add(id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// LatestPerID picks, for each id, the most recently modified object whose
// key starts with "{id}_". Ids without a matching object are skipped.
func LatestPerID(objs []s3helper.Object, ids []string) []s3helper.Object {
	var latest []s3helper.Object
	for _, id := range ids {
		prefix := id + "_"
		var best *s3helper.Object
		for i := range objs {
			if !strings.HasPrefix(objs[i].Key, prefix) {
				continue
			}
			if best == nil || objs[i].LastModified.After(best.LastModified) {
				best = &objs[i]
			}
		}
		if best != nil {
			latest = append(latest, *best)
		}
	}
	return latest
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"imgsrc": func(data string) template.URL {
		return template.URL("data:image/jpeg;base64," + data)
	},
	"iso": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339Nano)
	},
}).Parse(`<!DOCTYPE html>
<html>
  <head>
    <title>MediaLive Monitoring</title>
    <meta http-equiv="refresh" content="5">
  </head>
  <body>
    <div style="text-align: center;">
      <div style="display: inline-block">
        <h1>MediaLive Source</h1>
{{- range .Inputs}}
        <br>{{.Label}}</br>
        <br>{{iso .Timestamp}}</br>
        <img src="{{imgsrc .Data}}" alt="{{.Label}}" />
{{- end}}
      </div>
      <div style="display: inline-block">
        <h1>MediaLive Output</h1>
{{- range .Outputs}}
        <br>{{.Label}}</br>
        <br>{{iso .Timestamp}}</br>
        <img src="{{imgsrc .Data}}" alt="Output" style="width:480px;height:270px;"/>
{{- end}}
      </div>
    </div>
  </body>
</html>
`))

// RenderPage renders page as the self-refreshing monitoring HTML document.
func RenderPage(page *Page) (string, error) {
	if page == nil {
		return "", errors.New("nil page")
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return "", err
	}
	return buf.String(), nil
}
