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
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/medialive"
	mltypes "github.com/aws/aws-sdk-go-v2/service/medialive/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	baseTime   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	testTracer = noop.NewTracerProvider().Tracer("thumbnails-test")
)

// fakeBucket is an in-memory bucket implementing the S3 calls used here.
type fakeBucket struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	pageSize  int
	deletes   [][]string
	deleteErr error
	listErr   error
	getErr    error
	// vanished keys are listed but gone by the time they are fetched.
	vanished map[string]bool
}

type fakeObject struct {
	body     []byte
	modified time.Time
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]fakeObject{}, pageSize: 1000}
}

func (f *fakeBucket) put(key string, body string, modified time.Time) {
	f.objects[key] = fakeObject{body: []byte(body), modified: modified}
}

func (f *fakeBucket) sortedKeys() []string {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	keys := f.sortedKeys()
	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+f.pageSize, len(keys))
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			LastModified: aws.Time(f.objects[k].modified),
		})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeBucket) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, o := range in.Delete.Objects {
		keys = append(keys, aws.ToString(o.Key))
	}
	f.deletes = append(f.deletes, keys)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	for _, k := range keys {
		delete(f.objects, k)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok || f.vanished[aws.ToString(in.Key)] {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.body)),
		ContentLength: aws.Int64(int64(len(obj.body))),
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (f *fakeBucket) deletedKeys() []string {
	var all []string
	for _, batch := range f.deletes {
		all = append(all, batch...)
	}
	return all
}

type fakeMediaLive struct {
	mu            sync.Mutex
	channel       *medialive.DescribeChannelOutput
	describeErr   error
	describeCalls int
	thumbnails    map[string]string
}

func (f *fakeMediaLive) DescribeChannel(_ context.Context, _ *medialive.DescribeChannelInput, _ ...func(*medialive.Options)) (*medialive.DescribeChannelOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeCalls++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return f.channel, nil
}

func (f *fakeMediaLive) DescribeThumbnails(_ context.Context, in *medialive.DescribeThumbnailsInput, _ ...func(*medialive.Options)) (*medialive.DescribeThumbnailsOutput, error) {
	body, ok := f.thumbnails[aws.ToString(in.PipelineId)]
	if !ok {
		return nil, errors.New("pipeline not found")
	}
	return &medialive.DescribeThumbnailsOutput{
		ThumbnailDetails: []mltypes.ThumbnailDetail{{
			PipelineId: in.PipelineId,
			Thumbnails: []mltypes.Thumbnail{{
				Body:      aws.String(body),
				TimeStamp: aws.Time(baseTime),
			}},
		}},
	}, nil
}

// runningChannel describes a channel with one operations frame-capture group
// writing to two destination URLs.
func runningChannel(state mltypes.ChannelState) *medialive.DescribeChannelOutput {
	return &medialive.DescribeChannelOutput{
		Id:    aws.String("1234567"),
		Name:  aws.String("live-event"),
		State: state,
		EncoderSettings: &mltypes.EncoderSettings{
			OutputGroups: []mltypes.OutputGroup{
				{
					Name: aws.String("hls"),
					OutputGroupSettings: &mltypes.OutputGroupSettings{
						HlsGroupSettings: &mltypes.HlsGroupSettings{
							Destination: &mltypes.OutputLocationRef{DestinationRefId: aws.String("hls-dest")},
						},
					},
				},
				{
					Name: aws.String("operations-frames"),
					OutputGroupSettings: &mltypes.OutputGroupSettings{
						FrameCaptureGroupSettings: &mltypes.FrameCaptureGroupSettings{
							Destination: &mltypes.OutputLocationRef{DestinationRefId: aws.String("frames")},
						},
					},
				},
			},
		},
		Destinations: []mltypes.OutputDestination{
			{
				Id:       aws.String("hls-dest"),
				Settings: []mltypes.OutputDestinationSettings{{Url: aws.String("s3://vod/hls/main")}},
			},
			{
				Id: aws.String("frames"),
				Settings: []mltypes.OutputDestinationSettings{
					{Url: aws.String("s3://thumbs/live/chanA")},
					{Url: aws.String("s3://thumbs/live/chanB")},
				},
			},
		},
	}
}

func thumbKey(id string, i int) string {
	return fmt.Sprintf("%s_%05d.jpg", id, i)
}
