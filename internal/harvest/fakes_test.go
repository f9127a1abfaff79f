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
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediapackage"
	mptypes "github.com/aws/aws-sdk-go-v2/service/mediapackage/types"
	"github.com/aws/aws-sdk-go-v2/service/mediapackagevod"
	vodtypes "github.com/aws/aws-sdk-go-v2/service/mediapackagevod/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeHarvestJobs struct {
	calls  []*mediapackage.CreateHarvestJobInput
	status mptypes.Status
	err    error
}

func (f *fakeHarvestJobs) CreateHarvestJob(_ context.Context, in *mediapackage.CreateHarvestJobInput, _ ...func(*mediapackage.Options)) (*mediapackage.CreateHarvestJobOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &mediapackage.CreateHarvestJobOutput{
		Id:     in.Id,
		Status: f.status,
	}, nil
}

type fakeAssets struct {
	calls     []*mediapackagevod.CreateAssetInput
	endpoints []string
	err       error
	// failFirst makes only the first N calls fail with err.
	failFirst int
}

func (f *fakeAssets) CreateAsset(_ context.Context, in *mediapackagevod.CreateAssetInput, _ ...func(*mediapackagevod.Options)) (*mediapackagevod.CreateAssetOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil && (f.failFirst == 0 || len(f.calls) <= f.failFirst) {
		return nil, f.err
	}
	out := &mediapackagevod.CreateAssetOutput{Id: in.Id}
	for _, u := range f.endpoints {
		out.EgressEndpoints = append(out.EgressEndpoints, vodtypes.EgressEndpoint{Url: aws.String(u)})
	}
	return out, nil
}

type fakeQueue struct {
	pending  []sqstypes.Message
	deleted  []string
	receives int
	recvErr  error
	delErr   error
}

func (f *fakeQueue) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receives++
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	n := min(int(in.MaxNumberOfMessages), len(f.pending))
	out := &sqs.ReceiveMessageOutput{Messages: f.pending[:n]}
	f.pending = f.pending[n:]
	return out, nil
}

func (f *fakeQueue) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.delErr != nil {
		return nil, f.delErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func completionDetail(id string, status Status) json.RawMessage {
	b, err := json.Marshal(CompletionDetail{HarvestJob: &JobDetail{
		ID:     id,
		Status: status,
		S3Destination: Destination{
			BucketName:  "vod-bucket",
			ManifestKey: ManifestKey(id),
			RoleARN:     "arn:aws:iam::123456789012:role/harvest",
		},
	}})
	if err != nil {
		panic(err)
	}
	return b
}

func completionEvent(id string, status Status) events.CloudWatchEvent {
	return events.CloudWatchEvent{
		ID:         "evt-" + id,
		Source:     "aws.mediapackage",
		DetailType: "MediaPackage HarvestJob Notification",
		Detail:     completionDetail(id, status),
	}
}

func queueMessage(i int, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(fmt.Sprintf("msg-%d", i)),
		ReceiptHandle: aws.String(fmt.Sprintf("rh-%d", i)),
		Body:          aws.String(body),
	}
}

func eventBody(id string, status Status) string {
	b, err := json.Marshal(completionEvent(id, status))
	if err != nil {
		panic(err)
	}
	return string(b)
}
