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

package endpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediapackage"
	"github.com/aws/aws-sdk-go-v2/service/mediapackagev2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// OriginEndpointAPI is the subset of the MediaPackage client used to look
// up playback URLs.
type OriginEndpointAPI interface {
	DescribeOriginEndpoint(ctx context.Context, params *mediapackage.DescribeOriginEndpointInput, optFns ...func(*mediapackage.Options)) (*mediapackage.DescribeOriginEndpointOutput, error)
}

// ChannelAPI is the subset of the MediaPackage v2 client used to look up
// ingest URLs.
type ChannelAPI interface {
	GetChannel(ctx context.Context, params *mediapackagev2.GetChannelInput, optFns ...func(*mediapackagev2.Options)) (*mediapackagev2.GetChannelOutput, error)
}

// ParameterAPI is the subset of the SSM client used to store URLs.
type ParameterAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// OriginRequest asks for the CMAF HLS playback URL of a MediaPackage origin
// endpoint to be stored under SSMName.
type OriginRequest struct {
	EndpointID string `json:"mediaPackageEndpointId"`
	SSMName    string `json:"ssmName"`
}

// IngestRequest asks for every ingest URL of a MediaPackage v2 channel to be
// stored under names derived from SSMNamePrefix.
type IngestRequest struct {
	ChannelGroupName string `json:"mediaPackageChannelGroupName"`
	ChannelName      string `json:"mediaPackageChannelName"`
	SSMNamePrefix    string `json:"ssmNamePrefix"`
}

// Parameter is a stored name/value pair.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var (
	ErrMissingField = errors.New("missing required field")
	ErrNoManifest   = errors.New("origin endpoint has no CMAF HLS manifest")
)

// Publisher copies MediaPackage endpoint URLs into SSM parameters so other
// stacks can resolve them by name.
type Publisher struct {
	origins  OriginEndpointAPI
	channels ChannelAPI
	params   ParameterAPI
}

// NewPublisher creates a Publisher. origins or channels may be nil when the
// corresponding operation is not used.
func NewPublisher(origins OriginEndpointAPI, channels ChannelAPI, params ParameterAPI) *Publisher {
	return &Publisher{origins: origins, channels: channels, params: params}
}

// IngestParameterName is the parameter name used for one ingest endpoint.
func IngestParameterName(prefix, endpointID string) string {
	return fmt.Sprintf("%s-IngestEndpoint%s", prefix, endpointID)
}

// PublishOrigin stores the first CMAF HLS manifest URL of the endpoint and
// returns it.
func (p *Publisher) PublishOrigin(ctx context.Context, req OriginRequest) (string, error) {
	ctx, ll := logctx.WithInvocation(ctx, "endpoint-publish")
	if req.EndpointID == "" || req.SSMName == "" {
		return "", fmt.Errorf("%w: mediaPackageEndpointId and ssmName are required", ErrMissingField)
	}
	ll = ll.With(slog.String("endpointID", req.EndpointID))

	out, err := p.origins.DescribeOriginEndpoint(ctx, &mediapackage.DescribeOriginEndpointInput{
		Id: aws.String(req.EndpointID),
	})
	if err != nil {
		return "", fmt.Errorf("describing origin endpoint %s: %w", req.EndpointID, err)
	}
	if out.CmafPackage == nil || len(out.CmafPackage.HlsManifests) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoManifest, req.EndpointID)
	}
	url := aws.ToString(out.CmafPackage.HlsManifests[0].Url)
	if url == "" {
		return "", fmt.Errorf("%w: %s", ErrNoManifest, req.EndpointID)
	}

	if err := p.put(ctx, req.SSMName, url, "Cmaf output Url"); err != nil {
		return "", err
	}
	ll.Info("Published origin endpoint URL", slog.String("parameter", req.SSMName))
	return url, nil
}

// PublishIngest stores every ingest endpoint URL of the channel. All
// endpoints are attempted; failures are aggregated.
func (p *Publisher) PublishIngest(ctx context.Context, req IngestRequest) ([]Parameter, error) {
	ctx, ll := logctx.WithInvocation(ctx, "channel-ingest-publish")
	if req.ChannelGroupName == "" || req.ChannelName == "" || req.SSMNamePrefix == "" {
		return nil, fmt.Errorf("%w: mediaPackageChannelGroupName, mediaPackageChannelName and ssmNamePrefix are required", ErrMissingField)
	}
	ll = ll.With(
		slog.String("channelGroup", req.ChannelGroupName),
		slog.String("channel", req.ChannelName),
	)

	out, err := p.channels.GetChannel(ctx, &mediapackagev2.GetChannelInput{
		ChannelGroupName: aws.String(req.ChannelGroupName),
		ChannelName:      aws.String(req.ChannelName),
	})
	if err != nil {
		return nil, fmt.Errorf("getting channel %s/%s: %w", req.ChannelGroupName, req.ChannelName, err)
	}

	var published []Parameter
	var errs *multierror.Error
	for _, ep := range out.IngestEndpoints {
		id := aws.ToString(ep.Id)
		param := Parameter{
			Name:  IngestParameterName(req.SSMNamePrefix, id),
			Value: aws.ToString(ep.Url),
		}
		desc := fmt.Sprintf("MediaPackage Channel %s/%s ingest point %s parameter", req.ChannelName, req.ChannelGroupName, id)
		if err := p.put(ctx, param.Name, param.Value, desc); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		published = append(published, param)
	}

	ll.Info("Published ingest endpoint URLs", slog.Int("count", len(published)))
	return published, errs.ErrorOrNil()
}

func (p *Publisher) put(ctx context.Context, name, value, description string) error {
	_, err := p.params.PutParameter(ctx, &ssm.PutParameterInput{
		Name:        aws.String(name),
		Value:       aws.String(value),
		Description: aws.String(description),
		Type:        ssmtypes.ParameterTypeString,
		Overwrite:   aws.Bool(true),
	})
	if err != nil {
		publishCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return fmt.Errorf("putting parameter %s: %w", name, err)
	}
	publishCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "published")))
	return nil
}
