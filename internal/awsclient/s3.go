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

package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"
)

type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

func (m *Manager) GetS3(ctx context.Context, opts ...ClientOption) (*S3Client, error) {
	cc := m.resolve(opts)
	cfg := m.configFor(cc)

	var applyS3 []func(*s3.Options)
	// Custom endpoints (localstack, minio) generally lack virtual-host routing.
	if cc.PathStyle || m.endpoint != "" {
		applyS3 = append(applyS3, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, applyS3...)

	return &S3Client{Client: client, Tracer: m.tracer}, nil
}
