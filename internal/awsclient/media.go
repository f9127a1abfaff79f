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

	"github.com/aws/aws-sdk-go-v2/service/medialive"
	"github.com/aws/aws-sdk-go-v2/service/mediapackage"
	"github.com/aws/aws-sdk-go-v2/service/mediapackagev2"
	"github.com/aws/aws-sdk-go-v2/service/mediapackagevod"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// GetMediaPackage returns a MediaPackage (v1) client, used for harvest jobs
// and origin endpoint lookups.
func (m *Manager) GetMediaPackage(ctx context.Context, opts ...ClientOption) (*mediapackage.Client, error) {
	return mediapackage.NewFromConfig(m.configFor(m.resolve(opts))), nil
}

// GetMediaPackageVOD returns a MediaPackage VOD client, used to register
// harvested clips as assets.
func (m *Manager) GetMediaPackageVOD(ctx context.Context, opts ...ClientOption) (*mediapackagevod.Client, error) {
	return mediapackagevod.NewFromConfig(m.configFor(m.resolve(opts))), nil
}

// GetMediaPackageV2 returns a MediaPackage v2 client.
func (m *Manager) GetMediaPackageV2(ctx context.Context, opts ...ClientOption) (*mediapackagev2.Client, error) {
	return mediapackagev2.NewFromConfig(m.configFor(m.resolve(opts))), nil
}

func (m *Manager) GetMediaLive(ctx context.Context, opts ...ClientOption) (*medialive.Client, error) {
	return medialive.NewFromConfig(m.configFor(m.resolve(opts))), nil
}

func (m *Manager) GetSSM(ctx context.Context, opts ...ClientOption) (*ssm.Client, error) {
	return ssm.NewFromConfig(m.configFor(m.resolve(opts))), nil
}

func (m *Manager) GetSNS(ctx context.Context, opts ...ClientOption) (*sns.Client, error) {
	return sns.NewFromConfig(m.configFor(m.resolve(opts))), nil
}
