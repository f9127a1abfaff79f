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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 20, cfg.Thumbnails.Retain)
	require.Equal(t, 1000, cfg.Thumbnails.DeleteBatchSize)
	require.Equal(t, int32(1000), cfg.Thumbnails.ListPageSize)
	require.Equal(t, 30*time.Second, cfg.Thumbnails.ChannelCacheTTL)
	require.Equal(t, "LiveEventFrameworkVersion", cfg.Channels.ReportTag)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "mediarunner", cfg.AWS.SessionName)
}

func TestLoadLegacyEnvNames(t *testing.T) {
	t.Setenv("DESTINATION_BUCKET", "harvest-bucket")
	t.Setenv("HARVEST_ROLE_ARN", "arn:aws:iam::123456789012:role/harvest")
	t.Setenv("MP_VOD_PACKAGING_GROUP", "vod-group")
	t.Setenv("THUMBNAIL_BUCKET", "thumbs")
	t.Setenv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:123456789012:channels")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "harvest-bucket", cfg.Harvest.DestinationBucket)
	require.Equal(t, "arn:aws:iam::123456789012:role/harvest", cfg.Harvest.RoleARN)
	require.Equal(t, "vod-group", cfg.Harvest.PackagingGroup)
	require.Equal(t, "thumbs", cfg.Thumbnails.Bucket)
	require.Equal(t, "arn:aws:sns:us-east-1:123456789012:channels", cfg.Channels.ReportTopicARN)
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Setenv("THUMBNAIL_BUCKET", "legacy-thumbs")
	t.Setenv("MEDIARUNNER_THUMBNAILS_BUCKET", "new-thumbs")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "new-thumbs", cfg.Thumbnails.Bucket)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MEDIARUNNER_THUMBNAILS_RETAIN", "5")
	t.Setenv("MEDIARUNNER_THUMBNAILS_LIST_PAGE_SIZE", "250")
	t.Setenv("MEDIARUNNER_THUMBNAILS_CHANNEL_CACHE_TTL", "45s")
	t.Setenv("MEDIARUNNER_CHANNELS_START_DELAY", "50s")
	t.Setenv("MEDIARUNNER_HARVEST_DLQ_URL", "https://sqs.us-east-1.amazonaws.com/123456789012/harvest-dlq")
	t.Setenv("MEDIARUNNER_AWS_ENDPOINT", "http://localhost:4566")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 5, cfg.Thumbnails.Retain)
	require.Equal(t, int32(250), cfg.Thumbnails.ListPageSize)
	require.Equal(t, 45*time.Second, cfg.Thumbnails.ChannelCacheTTL)
	require.Equal(t, 50*time.Second, cfg.Channels.StartDelay)
	require.Equal(t, "https://sqs.us-east-1.amazonaws.com/123456789012/harvest-dlq", cfg.Harvest.DLQURL)
	require.Equal(t, "http://localhost:4566", cfg.AWS.Endpoint)
}
