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
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mrconfig "github.com/cardinalhq/mediarunner/config"
)

func isolatedAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config")
	credFile := filepath.Join(dir, "credentials")
	require.NoError(t, os.WriteFile(cfgFile, nil, 0o600))
	require.NoError(t, os.WriteFile(credFile, nil, 0o600))

	t.Setenv("AWS_CONFIG_FILE", cfgFile)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", credFile)
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

func TestProvidersCachedPerRegionAndRole(t *testing.T) {
	isolatedAWSEnv(t)

	mgr, err := NewManager(context.Background())
	require.NoError(t, err)

	base := mgr.configFor(mgr.resolve(nil))
	again := mgr.configFor(mgr.resolve(nil))
	assert.Equal(t, base.Credentials, again.Credentials)
	assert.Len(t, mgr.providers, 1)

	roleA := mgr.configFor(mgr.resolve([]ClientOption{WithRole("arn:aws:iam::123456789012:role/a")}))
	roleA2 := mgr.configFor(mgr.resolve([]ClientOption{WithRole("arn:aws:iam::123456789012:role/a")}))
	assert.Same(t, roleA.Credentials, roleA2.Credentials)
	assert.NotEqual(t, base.Credentials, roleA.Credentials)

	west := mgr.configFor(mgr.resolve([]ClientOption{
		WithRole("arn:aws:iam::123456789012:role/a"),
		WithRegion("us-west-2"),
	}))
	assert.Equal(t, "us-west-2", west.Region)
	assert.Len(t, mgr.providers, 3)
}

func TestManagerFromConfig(t *testing.T) {
	isolatedAWSEnv(t)

	mgr, err := NewManagerFromConfig(context.Background(), mrconfig.AWSConfig{
		Region:      "eu-west-1",
		RoleARN:     "arn:aws:iam::123456789012:role/media",
		Endpoint:    "http://localhost:4566",
		SessionName: "mediarunner-test",
	})
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", mgr.Region())
	assert.Equal(t, "mediarunner-test", mgr.sessionName)

	cc := mgr.resolve(nil)
	assert.Equal(t, "arn:aws:iam::123456789012:role/media", cc.RoleARN)

	cfg := mgr.configFor(cc)
	assert.Equal(t, "http://localhost:4566", aws.ToString(cfg.BaseEndpoint))
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestSTSClientUsesConfiguredRegion(t *testing.T) {
	isolatedAWSEnv(t)
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")

	mgr, err := NewManager(context.Background(),
		WithDefaultRegion("us-west-2"),
		WithDefaultRole("arn:aws:iam::123456789012:role/media"),
		WithBaseEndpoint("http://localhost:4566"),
	)
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", mgr.Region())
	assert.Equal(t, "us-west-2", mgr.stsClient.Options().Region)
	assert.Equal(t, "http://localhost:4566", aws.ToString(mgr.stsClient.Options().BaseEndpoint))
}

func TestGetS3UsesPathStyleForCustomEndpoint(t *testing.T) {
	isolatedAWSEnv(t)

	mgr, err := NewManager(context.Background(), WithBaseEndpoint("http://localhost:4566"))
	require.NoError(t, err)

	client, err := mgr.GetS3(context.Background())
	require.NoError(t, err)
	assert.True(t, client.Client.Options().UsePathStyle)
	assert.NotNil(t, client.Tracer)

	plain, err := NewManager(context.Background())
	require.NoError(t, err)
	pc, err := plain.GetS3(context.Background())
	require.NoError(t, err)
	assert.False(t, pc.Client.Options().UsePathStyle)

	forced, err := plain.GetS3(context.Background(), WithPathStyle())
	require.NoError(t, err)
	assert.True(t, forced.Client.Options().UsePathStyle)
}
