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
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	mrconfig "github.com/cardinalhq/mediarunner/config"
)

// Manager hands out AWS service clients that share one base configuration.
// Credential providers are cached per region and role so that assumed-role
// sessions are reused across clients and invocations.
type Manager struct {
	baseCfg     aws.Config
	stsClient   *sts.Client
	sessionName string
	defaultRole string
	endpoint    string

	sync.RWMutex
	providers map[roleKey]aws.CredentialsProvider
	tracer    trace.Tracer
}

type ManagerOption func(*Manager)

func WithAssumeRoleSessionName(name string) ManagerOption {
	return func(mgr *Manager) {
		if name != "" {
			mgr.sessionName = name
		}
	}
}

// WithDefaultRole makes every client assume roleARN unless a client option
// overrides it.
func WithDefaultRole(roleARN string) ManagerOption {
	return func(mgr *Manager) {
		mgr.defaultRole = roleARN
	}
}

// WithBaseEndpoint points every client at a single endpoint, e.g. localstack.
func WithBaseEndpoint(url string) ManagerOption {
	return func(mgr *Manager) {
		mgr.endpoint = url
	}
}

// WithDefaultRegion overrides the region resolved from the environment.
func WithDefaultRegion(region string) ManagerOption {
	return func(mgr *Manager) {
		if region != "" {
			mgr.baseCfg.Region = region
		}
	}
}

func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)

	tracer := otel.Tracer("github.com/cardinalhq/mediarunner/internal/awsclient")
	mgr := &Manager{
		baseCfg:     cfg,
		sessionName: "mediarunner",
		providers:   make(map[roleKey]aws.CredentialsProvider),
		tracer:      tracer,
	}
	for _, opt := range opts {
		opt(mgr)
	}
	stsCfg := mgr.baseCfg.Copy()
	if mgr.endpoint != "" {
		stsCfg.BaseEndpoint = aws.String(mgr.endpoint)
	}
	mgr.stsClient = sts.NewFromConfig(stsCfg)

	return mgr, nil
}

// NewManagerFromConfig builds a Manager from the aws section of the
// application configuration.
func NewManagerFromConfig(ctx context.Context, c mrconfig.AWSConfig) (*Manager, error) {
	return NewManager(ctx,
		WithDefaultRegion(c.Region),
		WithDefaultRole(c.RoleARN),
		WithBaseEndpoint(c.Endpoint),
		WithAssumeRoleSessionName(c.SessionName),
	)
}

// Region returns the region clients are created in when not overridden.
func (m *Manager) Region() string {
	return m.baseCfg.Region
}

type roleKey struct {
	Region  string
	RoleARN string
}

type clientConfig struct {
	RoleARN   string
	Region    string
	PathStyle bool
}

// ClientOption adjusts how a single client is built.
type ClientOption func(*clientConfig)

func WithRole(roleARN string) ClientOption {
	return func(c *clientConfig) {
		c.RoleARN = roleARN
	}
}

func WithRegion(region string) ClientOption {
	return func(c *clientConfig) {
		c.Region = region
	}
}

// WithPathStyle forces path-style S3 addressing. Other clients ignore it.
func WithPathStyle() ClientOption {
	return func(c *clientConfig) {
		c.PathStyle = true
	}
}

func (m *Manager) resolve(opts []ClientOption) clientConfig {
	cc := clientConfig{
		Region:  m.baseCfg.Region,
		RoleARN: m.defaultRole,
	}
	for _, o := range opts {
		o(&cc)
	}
	return cc
}

// configFor returns a copy of the base config with the credentials, region
// and endpoint a client described by cc should use.
func (m *Manager) configFor(cc clientConfig) aws.Config {
	key := roleKey{Region: cc.Region, RoleARN: cc.RoleARN}
	m.RLock()
	provider, ok := m.providers[key]
	m.RUnlock()
	if !ok {
		m.Lock()
		if provider, ok = m.providers[key]; !ok {
			if cc.RoleARN == "" {
				provider = m.baseCfg.Credentials
			} else {
				p := stscreds.NewAssumeRoleProvider(m.stsClient, cc.RoleARN, func(o *stscreds.AssumeRoleOptions) {
					o.RoleSessionName = m.sessionName
				})
				provider = aws.NewCredentialsCache(p)
			}
			m.providers[key] = provider
		}
		m.Unlock()
	}

	cfg := m.baseCfg.Copy()
	cfg.Region = cc.Region
	cfg.Credentials = provider
	if m.endpoint != "" {
		cfg.BaseEndpoint = aws.String(m.endpoint)
	}
	return cfg
}
