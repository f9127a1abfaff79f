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
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates configuration for every handler. It is loaded once per
// process and handed to handler constructors; handlers never read the
// environment themselves.
type Config struct {
	AWS        AWSConfig        `mapstructure:"aws"`
	Harvest    HarvestConfig    `mapstructure:"harvest"`
	Thumbnails ThumbnailsConfig `mapstructure:"thumbnails"`
	Channels   ChannelsConfig   `mapstructure:"channels"`
	Server     ServerConfig     `mapstructure:"server"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
	// RoleARN, when set, is assumed for every client the manager creates.
	RoleARN string `mapstructure:"role_arn"`
	// Endpoint overrides the service endpoint, e.g. for localstack.
	Endpoint    string `mapstructure:"endpoint"`
	SessionName string `mapstructure:"session_name"`
}

type HarvestConfig struct {
	DestinationBucket string `mapstructure:"destination_bucket"`
	RoleARN           string `mapstructure:"role_arn"`
	PackagingGroup    string `mapstructure:"packaging_group"`
	DLQURL            string `mapstructure:"dlq_url"`
	RedriveMax        int    `mapstructure:"redrive_max"`
}

type ThumbnailsConfig struct {
	Bucket          string        `mapstructure:"bucket"`
	Retain          int           `mapstructure:"retain"`
	DeleteBatchSize int           `mapstructure:"delete_batch_size"`
	ListPageSize    int32         `mapstructure:"list_page_size"`
	ChannelCacheTTL time.Duration `mapstructure:"channel_cache_ttl"`
}

type ChannelsConfig struct {
	StartDelay     time.Duration `mapstructure:"start_delay"`
	ReportTopicARN string        `mapstructure:"report_topic_arn"`
	ReportTag      string        `mapstructure:"report_tag"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// PprofPort enables the pprof listener when positive.
	PprofPort int `mapstructure:"pprof_port"`
}

const envPrefix = "MEDIARUNNER"

// legacyEnv maps config keys to the environment variable names the media
// stacks already set on their functions. The prefixed name always wins.
var legacyEnv = map[string]string{
	"harvest.destination_bucket": "DESTINATION_BUCKET",
	"harvest.role_arn":           "HARVEST_ROLE_ARN",
	"harvest.packaging_group":    "MP_VOD_PACKAGING_GROUP",
	"thumbnails.bucket":          "THUMBNAIL_BUCKET",
	"channels.report_topic_arn":  "SNS_TOPIC_ARN",
	"aws.region":                 "AWS_REGION",
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		AWS: AWSConfig{
			SessionName: "mediarunner",
		},
		Harvest: HarvestConfig{
			RedriveMax: 100,
		},
		Thumbnails: ThumbnailsConfig{
			Retain:          20,
			DeleteBatchSize: 1000,
			ListPageSize:    1000,
			ChannelCacheTTL: 30 * time.Second,
		},
		Channels: ChannelsConfig{
			ReportTag: "LiveEventFrameworkVersion",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "MEDIARUNNER" and the dot character
// in keys is replaced by an underscore. For example, "harvest.role_arn"
// becomes "MEDIARUNNER_HARVEST_ROLE_ARN". Keys listed in legacyEnv also
// honor their unprefixed name.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		name := strings.Join(key, ".")
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
		if legacy, ok := legacyEnv[name]; ok {
			_ = v.BindEnv(name, prefixed, legacy)
			continue
		}
		_ = v.BindEnv(name, prefixed)
	}
}
