// Package mainconfig loads the AWS SDK configuration shared by the api and
// lambda binaries.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/solhealth/match-booking/internal/config"
)

// LoadAWSConfig resolves region, credentials and an optional endpoint
// override (LocalStack) for the S3 presigner and the SES alert sender.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	if cfg == nil {
		return aws.Config{}, fmt.Errorf("mainconfig: config required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if provider, ok := staticCredentials(cfg); ok {
		opts = append(opts, config.WithCredentialsProvider(provider))
	}
	if endpoint := strings.TrimRight(strings.TrimSpace(cfg.AWSEndpointOverride), "/"); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}
	return awsCfg, nil
}

// staticCredentials only applies when both halves of the key pair are set;
// otherwise the default chain (env, shared profile, task role) wins.
func staticCredentials(cfg *appconfig.Config) (aws.CredentialsProvider, bool) {
	id := strings.TrimSpace(cfg.AWSAccessKeyID)
	secret := strings.TrimSpace(cfg.AWSSecretAccessKey)
	if id == "" || secret == "" {
		return nil, false
	}
	return credentials.NewStaticCredentialsProvider(id, secret, ""), true
}
