// Copyright 2026 AdPilot
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package bedrock runs the Anthropic gateway over AWS Bedrock. The SDK
// handles request signing and endpoint routing; everything else is shared
// with the direct API client.
package bedrock

import (
	"context"
	"fmt"
	"os"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/jackhunterking/AdPilot-sub003/pkg/llm"
	"github.com/jackhunterking/AdPilot-sub003/pkg/llm/anthropic"
)

const (
	DefaultModelID = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultRegion  = "us-west-2"
)

// Config configures the Bedrock-backed gateway.
type Config struct {
	// ModelID is the Bedrock model identifier. Falls back to
	// AWS_BEDROCK_MODEL_ID, then DefaultModelID.
	ModelID string

	// Region is the AWS region. Falls back to AWS_DEFAULT_REGION, then
	// DefaultRegion.
	Region string

	// Static credentials. When empty, Profile or the default AWS
	// credentials chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Profile is a named AWS shared config profile.
	Profile string

	MaxTokens   int64
	Temperature float64

	// RateLimiter optionally bounds the request rate.
	RateLimiter *llm.RateLimiter
}

// New creates a Bedrock gateway client.
func New(ctx context.Context, cfg Config) (*anthropic.Client, error) {
	if cfg.ModelID == "" {
		cfg.ModelID = os.Getenv("AWS_BEDROCK_MODEL_ID")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sdk.NewClient(bedrock.WithConfig(awsCfg))
	return anthropic.NewFromSDK(client, "bedrock", anthropic.Config{
		Model:       cfg.ModelID,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		RateLimiter: cfg.RateLimiter,
	}), nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	}
	if cfg.Profile != "" {
		return awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithSharedConfigProfile(cfg.Profile),
		)
	}
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
}
