package awsapi

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/credentials/endpointcreds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// CredentialsProviderType selects how the EC2 client obtains credentials.
type CredentialsProviderType string

// Supported credential strategies.
const (
	// CredentialsDefault uses the SDK's standard resolution chain.
	CredentialsDefault CredentialsProviderType = "default"
	// CredentialsEnvironment reads static keys from AWS_ACCESS_KEY_ID,
	// AWS_SECRET_ACCESS_KEY and optionally AWS_SESSION_TOKEN.
	CredentialsEnvironment CredentialsProviderType = "environment"
	// CredentialsProfile reads a named profile from the shared config files.
	CredentialsProfile CredentialsProviderType = "profile"
	// CredentialsInstance fetches role credentials from the EC2 instance
	// metadata service.
	CredentialsInstance CredentialsProviderType = "instance"
	// CredentialsContainer fetches credentials from the ECS task endpoint
	// named by AWS_CONTAINER_CREDENTIALS_FULL_URI or
	// AWS_CONTAINER_CREDENTIALS_RELATIVE_URI.
	CredentialsContainer CredentialsProviderType = "container"
)

// KnownCredentialsProvider reports whether t names a supported strategy. The
// empty string counts as default.
func KnownCredentialsProvider(t CredentialsProviderType) bool {
	switch t {
	case "", CredentialsDefault, CredentialsEnvironment, CredentialsProfile, CredentialsInstance, CredentialsContainer:
		return true
	}
	return false
}

// Environment variables consumed by the environment and container strategies.
const (
	envAccessKeyID       = "AWS_ACCESS_KEY_ID"
	envSecretAccessKey   = "AWS_SECRET_ACCESS_KEY"
	envSessionToken      = "AWS_SESSION_TOKEN"
	envContainerFull     = "AWS_CONTAINER_CREDENTIALS_FULL_URI"
	envContainerRelative = "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI"
)

// containerCredentialsHost is where relative container credential URIs
// resolve, the fixed ECS task metadata address.
const containerCredentialsHost = "http://169.254.170.2"

// regionPattern matches well-formed region names such as eu-west-1,
// us-gov-east-1 or cn-north-1.
var regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+$`)

// Settings carries everything needed to construct an authenticated EC2 client
// for one region.
type Settings struct {
	Region              string
	CredentialsProvider CredentialsProviderType
	Profile             string // profile strategy only; empty selects the default profile
}

// NewClient builds an EC2 client for s. The region is validated syntactically
// and one credential fetch is performed before returning, so a misconfigured
// client fails here rather than on its first poll.
func NewClient(ctx context.Context, s Settings) (*ec2.Client, error) {
	if !regionPattern.MatchString(s.Region) {
		return nil, &Error{Kind: KindBadRegion, Err: fmt.Errorf("malformed region %q", s.Region)}
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.Region)}
	credOpts, err := credentialOptions(s)
	if err != nil {
		return nil, err
	}
	opts = append(opts, credOpts...)

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &Error{Kind: KindInvalidCredentials, Op: opLoadConfig, Err: err}
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, &Error{Kind: KindInvalidCredentials, Op: opRetrieveCredentials, Err: err}
	}
	return ec2.NewFromConfig(cfg), nil
}

// credentialOptions translates the configured strategy into SDK load options.
// Strategies whose required inputs are missing fail here, before any network
// activity.
func credentialOptions(s Settings) ([]func(*config.LoadOptions) error, error) {
	switch s.CredentialsProvider {
	case "", CredentialsDefault:
		return nil, nil

	case CredentialsEnvironment:
		id := os.Getenv(envAccessKeyID)
		secret := os.Getenv(envSecretAccessKey)
		if id == "" || secret == "" {
			return nil, &Error{
				Kind: KindInvalidCredentials,
				Err:  fmt.Errorf("environment credentials require %s and %s", envAccessKeyID, envSecretAccessKey),
			}
		}
		provider := credentials.NewStaticCredentialsProvider(id, secret, os.Getenv(envSessionToken))
		return []func(*config.LoadOptions) error{config.WithCredentialsProvider(provider)}, nil

	case CredentialsProfile:
		profile := s.Profile
		if profile == "" {
			profile = "default"
		}
		return []func(*config.LoadOptions) error{config.WithSharedConfigProfile(profile)}, nil

	case CredentialsInstance:
		provider := aws.NewCredentialsCache(ec2rolecreds.New())
		return []func(*config.LoadOptions) error{config.WithCredentialsProvider(provider)}, nil

	case CredentialsContainer:
		endpoint := os.Getenv(envContainerFull)
		if endpoint == "" {
			if rel := os.Getenv(envContainerRelative); rel != "" {
				endpoint = containerCredentialsHost + rel
			}
		}
		if endpoint == "" {
			return nil, &Error{
				Kind: KindInvalidCredentials,
				Err:  fmt.Errorf("container credentials require %s or %s", envContainerFull, envContainerRelative),
			}
		}
		provider := aws.NewCredentialsCache(endpointcreds.New(endpoint))
		return []func(*config.LoadOptions) error{config.WithCredentialsProvider(provider)}, nil

	default:
		return nil, &Error{
			Kind: KindInvalidCredentials,
			Err:  fmt.Errorf("unknown credentials provider %q", s.CredentialsProvider),
		}
	}
}
