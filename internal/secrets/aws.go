package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

type secretGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore implements domain.SecretStore on AWS Secrets Manager. The secret
// string is a JSON document with username, password, host and port.
type AWSStore struct {
	client secretGetter
}

// NewAWSStore loads the default AWS credential chain for region. A non-empty
// endpoint overrides the service URL (LocalStack and similar).
func NewAWSStore(ctx context.Context, region, endpoint string) (*AWSStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("secrets: load aws config: %w", err)
	}
	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &AWSStore{client: client}, nil
}

// ProxyCredentials fetches and decodes the named secret.
func (s *AWSStore) ProxyCredentials(ctx context.Context, name string) (domain.ProxyCredentials, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return domain.ProxyCredentials{}, fmt.Errorf("secrets: get %s: %w", name, domain.ErrNotFound)
		}
		return domain.ProxyCredentials{}, fmt.Errorf("secrets: get %s: %w", name, err)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case len(out.SecretBinary) > 0:
		raw = out.SecretBinary
	default:
		return domain.ProxyCredentials{}, fmt.Errorf("secrets: get %s: %w", name, domain.ErrNotFound)
	}

	creds, err := DecodeProxyCredentials(raw)
	if err != nil {
		return domain.ProxyCredentials{}, fmt.Errorf("secrets: %s: %w", name, err)
	}
	return creds, nil
}

var _ domain.SecretStore = (*AWSStore)(nil)
