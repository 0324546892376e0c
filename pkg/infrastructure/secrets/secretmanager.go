package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretsAdapter reads and versions secrets in Google Secret Manager.
type SecretsAdapter struct {
	Client *secretmanager.Client
}

func NewSecretsAdapter(ctx context.Context, opts ...option.ClientOption) (*SecretsAdapter, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretmanager client: %w", err)
	}
	return &SecretsAdapter{Client: client}, nil
}

func (a *SecretsAdapter) Close() error {
	return a.Client.Close()
}

// GetSecret returns the payload of the latest version of the secret.
func (a *SecretsAdapter) GetSecret(ctx context.Context, projectID, name string) (string, error) {
	resp, err := a.Client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: LatestVersion(projectID, name),
	})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	return string(resp.GetPayload().GetData()), nil
}

// AddSecretVersion stores value as the new latest version. Older versions are kept.
func (a *SecretsAdapter) AddSecretVersion(ctx context.Context, projectID, name, value string) error {
	_, err := a.Client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent: SecretName(projectID, name),
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(value),
		},
	})
	if err != nil {
		return fmt.Errorf("add secret version %s: %w", name, err)
	}
	return nil
}

func SecretName(projectID, name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", projectID, name)
}

func LatestVersion(projectID, name string) string {
	return SecretName(projectID, name) + "/versions/latest"
}
