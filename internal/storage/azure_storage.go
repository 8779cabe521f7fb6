package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureArtifactStore uploads artifacts as block blobs into one container.
type AzureArtifactStore struct {
	client    *azblob.Client
	container string
}

func NewAzureArtifactStore(accountName, accountKey, container string) (*AzureArtifactStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &AzureArtifactStore{client: client, container: container}, nil
}

// EnsureContainer creates the container unless it already exists.
func (s *AzureArtifactStore) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", s.container, err)
	}
	return nil
}

func (s *AzureArtifactStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return s.blobURL(name), nil
}

func (s *AzureArtifactStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	name, ok := strings.CutPrefix(ref, s.blobURL(""))
	if !ok || name == "" {
		return nil, ErrArtifactNotFound
	}

	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	return resp.Body, nil
}

func (s *AzureArtifactStore) blobURL(name string) string {
	return strings.TrimSuffix(s.client.URL(), "/") + "/" + s.container + "/" + name
}
