package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/models"
)

// batchTimeFormat orders blobs chronologically under each term prefix.
const batchTimeFormat = "2006-01-02T15-04-05Z"

// sightingBatch is the archived envelope: the raw batch exactly as gathered,
// before score filtering, so a pass can be replayed against changed rules.
type sightingBatch struct {
	Term       string            `json:"term"`
	TermID     string            `json:"term_id"`
	ArchivedAt time.Time         `json:"archived_at"`
	Sightings  []models.Sighting `json:"sightings"`
}

// BlobArchive keeps one blob per (term, pass) in Azure Blob Storage, keyed
// raw/<normalized term>/<timestamp>.json.
type BlobArchive struct {
	client    *azblob.Client
	container string
}

// NewBlobArchive creates an archive client using managed identity and makes
// sure the container exists.
func NewBlobArchive(accountName, containerName string) (*BlobArchive, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	archive := &BlobArchive{client: client, container: containerName}

	_, err = client.CreateContainer(context.Background(), containerName, nil)
	if err != nil && !strings.Contains(err.Error(), "ContainerAlreadyExists") {
		return nil, fmt.Errorf("failed to ensure container exists: %w", err)
	}

	return archive, nil
}

func batchBlobName(term models.Term, at time.Time) string {
	return fmt.Sprintf("raw/%s/%s.json", term.NormalizedText, at.UTC().Format(batchTimeFormat))
}

// StoreBatch archives the raw sighting batch for one term's pass.
func (a *BlobArchive) StoreBatch(ctx context.Context, term models.Term, sightings []models.Sighting) error {
	envelope := sightingBatch{
		Term:       term.CanonicalText,
		TermID:     term.ID.String(),
		ArchivedAt: time.Now().UTC(),
		Sightings:  sightings,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal sighting batch: %w", err)
	}

	name := batchBlobName(term, envelope.ArchivedAt)
	_, err = a.client.UploadBuffer(ctx, a.container, name, data, &azblob.UploadBufferOptions{
		BlockSize:   int64(1024 * 1024),
		Concurrency: 3,
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", name, err)
	}

	logrus.Debugf("Archived %d sightings to %s", len(sightings), name)
	return nil
}

// RetrieveBatch downloads and decodes one archived batch by blob name.
func (a *BlobArchive) RetrieveBatch(ctx context.Context, name string) ([]models.Sighting, error) {
	response, err := a.client.DownloadStream(ctx, a.container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", name, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob content: %w", err)
	}

	var envelope sightingBatch
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode archived batch %s: %w", name, err)
	}
	return envelope.Sightings, nil
}

// ListBatches returns the archived batch names for a term, oldest first by
// blob name ordering.
func (a *BlobArchive) ListBatches(ctx context.Context, term models.Term) ([]string, error) {
	prefix := "raw/" + term.NormalizedText + "/"

	var names []string
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list archived batches: %w", err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				names = append(names, *blob.Name)
			}
		}
	}
	return names, nil
}
