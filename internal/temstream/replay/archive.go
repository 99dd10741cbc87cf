package replay

import (
	"context"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/klauspost/compress/gzip"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
)

// Compact gzip-compresses the closed log file at srcPath into a new file at
// srcPath+".gz", since replay logs are append-only and grow unbounded over
// a server's lifetime. The source file is left untouched; the caller
// decides whether to remove it.
func Compact(srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", temerrors.NewResourceError("replay.compact", err)
	}
	defer src.Close()

	dstPath := srcPath + ".gz"
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", temerrors.NewResourceError("replay.compact", err)
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := gw.ReadFrom(src); err != nil {
		gw.Close()
		return "", temerrors.NewResourceError("replay.compact", err)
	}
	if err := gw.Close(); err != nil {
		return "", temerrors.NewResourceError("replay.compact", err)
	}
	return dstPath, nil
}

// Archiver uploads rotated replay log files to Azure Blob Storage. It is
// the in-process successor to a separate blob-upload sidecar: a server
// configured with -azure-container runs Archiver.Upload as a workpool
// task instead of shelling the file out to another process.
type Archiver struct {
	client    *azblob.Client
	container string
}

// NewArchiver builds an Archiver against serviceURL (an
// "https://<account>.blob.core.windows.net" endpoint) and container, using
// ambient Azure credentials (environment, managed identity, or az CLI
// login) via azidentity.DefaultAzureCredential.
func NewArchiver(serviceURL, container string) (*Archiver, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, temerrors.NewResourceError("replay.archiver.new", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, temerrors.NewResourceError("replay.archiver.new", err)
	}
	return &Archiver{client: client, container: container}, nil
}

// Upload streams the file at path to the Archiver's container under its
// base name as the blob name.
func (a *Archiver) Upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return temerrors.NewResourceError("replay.archiver.upload", err)
	}
	defer f.Close()

	blobName := blobNameFor(path)
	if _, err := a.client.UploadFile(ctx, a.container, blobName, f, nil); err != nil {
		return temerrors.NewResourceError("replay.archiver.upload", err)
	}
	return nil
}

func blobNameFor(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
