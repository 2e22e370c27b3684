// Package gdrive archives finished recordings to a Google Drive folder.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// uploader is the slice of the Drive files API the archiver needs.
type uploader interface {
	create(ctx context.Context, name, folderID string, media io.Reader) (string, error)
	update(ctx context.Context, fileID string, media io.Reader) error
}

// Archiver uploads output files into one Drive folder. Uploading the same
// local path again replaces the earlier upload. Uploads of different paths
// may run concurrently.
type Archiver struct {
	files    uploader
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewArchiver(ctx context.Context, credPath, folderID string) (*Archiver, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newArchiver(driveFiles{svc: svc}, folderID), nil
}

func newArchiver(files uploader, folderID string) *Archiver {
	return &Archiver{
		files:    files,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}
}

// Upload sends the file at localPath to the folder, named by its base name
// prefixed with the recording ID.
func (a *Archiver) Upload(ctx context.Context, recordingID, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	a.mu.Lock()
	fileID, ok := a.fileIDs[localPath]
	a.mu.Unlock()

	if ok {
		if err := a.files.update(ctx, fileID, f); err != nil {
			return fmt.Errorf("drive update %s: %w", localPath, err)
		}
		return nil
	}

	name := fmt.Sprintf("%s-%s", recordingID, filepath.Base(localPath))
	id, err := a.files.create(ctx, name, a.folderID, f)
	if err != nil {
		return fmt.Errorf("drive create %s: %w", localPath, err)
	}

	a.mu.Lock()
	a.fileIDs[localPath] = id
	a.mu.Unlock()
	return nil
}

type driveFiles struct {
	svc *drive.Service
}

func (d driveFiles) create(ctx context.Context, name, folderID string, media io.Reader) (string, error) {
	file, err := d.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{folderID},
	}).Media(media).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}

func (d driveFiles) update(ctx context.Context, fileID string, media io.Reader) error {
	_, err := d.svc.Files.Update(fileID, &drive.File{}).Media(media).Context(ctx).Do()
	return err
}
