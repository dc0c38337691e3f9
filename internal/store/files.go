package store

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"klient-plikow/internal/apiclient"
	"klient-plikow/internal/models"
	"klient-plikow/internal/validate"
)

const sharedPathSegment = "/storage/shared/"

// FileUpdate is the user-editable metadata of a file record.
type FileUpdate struct {
	Comment *string `json:"comment,omitempty"`
}

// Files is the client-side cache of the file list plus its in-flight
// flags, synchronized through the gateway.
type Files struct {
	tracker
	api   *apiclient.Client
	log   *zap.Logger
	items []models.File
}

func NewFiles(api *apiclient.Client, log *zap.Logger) *Files {
	return &Files{api: api, log: log}
}

// List fetches and replaces the whole collection. A non-zero ownerID
// filters to one user's files (admin view).
func (f *Files) List(ctx context.Context, ownerID int64) ([]models.File, error) {
	gen := f.begin(false)

	var query url.Values
	if ownerID > 0 {
		query = url.Values{"user_id": []string{strconv.FormatInt(ownerID, 10)}}
	}

	var items []models.File
	err := f.api.Get(ctx, "/storage/files/", query, &items)
	settleErr := f.settle(ctx, gen, false, err, func() {
		f.items = items
	})
	if settleErr != nil {
		return nil, settleErr
	}
	return items, nil
}

// Upload submits a file with an optional comment. The server assigns the
// id and shared link, so the new record is appended, not merged. Progress
// may be nil.
func (f *Files) Upload(ctx context.Context, name string, content io.Reader, comment string, progress apiclient.ProgressFunc) (*models.File, error) {
	if name == "" || content == nil {
		err := &validate.ValidationError{Field: "file", Reason: "nie wybrano pliku"}
		f.setError(err.Error())
		return nil, err
	}

	gen := f.begin(true)

	var uploaded models.File
	err := f.api.PostMultipart(ctx, "/storage/files/",
		map[string]string{"comment": comment},
		"file", name, content, progress, &uploaded)
	settleErr := f.settle(ctx, gen, true, err, func() {
		f.items = append(f.items, uploaded)
	})
	if settleErr != nil {
		return nil, settleErr
	}
	return &uploaded, nil
}

// Update patches one record's metadata and replaces that entry in place.
// An id with no cached match leaves the collection untouched.
func (f *Files) Update(ctx context.Context, id int64, fields FileUpdate) (*models.File, error) {
	gen := f.begin(true)

	var updated models.File
	err := f.api.Patch(ctx, fmt.Sprintf("/storage/files/%d/", id), fields, &updated)
	settleErr := f.settle(ctx, gen, true, err, func() {
		for i := range f.items {
			if f.items[i].ID == updated.ID {
				f.items[i] = updated
				break
			}
		}
	})
	if settleErr != nil {
		return nil, settleErr
	}
	return &updated, nil
}

// Remove deletes a file server-side and drops it from the cache. The
// caller obtains user confirmation before invoking this.
func (f *Files) Remove(ctx context.Context, id int64) error {
	gen := f.begin(true)

	err := f.api.Delete(ctx, fmt.Sprintf("/storage/files/%d/", id))
	return f.settle(ctx, gen, true, err, func() {
		kept := f.items[:0]
		for _, item := range f.items {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		f.items = kept
	})
}

// Download fetches the raw bytes of a file. It does not toggle the loading
// flag; only a failure is reflected in the store state.
func (f *Files) Download(ctx context.Context, id int64) ([]byte, error) {
	data, err := f.api.Download(ctx, fmt.Sprintf("/storage/files/%d/download/", id))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.setError(err.Error())
		return nil, err
	}
	return data, nil
}

// ShareURL builds the public download URL for a record. Local-only; no
// request is issued.
func (f *Files) ShareURL(file models.File) string {
	return f.api.BaseURL() + sharedPathSegment + file.SharedLink + "/"
}

// Items returns a snapshot copy of the cached collection.
func (f *Files) Items() []models.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]models.File, len(f.items))
	copy(items, f.items)
	return items
}
