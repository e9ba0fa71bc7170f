package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	maxImageUploadBytes = 8 << 20
	maxVideoUploadBytes = 512 << 20
)

type uploadedFile struct {
	data        []byte
	filename    string
	contentType string
}

type multipartForm struct {
	fields map[string]string
	files  map[string]*uploadedFile
}

func (f *multipartForm) field(name string) string {
	return strings.TrimSpace(f.fields[name])
}

// readMultipartForm drains the request's multipart body. Parts listed in
// fileLimits are buffered as files subject to their per-part size cap; every
// other part is treated as a text field.
func readMultipartForm(r *http.Request, fileLimits map[string]int64) (*multipartForm, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errors.New("invalid multipart payload")
	}
	form := &multipartForm{
		fields: make(map[string]string),
		files:  make(map[string]*uploadedFile),
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart data: %w", err)
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if limit, ok := fileLimits[name]; ok {
			if _, exists := form.files[name]; exists {
				_ = part.Close()
				continue
			}
			data, readErr := io.ReadAll(io.LimitReader(part, limit+1))
			_ = part.Close()
			if readErr != nil {
				return nil, fmt.Errorf("read %s upload: %w", name, readErr)
			}
			if int64(len(data)) > limit {
				return nil, fmt.Errorf("%s upload exceeds %d bytes", name, limit)
			}
			if len(data) == 0 {
				continue
			}
			form.files[name] = &uploadedFile{
				data:        data,
				filename:    part.FileName(),
				contentType: part.Header.Get("Content-Type"),
			}
			continue
		}
		payload, readErr := io.ReadAll(io.LimitReader(part, 1<<20))
		_ = part.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read form field: %w", readErr)
		}
		form.fields[name] = strings.TrimSpace(string(payload))
	}
	return form, nil
}

// storeUpload pushes the file to the media host under the given key prefix
// and returns the public URL. When the media host is disabled no bytes are
// transferred and the object key alone is recorded. Keys carry a generated
// identifier so uploads sharing a client filename never collide; a shared key
// would let one user's upload overwrite another's object and cleanup paths
// delete live assets.
func (h *Handler) storeUpload(ctx context.Context, keyPrefix string, file *uploadedFile) (string, error) {
	if file == nil {
		return "", nil
	}
	key := keyPrefix + uuid.NewString() + "-" + sanitizeFilename(file.filename)
	if h.Media == nil || !h.Media.Enabled() {
		return key, nil
	}
	contentType := file.contentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(file.filename))
	}
	asset, err := h.Media.Upload(ctx, key, contentType, file.data)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	if asset.URL != "" {
		return asset.URL, nil
	}
	return asset.Key, nil
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	var builder strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '.', r == '-', r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteByte('-')
		}
	}
	cleaned := strings.Trim(builder.String(), "-.")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

// removeUpload deletes a stored asset. Failures are ignored; cleanup must
// never fail the caller's request.
func (h *Handler) removeUpload(ctx context.Context, keyOrURL string) {
	if keyOrURL == "" || h.Media == nil || !h.Media.Enabled() {
		return
	}
	_ = h.Media.Remove(ctx, keyOrURL)
}
