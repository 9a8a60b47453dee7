package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"product-catalog/internal/storage"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	// ImageField is the only multipart field that may carry a file
	ImageField = "image"

	maxFieldBytes = 1 << 20

	// renames tried when a stored name is already taken
	maxNameAttempts = 5
)

var (
	ErrUnexpectedFile = errors.New("Unexpected field")
	ErrFieldTooLarge  = errors.New("Field value too long")

	errStoreImage = errors.New("store image")
)

type uploadKey struct{}

// UploadedImage returns the stored filename of the image sent with this request, if any
func UploadedImage(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(uploadKey{}).(string)
	return name, ok && name != ""
}

// WithUploadedImage stores an image filename in the context
func WithUploadedImage(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, uploadKey{}, name)
}

// UploadMiddleware consumes multipart bodies: text fields become r.PostForm and the single
// optional file under "image" is checked, stored and exposed through UploadedImage. Other
// content types pass through untouched. When the downstream handler fails (status >= 400) the
// freshly stored image is removed again.
func UploadMiddleware(store storage.ImageStore, maxBytes int64, logger *zap.Logger) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = storage.DefaultMaxImageSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if mediaType != "multipart/form-data" {
				next.ServeHTTP(w, r)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes+maxFieldBytes*8)

			reader, err := r.MultipartReader()
			if err != nil {
				RespondWithError(w, http.StatusBadRequest, "malformed multipart body")
				return
			}

			values, image, err := readParts(r.Context(), reader, store, maxBytes)
			if err != nil {
				if errors.Is(err, errStoreImage) {
					logger.Error("Failed to store upload", zap.Error(err), zap.String("path", r.URL.Path))
					RespondWithError(w, http.StatusInternalServerError, "failed to store image")
					return
				}
				logger.Warn("Upload rejected", zap.Error(err), zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusBadRequest, uploadErrorMessage(err))
				return
			}

			if image != "" {
				r = r.WithContext(WithUploadedImage(r.Context(), image))
			}
			r.PostForm = values
			r.Form = mergeQuery(values, r.URL.Query())
			r.MultipartForm = &multipart.Form{Value: values}

			if image == "" {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= http.StatusBadRequest {
				if err := store.Remove(context.WithoutCancel(r.Context()), image); err != nil {
					logger.Warn("Failed to remove rejected upload", zap.Error(err), zap.String("image", image))
				}
			}
		})
	}
}

func readParts(ctx context.Context, reader *multipart.Reader, store storage.ImageStore, maxBytes int64) (url.Values, string, error) {
	values := url.Values{}
	stored := ""

	fail := func(err error) (url.Values, string, error) {
		if stored != "" {
			store.Remove(context.WithoutCancel(ctx), stored)
		}
		return nil, "", err
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("read multipart: %w", err))
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			part.Close()
			if err != nil {
				return fail(fmt.Errorf("read field %s: %w", part.FormName(), err))
			}
			if len(value) > maxFieldBytes {
				return fail(ErrFieldTooLarge)
			}
			values.Add(part.FormName(), string(value))
			continue
		}

		if part.FormName() != ImageField || stored != "" {
			part.Close()
			return fail(ErrUnexpectedFile)
		}

		name, err := storeImage(ctx, part, store, maxBytes)
		part.Close()
		if err != nil {
			return fail(err)
		}
		stored = name
	}

	return values, stored, nil
}

func storeImage(ctx context.Context, part *multipart.Part, store storage.ImageStore, maxBytes int64) (string, error) {
	contentType, body, err := storage.SniffImage(part)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(body, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if n > maxBytes {
		return "", storage.ErrFileTooLarge
	}

	base := storage.FileName(part.FileName(), time.Now())
	name := base
	for attempt := 1; ; attempt++ {
		err := store.Save(ctx, name, bytes.NewReader(buf.Bytes()), n, contentType)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, storage.ErrImageExists) || attempt == maxNameAttempts {
			return "", fmt.Errorf("%w: %w", errStoreImage, err)
		}
		name = storage.Disambiguate(base)
	}
}

func uploadErrorMessage(err error) string {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, storage.ErrFileTooLarge), errors.As(err, &maxBytesErr):
		return "File too large"
	case errors.Is(err, storage.ErrUnsupportedType):
		return storage.ErrUnsupportedType.Error()
	case errors.Is(err, ErrUnexpectedFile):
		return ErrUnexpectedFile.Error()
	case errors.Is(err, ErrFieldTooLarge):
		return ErrFieldTooLarge.Error()
	default:
		return err.Error()
	}
}

func mergeQuery(form, query url.Values) url.Values {
	merged := url.Values{}
	for k, vs := range form {
		merged[k] = append(merged[k], vs...)
	}
	for k, vs := range query {
		merged[k] = append(merged[k], vs...)
	}
	return merged
}
