package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/internal/media"
	"sentinel/internal/model"
	"sentinel/internal/repository"
	"sentinel/internal/service/analysis"
	"sentinel/internal/service/storage"
	"sentinel/internal/telemetry"
)

const (
	// multipartOverhead is allowed on top of the file size limit for form boundaries and fields.
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

// UploadHandler accepts a multipart upload ("file", optional "uploadedBy"),
// stores it and queues it for analysis.
func UploadHandler(cfg *config.Config, files *storage.FileStore, uploads repository.UploadRepository,
	manager *analysis.Manager, instruments *telemetry.Instruments, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize+multipartOverhead)

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				instruments.UploadReceived("rejected")
				writeError(w, logger, http.StatusRequestEntityTooLarge, media.ErrFileTooLarge.Error())
				return
			}
			instruments.UploadReceived("rejected")
			writeError(w, logger, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			instruments.UploadReceived("rejected")
			writeError(w, logger, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		mimeType := detectType(header.Header.Get("Content-Type"), header.Filename)
		if err := media.Validate(header.Filename, mimeType, header.Size); err != nil {
			instruments.UploadReceived("rejected")
			logger.Warning("Rejected upload %s: %v", header.Filename, err)
			writeError(w, logger, uploadErrorStatus(err), err.Error())
			return
		}

		id := uuid.NewString()
		filename, size, err := files.Save(id, mimeType, file)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				instruments.UploadReceived("rejected")
				writeError(w, logger, http.StatusRequestEntityTooLarge, media.ErrFileTooLarge.Error())
				return
			}
			instruments.UploadReceived("failed")
			logger.Error("Failed to store upload %s: %v", header.Filename, err)
			writeError(w, logger, http.StatusInternalServerError, "failed to store file")
			return
		}

		upload := &model.UploadedFile{
			ID:           id,
			Filename:     filename,
			OriginalName: header.Filename,
			MimeType:     mimeType,
			Size:         size,
			Status:       model.StatusUploaded,
			UploadedAt:   time.Now().UTC(),
			ImageURL:     "/api/uploads/" + id + "/file",
			UploadedBy:   strings.TrimSpace(r.FormValue("uploadedBy")),
		}
		if err := uploads.Insert(upload); err != nil {
			instruments.UploadReceived("failed")
			logger.Error("Failed to record upload %s: %v", id, err)
			files.Remove(filename)
			writeError(w, logger, http.StatusInternalServerError, "failed to record upload")
			return
		}

		switch err := manager.Submit(id); {
		case errors.Is(err, analysis.ErrQueueFull):
			upload.Status = model.StatusError
			upload.Error = err.Error()
		case errors.Is(err, analysis.ErrStopped):
			instruments.UploadReceived("failed")
			writeError(w, logger, http.StatusServiceUnavailable, err.Error())
			return
		}

		instruments.UploadReceived("accepted")
		logger.Info("Upload %s accepted: %s (%s, %d bytes)", id, upload.OriginalName, mimeType, size)
		writeJSON(w, logger, http.StatusCreated, upload)
	}
}

// UploadsHandler lists uploads, newest first.
func UploadsHandler(uploads repository.UploadRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := uploads.GetAll(limitParam(r, 50, 500))
		if err != nil {
			logger.Error("Error querying uploads: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "failed to load uploads")
			return
		}
		writeJSON(w, logger, http.StatusOK, all)
	}
}

// UploadByIDHandler returns a single upload.
func UploadByIDHandler(uploads repository.UploadRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, ok := findUpload(w, r, uploads, logger)
		if !ok {
			return
		}
		writeJSON(w, logger, http.StatusOK, upload)
	}
}

// UploadFileHandler serves the stored media of an upload.
func UploadFileHandler(uploads repository.UploadRepository, files *storage.FileStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, ok := findUpload(w, r, uploads, logger)
		if !ok {
			return
		}

		path, err := files.Path(upload.Filename)
		if err != nil {
			logger.Error("Invalid stored filename for %s: %v", upload.ID, err)
			writeError(w, logger, http.StatusInternalServerError, "invalid stored file")
			return
		}

		w.Header().Set("Content-Type", upload.MimeType)
		http.ServeFile(w, r, path)
	}
}

func findUpload(w http.ResponseWriter, r *http.Request, uploads repository.UploadRepository, logger *logger.Logger) (*model.UploadedFile, bool) {
	id := mux.Vars(r)["id"]
	upload, err := uploads.GetByID(id)
	if err != nil {
		logger.Error("Error querying upload %s: %v", id, err)
		writeError(w, logger, http.StatusInternalServerError, "failed to load upload")
		return nil, false
	}
	if upload == nil {
		writeError(w, logger, http.StatusNotFound, "upload not found")
		return nil, false
	}
	return upload, true
}

// detectType prefers the declared part type and falls back to the file extension.
func detectType(declared, filename string) string {
	if media.IsAllowed(declared) {
		return declared
	}
	if declared == "" || strings.HasPrefix(declared, "application/octet-stream") {
		if byExt := media.TypeByExtension(filename); byExt != "" {
			return byExt
		}
	}
	return declared
}

func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, media.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, media.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}
