package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stockstudio/internal/asset"
	"stockstudio/internal/export"
	"stockstudio/internal/meta"
)

// maxUploadMemory bounds how much of a multipart upload is held in memory
// before spilling to temp files.
const maxUploadMemory = 32 << 20

type assetResponse struct {
	ID         string       `json:"id"`
	Filename   string       `json:"filename"`
	MimeType   string       `json:"mimeType"`
	Status     asset.Status `json:"status"`
	Metadata   *meta.Record `json:"metadata,omitempty"`
	Error      string       `json:"error,omitempty"`
	UploadedAt time.Time    `json:"uploadedAt"`
	PreviewURL string       `json:"previewUrl"`
}

func toAssetResponse(a asset.Asset) assetResponse {
	return assetResponse{
		ID:         a.ID,
		Filename:   a.Name,
		MimeType:   a.MimeType,
		Status:     a.Status,
		Metadata:   a.Metadata,
		Error:      a.Error,
		UploadedAt: a.UploadedAt,
		PreviewURL: "/api/assets/" + a.ID + "/preview",
	}
}

func toAssetResponses(assets []asset.Asset) []assetResponse {
	out := make([]assetResponse, len(assets))
	for i, a := range assets {
		out[i] = toAssetResponse(a)
	}
	return out
}

// handleUpload ingests a multipart batch from the `images` form field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	headers := r.MultipartForm.File["images"]
	files := make([]asset.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to open upload %s: %v", header.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload %s: %v", header.Filename, err))
			return
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		files = append(files, asset.File{Name: header.Filename, MimeType: mimeType, Data: data})
	}

	// Generation attempts outlive this request; bound them to the server
	batch, err := s.pipeline.Ingest(s.baseCtx, files)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, toAssetResponses(batch))
}

// handleUploadByURL ingests images fetched from remote URLs.
func (s *Server) handleUploadByURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	files := make([]asset.File, len(req.URLs))
	g, ctx := errgroup.WithContext(r.Context())
	for i, u := range req.URLs {
		g.Go(func() error {
			file, err := s.fetcher.Fetch(ctx, u)
			if err != nil {
				return fmt.Errorf("%s: %w", u, err)
			}
			files[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	batch, err := s.pipeline.Ingest(s.baseCtx, files)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, toAssetResponses(batch))
}

// handleList returns all assets newest first, optionally filtered by the
// `q` search term (filename or title substring, case-insensitive) and by
// `status`.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	assets := s.store.List(r.URL.Query().Get("q"))

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		filtered := assets[:0]
		for _, a := range assets {
			if a.Status == asset.Status(statusParam) {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}

	s.writeJSON(w, http.StatusOK, toAssetResponses(assets))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	a, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toAssetResponse(a))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	a, ok := s.store.Get(r.PathValue("id"))
	if !ok || a.PreviewPath() == "" {
		s.writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	w.Header().Set("Content-Type", a.MimeType)
	http.ServeFile(w, r, a.PreviewPath())
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.pipeline.Regenerate(s.baseCtx, id); err != nil {
		s.assetError(w, err)
		return
	}
	a, _ := s.store.Get(id)
	s.writeJSON(w, http.StatusAccepted, toAssetResponse(a))
}

func (s *Server) handleSetTitle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	s.applyEdit(w, r, func(id string) error {
		return s.store.SetTitle(id, req.Title)
	})
}

func (s *Server) handleSetDescription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	s.applyEdit(w, r, func(id string) error {
		return s.store.SetDescription(id, req.Description)
	})
}

func (s *Server) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	keyword, ok := s.decodeKeyword(w, r)
	if !ok {
		return
	}
	s.applyEdit(w, r, func(id string) error {
		return s.store.AddKeyword(id, keyword)
	})
}

func (s *Server) handleRemoveKeyword(w http.ResponseWriter, r *http.Request) {
	keyword, ok := s.decodeKeyword(w, r)
	if !ok {
		return
	}
	s.applyEdit(w, r, func(id string) error {
		return s.store.RemoveKeyword(id, keyword)
	})
}

func (s *Server) decodeKeyword(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Keyword string `json:"keyword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return "", false
	}
	return req.Keyword, true
}

// applyEdit runs an identifier-keyed metadata edit and responds with the
// updated asset.
func (s *Server) applyEdit(w http.ResponseWriter, r *http.Request, edit func(id string) error) {
	id := r.PathValue("id")
	if err := edit(id); err != nil {
		s.assetError(w, err)
		return
	}
	a, _ := s.store.Get(id)
	s.writeJSON(w, http.StatusOK, toAssetResponse(a))
}

// handleExport streams the CSV download of all completed assets.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	if err := export.WriteCSV(w, s.store.List("")); err != nil {
		log.Warn().Err(err).Msg("failed to write export")
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session := s.store.Session()
	s.writeJSON(w, http.StatusOK, map[string]string{
		"view":       string(session.View),
		"selectedId": session.SelectedID,
	})
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View string `json:"view"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	view, err := asset.ParseViewMode(req.View)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.store.SetView(view)
	s.handleSession(w, r)
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := s.store.Select(req.ID); err != nil {
		s.assetError(w, err)
		return
	}
	s.handleSession(w, r)
}

// handleStatus reports per-status counts for the session.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts := s.store.Counts()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":      counts.Total,
		"idle":       counts.Idle,
		"processing": counts.Processing,
		"completed":  counts.Completed,
		"error":      counts.Error,
	})
}

func (s *Server) assetError(w http.ResponseWriter, err error) {
	if errors.Is(err, asset.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}
