package server

import (
	"bytes"
	"errors"
	"image"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xob0t/CertStencil/pkg/batch"
	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/export"
	"github.com/xob0t/CertStencil/pkg/layout"
	"github.com/xob0t/CertStencil/pkg/logger"
	"github.com/xob0t/CertStencil/pkg/render"
	"github.com/xob0t/CertStencil/pkg/session"
)

// ── Responses ──

type box struct {
	ID     int `json:"id"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type stateResponse struct {
	session.State
	NameCount int              `json:"nameCount"`
	Boxes     []box            `json:"boxes"`
	Canvas    certificate.Size `json:"canvas"`
}

type certificateItem struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	FileName string `json:"fileName"`
	DataURL  string `json:"dataUrl"`
}

type pointerRequest struct {
	X       int `json:"x"`
	Y       int `json:"y"`
	Surface struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"surface"`
}

func (p pointerRequest) point() image.Point {
	return image.Pt(p.X, p.Y)
}

func (s *Server) abort(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownElement):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoTemplate),
		errors.Is(err, session.ErrNoNames),
		errors.Is(err, certificate.ErrInvalidPatch),
		errors.Is(err, render.ErrEmptyFont),
		errors.Is(err, export.ErrEmptyBatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) stateOf(st session.State) stateResponse {
	boxes := make([]box, 0, len(st.Elements))
	for _, el := range st.Elements {
		r, err := s.renderer.Measure(el)
		if err != nil {
			continue
		}
		boxes = append(boxes, box{ID: el.ID, X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()})
	}
	return stateResponse{
		State:     st,
		NameCount: len(st.Names()),
		Boxes:     boxes,
		Canvas:    s.renderer.Size(),
	}
}

// ── State ──

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.stateOf(s.store.Snapshot()))
}

func (s *Server) handleReset(c *gin.Context) {
	s.board.Reset()
	s.store.Reset()
	c.JSON(http.StatusOK, s.stateOf(s.store.Snapshot()))
}

// ── Upload ──

// readUpload returns the multipart "file" field, capped at the configured size.
func (s *Server) readUpload(c *gin.Context) (string, []byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func (s *Server) handleUploadTemplate(c *gin.Context) {
	name, data, err := s.readUpload(c)
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	if err := s.store.SetTemplate(name, data); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	logger.FromContext(c.Request.Context()).Info("template loaded", zap.String("file", name))
	c.JSON(http.StatusOK, s.stateOf(s.store.Snapshot()))
}

func (s *Server) handleUploadFont(c *gin.Context) {
	name, data, err := s.readUpload(c)
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	family, err := s.store.SetFont(data)
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	logger.FromContext(c.Request.Context()).Info("font registered",
		zap.String("file", name), zap.String("family", family))
	c.JSON(http.StatusOK, gin.H{"family": family})
}

// ── Bundles ──

func (s *Server) handleImportBundle(c *gin.Context) {
	_, data, err := s.readUpload(c)
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	b, err := layout.ReadBundle(data, s.cfg.MaxUploadBytes)
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}

	if _, err := s.store.Import(session.Import{
		Elements:     b.Layout.Elements,
		Stamp:        b.Layout.Stamp,
		TemplateName: b.TemplateName,
		Template:     b.Template,
		Font:         b.Font,
		Names:        b.Names,
	}); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	s.board.Reset()

	c.JSON(http.StatusOK, gin.H{
		"state":    s.stateOf(s.store.Snapshot()),
		"warnings": layout.Validate(b.Layout),
	})
}

func (s *Server) handleExportBundle(c *gin.Context) {
	st := s.store.Snapshot()
	stamp := st.Stamp
	b := &layout.Bundle{
		Layout: &layout.Layout{Elements: st.Elements, Stamp: &stamp},
		Names:  st.NamesText,
	}
	if st.HasTemplate() {
		data, err := render.EncodePNG(st.Template)
		if err != nil {
			s.abort(c, http.StatusInternalServerError, err)
			return
		}
		b.TemplateName, b.Template = "template.png", data
	}
	if data, ok := s.fonts.Data(st.CustomFont); ok {
		b.Font = data
	}

	var buf bytes.Buffer
	if err := layout.WriteBundle(&buf, b); err != nil {
		s.abort(c, http.StatusInternalServerError, err)
		return
	}
	attachment(c, export.FilePrefix+layout.BundleExt, "application/zip", buf.Bytes())
}

// ── Editing ──

func (s *Server) handleSetNames(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	s.store.SetNames(req.Text)
	c.JSON(http.StatusOK, gin.H{"nameCount": s.store.NameCount()})
}

func (s *Server) handleSetStamp(c *gin.Context) {
	var stamp render.QRStamp
	if err := c.ShouldBindJSON(&stamp); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	s.store.SetStamp(stamp)
	c.JSON(http.StatusOK, stamp)
}

func elementID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	return id, err == nil
}

func (s *Server) handleUpdateElement(c *gin.Context) {
	id, ok := elementID(c)
	if !ok {
		s.abort(c, http.StatusBadRequest, errors.New("invalid element id"))
		return
	}
	var patch certificate.ElementPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	el, err := s.store.UpdateElement(id, patch)
	if err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, el)
}

// ── Drag ──

func (s *Server) handleDragDown(c *gin.Context) {
	id, ok := elementID(c)
	if !ok {
		s.abort(c, http.StatusBadRequest, errors.New("invalid element id"))
		return
	}
	var req pointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	el, err := s.store.Element(id)
	if err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	bounds, err := s.renderer.Measure(el)
	if err != nil {
		s.abort(c, http.StatusInternalServerError, err)
		return
	}

	origin := image.Pt(req.Surface.X, req.Surface.Y)
	size := s.renderer.Size()
	surface := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size.Width, size.Height))}
	dragging := s.board.Down(id, req.point(), bounds.Add(origin), surface)
	c.JSON(http.StatusOK, gin.H{"dragging": dragging, "element": el})
}

func (s *Server) handleDragMove(c *gin.Context) {
	s.dispatchPointer(c, s.board.Move)
}

func (s *Server) handleDragUp(c *gin.Context) {
	s.dispatchPointer(c, s.board.Up)
}

// dispatchPointer forwards a document-level pointer event and returns the field's position.
func (s *Server) dispatchPointer(c *gin.Context, dispatch func(image.Point)) {
	id, ok := elementID(c)
	if !ok {
		s.abort(c, http.StatusBadRequest, errors.New("invalid element id"))
		return
	}
	var req pointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	dispatch(req.point())

	el, err := s.store.Element(id)
	if err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dragging": s.board.Dragging(id), "element": el})
}

// ── Rendering ──

func (s *Server) handlePreview(c *gin.Context) {
	st := s.store.Snapshot()
	scene := render.Scene{Template: st.Template, Elements: st.Elements, Mode: render.Preview}
	img, err := s.renderer.Render(c.Request.Context(), scene)
	if err != nil {
		s.abort(c, http.StatusInternalServerError, err)
		return
	}
	data, err := render.EncodePNG(img)
	if err != nil {
		s.abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) handleGenerate(c *gin.Context) {
	res, err := s.service.Run(c.Request.Context())
	if err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runId":        res.RunID,
		"certificates": items(res.Certificates),
		"failures":     batch.SessionFailures(res.Failures),
	})
}

// ── Results ──

func items(certs []certificate.GeneratedCertificate) []certificateItem {
	names := export.FileNames(certs)
	out := make([]certificateItem, len(certs))
	for i, cert := range certs {
		out[i] = certificateItem{Index: i, Name: cert.Name, FileName: names[i], DataURL: cert.DataURL}
	}
	return out
}

func (s *Server) handleCertificates(c *gin.Context) {
	st := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"runId":        st.RunID,
		"certificates": items(st.Certificates),
		"failures":     st.Failures,
	})
}

// certificateAt resolves the :index parameter to a certificate and its decoded PNG.
func (s *Server) certificateAt(c *gin.Context) (certificateItem, []byte, bool) {
	certs := items(s.store.Certificates())
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 || i >= len(certs) {
		s.abort(c, http.StatusNotFound, errors.New("no such certificate"))
		return certificateItem{}, nil, false
	}
	data, err := export.DecodeDataURL(certs[i].DataURL)
	if err != nil {
		s.abort(c, http.StatusInternalServerError, err)
		return certificateItem{}, nil, false
	}
	return certs[i], data, true
}

func (s *Server) handleDownload(c *gin.Context) {
	item, data, ok := s.certificateAt(c)
	if !ok {
		return
	}
	attachment(c, item.FileName, "image/png", data)
}

func (s *Server) handleThumbnail(c *gin.Context) {
	_, data, ok := s.certificateAt(c)
	if !ok {
		return
	}
	width := s.cfg.ThumbnailWidth
	if w, err := strconv.Atoi(c.Query("width")); err == nil && w > 0 {
		width = w
	}
	thumb, err := export.Thumbnail(data, width)
	if err != nil {
		s.abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "image/png", thumb)
}

func (s *Server) handleArchive(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.WriteArchive(&buf, s.store.Certificates()); err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	attachment(c, export.ArchiveName, "application/zip", buf.Bytes())
}

// attachment sends data as a download named filename. Non-ASCII names are encoded
// per RFC 2231.
func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, contentType, data)
}
