package server

import (
	"errors"
	"net/http"

	"github.com/danmuck/grassroots/internal/basestation"
	"github.com/danmuck/grassroots/internal/imaging"
	"github.com/danmuck/grassroots/internal/logging"
	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	formatJSON = "json"
	formatCBOR = "cbor"
	formatPNG  = "png"

	contentTypeCBOR = "application/cbor"
	contentTypePNG  = "image/png"
)

type selectRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// ImageView is the snapshot served by GET /image.
type ImageView struct {
	Identity string `json:"identity" cbor:"identity"`
	Width    int    `json:"width" cbor:"width"`
	Height   int    `json:"height" cbor:"height"`
	Depth    int    `json:"depth" cbor:"depth"`
	Pixels   []byte `json:"pixels" cbor:"pixels"`
}

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/identities", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.station.Identities())
	})
	r.POST("/select/camera", s.selectHandler(s.station.SelectCamera))
	r.POST("/select/sensor", s.selectHandler(s.station.SelectSensor))
	r.GET("/image", s.image)
	r.GET("/series", s.series)
	r.GET("/notices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"notices": s.station.Notices()})
	})
	r.GET("/events", s.events)
}

func (s *Server) health(c *gin.Context) {
	st := s.station.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      s.name,
		"run_id":       st.RunID,
		"uptime":       st.Uptime,
		"reader_state": st.ReaderState,
		"detail":       st,
	})
}

func (s *Server) selectHandler(apply func(string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req selectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := apply(req.Identity); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, basestation.ErrUnknownIdentity) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "selection": s.station.Identities()})
	}
}

func (s *Server) image(c *gin.Context) {
	buf, ok := s.station.Image()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": imaging.ErrNoBuffer.Error()})
		return
	}
	switch c.DefaultQuery("format", formatJSON) {
	case formatPNG:
		c.Status(http.StatusOK)
		c.Header("Content-Type", contentTypePNG)
		if err := buf.EncodePNG(c.Writer); err != nil {
			logging.Warnf("server.Server.image png encode failed err=%v", err)
		}
	case formatCBOR:
		s.cbor(c, imageView(buf))
	case formatJSON:
		c.JSON(http.StatusOK, imageView(buf))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format"})
	}
}

func (s *Server) series(c *gin.Context) {
	snap := s.station.Series()
	switch c.DefaultQuery("format", formatJSON) {
	case formatCBOR:
		s.cbor(c, snap)
	case formatJSON:
		c.JSON(http.StatusOK, snap)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format"})
	}
}

func (s *Server) cbor(c *gin.Context, v any) {
	data, err := cbor.Marshal(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentTypeCBOR, data)
}

func imageView(b imaging.Buffer) ImageView {
	return ImageView{
		Identity: b.Identity,
		Width:    b.Width,
		Height:   b.Height,
		Depth:    b.Depth,
		Pixels:   b.Pix,
	}
}
