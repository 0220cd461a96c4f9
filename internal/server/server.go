// Package server exposes face detection over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dimuls/ssdface"
	"github.com/dimuls/ssdface/internal/report"
)

const requestIDKey = "request_id"

// Detector finds faces on image. ssdface.Pool implements it.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat, minConfidence float64) ([]ssdface.Detection, error)
}

// Server handles face detection requests.
type Server struct {
	detector      Detector
	minConfidence float64
	jpegQuality   int
	logger        *zap.SugaredLogger
}

func New(detector Detector, minConfidence float64, jpegQuality int, logger *zap.SugaredLogger) *Server {
	return &Server{
		detector:      detector,
		minConfidence: minConfidence,
		jpegQuality:   jpegQuality,
		logger:        logger,
	}
}

// DetectRequest is a body of POST /api/detectFaces.
type DetectRequest struct {
	// Payload is a base64 encoded JPEG, PNG, GIF, BMP, TIFF or WEBP image.
	Payload       string   `json:"payload" binding:"required"`
	MinConfidence *float64 `json:"minConfidence"`
}

// DetectedFace is a one face of DetectResponse.
type DetectedFace struct {
	Confidence float64    `json:"confidence"`
	Box        report.Box `json:"box"`

	// Image is a base64 encoded JPEG of face crop.
	Image string `json:"image"`
}

// DetectResponse is a successful response of POST /api/detectFaces.
type DetectResponse struct {
	RequestID string         `json:"requestId"`
	Faces     []DetectedFace `json:"faces"`
}

// Handler returns HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()

	r.Use(gin.Recovery(), s.requestID, s.logRequest)
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length"},
		AllowCredentials: false,
		AllowAllOrigins:  true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/api/detectFaces", s.detectFaces)

	return r
}

func (s *Server) requestID(c *gin.Context) {
	id := uuid.New().String()
	c.Set(requestIDKey, id)
	c.Header("X-Request-Id", id)
	c.Next()
}

func (s *Server) logRequest(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Infow("request",
		"request_id", c.GetString(requestIDKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("detect faces", "request_id", c.GetString(requestIDKey), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "requestId": c.GetString(requestIDKey)})
}

func (s *Server) detectFaces(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	minConfidence := s.minConfidence
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
	}
	if !(minConfidence >= 0 && minConfidence <= 1) {
		s.fail(c, http.StatusBadRequest, errors.Errorf("minConfidence must be within [0, 1], got %v", minConfidence))
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		s.fail(c, http.StatusBadRequest, errors.Wrap(err, "decode payload"))
		return
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		s.fail(c, http.StatusBadRequest, errors.Wrap(err, "decode image"))
		return
	}

	mat, err := ssdface.FromImage(img)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	defer mat.Close()

	detections, err := s.detector.Detect(c.Request.Context(), mat, minConfidence)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	defer ssdface.CloseAll(detections)

	resp := DetectResponse{
		RequestID: c.GetString(requestIDKey),
		Faces:     make([]DetectedFace, 0, len(detections)),
	}

	for _, d := range detections {
		crop, err := s.encodeCrop(d)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		resp.Faces = append(resp.Faces, DetectedFace{
			Confidence: d.Confidence,
			Box:        report.NewBox(d),
			Image:      crop,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) encodeCrop(d ssdface.Detection) (string, error) {
	img, err := d.ToImage()
	if err != nil {
		return "", errors.Wrap(err, "convert face crop")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.jpegQuality)); err != nil {
		return "", errors.Wrap(err, "encode face crop")
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
