package oracleapi

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aeye-server-go/internal/domain/oracle"
	"aeye-server-go/internal/platform/errors"
	"aeye-server-go/internal/utils"
)

// Service 远程判定服务的HTTP传输层实现，供 oracle.RemoteClient 调用
type Service struct {
	diagnosis oracle.DiagnosisOracle
	quality   oracle.ImageQualityOracle
	logger    *utils.Logger
}

// NewService 创建判定服务
func NewService(diagnosis oracle.DiagnosisOracle, quality oracle.ImageQualityOracle, logger *utils.Logger) (*Service, error) {
	if diagnosis == nil || quality == nil {
		return nil, errors.New(errors.KindConfig, "oracleapi.new", "both oracles are required")
	}
	return &Service{diagnosis: diagnosis, quality: quality, logger: logger}, nil
}

// Register mounts POST /diagnose and POST /image-quality on router.
func (s *Service) Register(router gin.IRoutes) {
	router.POST(oracle.PathDiagnose, s.handleDiagnose)
	router.POST(oracle.PathImageQuality, s.handleImageQuality)
}

func (s *Service) handleDiagnose(c *gin.Context) {
	var req oracle.DiagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	raw, ok := decodeImage(c, req.ImageData)
	if !ok {
		return
	}

	outcome, err := s.diagnosis.Diagnose(c.Request.Context(), req.FormData, raw)
	if err != nil {
		s.logger.ErrorTag("Oracle", "diagnose failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errors.Reason(err)})
		return
	}
	c.JSON(http.StatusOK, oracle.DiagnoseResponse{
		DiagnoseResult: outcome.Result,
		Confidence:     outcome.Confidence,
	})
}

func (s *Service) handleImageQuality(c *gin.Context) {
	var req oracle.QualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	raw, ok := decodeImage(c, req.ImageData)
	if !ok {
		return
	}

	passed, err := s.quality.CheckQuality(c.Request.Context(), raw)
	if err != nil {
		s.logger.ErrorTag("Oracle", "quality check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errors.Reason(err)})
		return
	}
	c.JSON(http.StatusOK, oracle.QualityResponse{ImageQualityPassed: passed})
}

// decodeImage writes a 400 and returns false when imageData is absent or not base64.
func decodeImage(c *gin.Context, data string) ([]byte, bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided"})
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageData is not valid base64"})
		return nil, false
	}
	return raw, true
}
