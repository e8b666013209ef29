package reports

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"aeye-server-go/internal/domain/report"
	"aeye-server-go/internal/platform/artifacts"
	"aeye-server-go/internal/platform/errors"
	httptransport "aeye-server-go/internal/transport/http"
	"aeye-server-go/internal/utils"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	exportLimit  = 10000
)

// Reader is the read side of report storage. Only completed reports are returned.
type Reader interface {
	FindByID(ctx context.Context, id uint) (*report.Report, error)
	List(ctx context.Context, limit, offset int) ([]*report.Report, int64, error)
	ListAll(ctx context.Context, limit int) ([]*report.Report, error)
}

// Service 报告查询与导出的HTTP传输层实现
type Service struct {
	reader    Reader
	artifacts report.ArtifactStore
	logger    *utils.Logger
}

// NewService 创建报告服务
func NewService(reader Reader, store report.ArtifactStore, logger *utils.Logger) (*Service, error) {
	if reader == nil {
		return nil, errors.New(errors.KindConfig, "reports.new", "report reader is required")
	}
	if store == nil {
		return nil, errors.New(errors.KindConfig, "reports.new", "artifact store is required")
	}
	return &Service{reader: reader, artifacts: store, logger: logger}, nil
}

// Register 注册报告相关的HTTP路由
func (s *Service) Register(router *gin.RouterGroup) {
	group := router.Group("/reports")
	group.GET("", s.handleList)
	group.GET("/export", s.handleExport)
	group.GET("/:id", s.handleGet)
	group.GET("/:id/image", s.handleImage)

	s.logger.InfoTag("HTTP", "报告服务路由注册完成")
}

func (s *Service) handleList(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.reader.List(c.Request.Context(), limit, offset)
	if err != nil {
		httptransport.RespondFailure(c, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []*report.Report{}
	}
	httptransport.RespondSuccess(c, http.StatusOK, httptransport.Page{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, "")
}

func (s *Service) handleGet(c *gin.Context) {
	rep, ok := s.lookup(c)
	if !ok {
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, rep, "")
}

func (s *Service) handleImage(c *gin.Context) {
	rep, ok := s.lookup(c)
	if !ok {
		return
	}
	if rep.ImageKey == "" {
		httptransport.RespondError(c, http.StatusNotFound, "report has no image", nil)
		return
	}

	data, err := s.artifacts.Get(c.Request.Context(), rep.ImageKey)
	if err != nil {
		if stderrors.Is(err, artifacts.ErrNotFound) {
			httptransport.RespondError(c, http.StatusNotFound, "image not found", nil)
			return
		}
		httptransport.RespondFailure(c, http.StatusInternalServerError, err)
		return
	}

	ext := path.Ext(rep.ImageKey)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, report.ContentType(ext), data)
}

func (s *Service) handleExport(c *gin.Context) {
	items, err := s.reader.ListAll(c.Request.Context(), exportLimit)
	if err != nil {
		httptransport.RespondFailure(c, http.StatusInternalServerError, err)
		return
	}

	data, err := BuildWorkbook(items)
	if err != nil {
		httptransport.RespondFailure(c, http.StatusInternalServerError, err)
		return
	}

	filename := fmt.Sprintf("screening_reports_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// lookup parses :id and writes the error response itself when it fails.
func (s *Service) lookup(c *gin.Context) (*report.Report, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid report id", nil)
		return nil, false
	}

	rep, err := s.reader.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		httptransport.RespondFailure(c, http.StatusInternalServerError, err)
		return nil, false
	}
	if rep == nil {
		httptransport.RespondError(c, http.StatusNotFound, "report not found", nil)
		return nil, false
	}
	return rep, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}
