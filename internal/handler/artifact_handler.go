package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
	"github.com/noah-isme/enrollment-pipeline/pkg/response"
)

type artifactCatalog interface {
	List() ([]models.Artifact, error)
	Resolve(token string) (string, string, error)
}

type artifactLink struct {
	models.Artifact
	URL string `json:"url"`
}

// ArtifactHandler lists generated files and serves signed downloads.
type ArtifactHandler struct {
	artifacts artifactCatalog
	basePath  string
}

// NewArtifactHandler constructs ArtifactHandler. basePath is the route group the download route lives under.
func NewArtifactHandler(artifacts artifactCatalog, basePath string) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts, basePath: strings.TrimRight(basePath, "/")}
}

// List godoc
// @Summary List generated artifacts with signed download links
// @Tags Artifacts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /artifacts [get]
func (h *ArtifactHandler) List(c *gin.Context) {
	if h.artifacts == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	artifacts, err := h.artifacts.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	links := make([]artifactLink, 0, len(artifacts))
	for _, a := range artifacts {
		links = append(links, artifactLink{Artifact: a, URL: h.basePath + "/artifacts/" + a.Token})
	}
	response.JSON(c, http.StatusOK, links, nil)
}

// Download godoc
// @Summary Download an artifact through a signed link
// @Tags Artifacts
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /artifacts/{token} [get]
func (h *ArtifactHandler) Download(c *gin.Context) {
	if h.artifacts == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	path, name, err := h.artifacts.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, path, name)
}
