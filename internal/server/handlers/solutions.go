// Package handlers implements the dev server JSON endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	apierrors "github.com/avisek/frontend-mentor-solutions/internal/errors"
	"github.com/avisek/frontend-mentor-solutions/internal/manifest"
	"github.com/avisek/frontend-mentor-solutions/internal/registry"
)

// imageExts lists the file extensions reported as design images.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
	".avif": true,
}

// SolutionHandler serves the registry and per-solution metadata.
type SolutionHandler struct {
	store *registry.Store
	// base is the public base path, in "/x/" form.
	base string
	// designDir is the per-solution directory of reference images.
	designDir string
}

// NewSolutionHandler creates a SolutionHandler. The solutions directory on
// disk is taken from store.
func NewSolutionHandler(store *registry.Store, base, designDir string) *SolutionHandler {
	return &SolutionHandler{store: store, base: base, designDir: designDir}
}

// RegistryRequest is the request type for the registry document (empty).
type RegistryRequest struct{}

// Registry returns the resolved registry as indented JSON.
func (h *SolutionHandler) Registry(ctx context.Context, req RegistryRequest) (*json.RawMessage, error) {
	b, err := h.store.Registry().IndentedJSON()
	if err != nil {
		return nil, apierrors.InternalWithError("failed to encode registry", err)
	}
	raw := json.RawMessage(append(b, '\n'))
	return &raw, nil
}

// SchemaRequest is the request type for the manifest schema (empty).
type SchemaRequest struct{}

// Schema returns the JSON Schema of the manifest.
func (h *SolutionHandler) Schema(ctx context.Context, req SchemaRequest) (*json.RawMessage, error) {
	b, err := manifest.SchemaJSON()
	if err != nil {
		return nil, apierrors.InternalWithError("failed to encode schema", err)
	}
	raw := json.RawMessage(b)
	return &raw, nil
}

// DesignImagesRequest selects the solution to list.
type DesignImagesRequest struct {
	ID string `query:"id"`
}

// DesignImagesResponse lists the reference images of one solution.
type DesignImagesResponse struct {
	ID string `json:"id"`
	// Images are public URLs, sorted by file name.
	Images []string `json:"images"`
}

// DesignImages lists the image files in solutions/<id>/design/. A solution
// without the directory has no images.
func (h *SolutionHandler) DesignImages(ctx context.Context, req DesignImagesRequest) (*DesignImagesResponse, error) {
	if req.ID == "" {
		return nil, apierrors.MissingField("id")
	}
	if err := manifest.ValidateID(req.ID); err != nil {
		return nil, apierrors.BadRequest(err.Error())
	}
	s, ok := h.store.Registry().Get(req.ID)
	if !ok || !s.HasDir {
		return nil, apierrors.SolutionNotFound(req.ID)
	}
	resp := &DesignImagesResponse{ID: req.ID, Images: []string{}}
	entries, err := os.ReadDir(filepath.Join(h.store.SolutionsDir(), req.ID, h.designDir))
	if err != nil {
		if os.IsNotExist(err) {
			return resp, nil
		}
		return nil, apierrors.InternalWithError("failed to list design images", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(path.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	for _, n := range names {
		resp.Images = append(resp.Images, path.Join(h.base, req.ID, h.designDir, n))
	}
	return resp, nil
}
