package upload

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/uploads", h.UploadFile)
	api.POST("/uploads/base64", h.UploadBase64)
	api.DELETE("/uploads/:fileName", h.DeleteFile)
}

// UploadFile accepts a multipart form with the image in the "file" field.
func (h *Handler) UploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required").SetInternal(err)
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read uploaded file").SetInternal(err)
	}
	defer src.Close()

	res, err := h.svc.UploadFile(c.Request().Context(), file.Filename, src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

type base64Request struct {
	Image  string `json:"image"`
	Prefix string `json:"prefix"`
}

func (h *Handler) UploadBase64(c echo.Context) error {
	var req base64Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload payload").SetInternal(err)
	}
	res, err := h.svc.SaveBase64Image(c.Request().Context(), req.Image, req.Prefix)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) DeleteFile(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("fileName")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
