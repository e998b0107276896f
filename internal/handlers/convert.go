package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"convflow/api/internal/convert"
	"convflow/api/internal/middleware"
	"convflow/api/internal/service"
)

type convertFileResponse struct {
	Filename string `json:"filename"`
	FileType string `json:"fileType"`
	Markdown string `json:"markdown"`
	Success  bool   `json:"success"`
	AIUsed   bool   `json:"aiUsed"`
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func respondConvertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, convert.ErrUnsupportedType), errors.Is(err, service.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrFileTooLarge), errors.Is(err, service.ErrBatchTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	default:
		respondServiceError(c, err)
	}
}

func (h HandlerSet) ConvertFile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}

	data, err := readUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}

	result, err := h.converts.ConvertFile(c.Request.Context(), user, service.FileInput{
		Filename: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		respondConvertError(c, err)
		return
	}

	c.JSON(http.StatusOK, convertFileResponse{
		Filename: result.Filename,
		FileType: result.FileType,
		Markdown: result.Markdown,
		Success:  true,
		AIUsed:   result.AIUsed,
	})
}

func (h HandlerSet) ConvertBatch(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	inputs := make([]service.FileInput, 0, len(headers))
	for _, header := range headers {
		data, err := readUpload(header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed: " + header.Filename})
			return
		}
		inputs = append(inputs, service.FileInput{
			Filename: header.Filename,
			Data:     data,
		})
	}

	batch := h.converts.ConvertBatch(c.Request.Context(), user, inputs)

	results := make(map[string]convertFileResponse, len(batch.Results))
	for name, result := range batch.Results {
		results[name] = convertFileResponse{
			Filename: result.Filename,
			FileType: result.FileType,
			Markdown: result.Markdown,
			Success:  true,
			AIUsed:   result.AIUsed,
		}
	}

	resp := gin.H{
		"results":               results,
		"totalFiles":            len(headers),
		"successfulConversions": len(batch.Results),
		"failedConversions":     len(batch.Errors),
	}
	if len(batch.Errors) > 0 {
		resp["errors"] = batch.Errors
	}

	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) SupportedFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"supportedFormats": convert.SupportedExtensions,
		"totalSupported":   len(convert.SupportedExtensions),
	})
}
