package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"convflow/api/internal/ai"
	"convflow/api/internal/config"
	"convflow/api/internal/convert"
	"convflow/api/internal/ids"
	"convflow/api/internal/models"
)

var (
	ErrFileTooLarge  = errors.New("file too large")
	ErrBatchTooLarge = errors.New("total upload size too large")
	ErrEmptyFile     = errors.New("file is empty")
)

// DocumentArchive is the supplementary store for rendered output; a nil or
// failing archive never fails a conversion.
type DocumentArchive interface {
	ArchiveDocument(ctx context.Context, userID, conversionID, filename, markdown string) (string, error)
}

type ConvertService struct {
	engine    convert.Engine
	annotator ai.Annotator
	usage     *UsageService
	archive   DocumentArchive
	cfg       *config.AppConfig
	log       zerolog.Logger
}

func NewConvertService(
	engine convert.Engine,
	annotator ai.Annotator,
	usage *UsageService,
	archive DocumentArchive,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *ConvertService {
	return &ConvertService{
		engine:    engine,
		annotator: annotator,
		usage:     usage,
		archive:   archive,
		cfg:       cfg,
		log:       log,
	}
}

type FileInput struct {
	Filename string
	Data     []byte
}

type FileResult struct {
	Filename string
	FileType string
	Markdown string
	AIUsed   bool
}

// ConvertFile runs one conversion attempt for the user: admission check,
// engine call, optional AI enrichment for image/audio files, best-effort
// archival, and exactly one usage-ledger record regardless of how the
// attempt ends. Validation failures before admission are not attempts and
// are not recorded.
func (s *ConvertService) ConvertFile(ctx context.Context, user models.User, input FileInput) (FileResult, error) {
	ext := convert.Ext(input.Filename)
	if !convert.IsSupported(ext) {
		return FileResult{}, fmt.Errorf("%w: %s", convert.ErrUnsupportedType, ext)
	}
	if len(input.Data) == 0 {
		return FileResult{}, ErrEmptyFile
	}
	if int64(len(input.Data)) > s.cfg.Convert.MaxFileSize {
		return FileResult{}, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(input.Data))
	}

	if err := s.usage.CheckAndAdmit(ctx, user.ID); err != nil {
		return FileResult{}, err
	}

	conversionID := ids.New()
	result, convErr := s.runConversion(ctx, input, ext)

	outcome := OutcomeInput{
		ID:       conversionID,
		UserID:   user.ID,
		Filename: input.Filename,
		FileType: ext,
		FileSize: int64(len(input.Data)),
		Status:   models.ConversionCompleted,
	}
	if convErr != nil {
		outcome.Status = models.ConversionFailed
		outcome.ErrorMessage = convErr.Error()
	}
	s.usage.RecordOutcome(ctx, outcome)

	if convErr != nil {
		return FileResult{}, convErr
	}

	s.archiveDocument(ctx, user.ID, conversionID, result)
	return result, nil
}

func (s *ConvertService) runConversion(ctx context.Context, input FileInput, ext string) (FileResult, error) {
	markdown, err := s.engine.Convert(ctx, input.Filename, input.Data)
	if err != nil {
		return FileResult{}, fmt.Errorf("convert %s: %w", input.Filename, err)
	}

	result := FileResult{
		Filename: input.Filename,
		FileType: convert.Describe(ext),
		Markdown: markdown,
	}

	switch {
	case convert.IsImage(ext):
		analysis, err := s.annotator.AnnotateImage(ctx, input.Data)
		if err != nil {
			s.log.Warn().Err(err).Str("filename", input.Filename).Msg("image annotation failed")
			result.Markdown += "\n\n## Image Analysis\nAnalysis not available"
		} else {
			result.Markdown += "\n\n" + analysis
			result.AIUsed = true
		}
	case convert.IsAudio(ext):
		transcription, err := s.annotator.TranscribeAudio(ctx, input.Data)
		if err != nil {
			s.log.Warn().Err(err).Str("filename", input.Filename).Msg("audio transcription failed")
			result.Markdown += "\n\n## Audio Transcription\nTranscription not available"
		} else {
			result.Markdown += "\n\n" + transcription
			result.AIUsed = true
		}
	}

	return result, nil
}

// archiveDocument stores the rendered markdown; failures are logged only.
func (s *ConvertService) archiveDocument(ctx context.Context, userID, conversionID string, result FileResult) {
	if s.archive == nil {
		return
	}
	key, err := s.archive.ArchiveDocument(ctx, userID, conversionID, result.Filename, result.Markdown)
	if err != nil {
		s.log.Warn().Err(err).Str("filename", result.Filename).Msg("archive document failed")
		return
	}
	s.log.Debug().Str("object_key", key).Msg("document archived")
}

type BatchResult struct {
	Results map[string]FileResult
	Errors  map[string]string
}

// ConvertBatch converts several files in one request. Each file is
// admitted and recorded individually; one bad file never sinks the batch.
func (s *ConvertService) ConvertBatch(ctx context.Context, user models.User, inputs []FileInput) BatchResult {
	batch := BatchResult{
		Results: make(map[string]FileResult, len(inputs)),
		Errors:  make(map[string]string),
	}

	var totalSize int64
	for _, input := range inputs {
		name := input.Filename
		if name == "" {
			batch.Errors[fmt.Sprintf("unnamed_file_%d", len(batch.Errors))] = "file has no name"
			continue
		}

		totalSize += int64(len(input.Data))
		if totalSize > s.cfg.Convert.MaxBatchSize {
			batch.Errors[name] = ErrBatchTooLarge.Error()
			continue
		}

		result, err := s.ConvertFile(ctx, user, input)
		if err != nil {
			batch.Errors[name] = err.Error()
			continue
		}
		batch.Results[name] = result
	}

	return batch
}
