package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/financials-mapper/constants"
)

// MaxVisionPages is the synchronous BatchAnnotateFiles page limit.
const MaxVisionPages = 5

// VisionEngine recognizes documents through Google Cloud Vision DOCUMENT_TEXT_DETECTION.
type VisionEngine struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
	logger  *slog.Logger
}

// NewVisionEngine dials Cloud Vision. credentials may be a file path or empty for ADC.
func NewVisionEngine(ctx context.Context, cfg Config, credentials string, logger *slog.Logger) (*VisionEngine, error) {
	var opts []option.ClientOption
	if credentials != "" {
		if strings.HasPrefix(strings.TrimSpace(credentials), "{") {
			opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
		} else {
			opts = append(opts, option.WithCredentialsFile(credentials))
		}
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, NewError("vision.dial", ErrMissingCredentials, err.Error())
	}
	cfg = cfg.withDefaults()
	return &VisionEngine{client: client, timeout: cfg.Timeout, logger: nopLogger(logger)}, nil
}

func (v *VisionEngine) Name() string { return "vision" }

func (v *VisionEngine) Recognize(ctx context.Context, in Input) (*Result, error) {
	if err := validInput(in); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	start := time.Now()

	var (
		pages []*visionpb.AnnotateImageResponse
		err   error
	)
	if in.MIMEType == constants.MIMEPDF {
		pages, err = v.annotateFile(ctx, in)
	} else {
		pages, err = v.annotateImage(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	res, err := collectVisionPages(pages)
	if err != nil {
		return nil, err
	}
	res.Method = v.Name()
	res.Duration = time.Since(start)
	v.logger.Info("ocr complete",
		"engine", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (v *VisionEngine) annotateFile(ctx context.Context, in Input) ([]*visionpb.AnnotateImageResponse, error) {
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  in.Data,
				MimeType: constants.MIMEPDF,
			},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			Pages:    []int32{1, 2, 3, 4, 5},
		}},
	}
	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, WrapError("vision.annotate_files", err, in.Name)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, NewError("vision.annotate_files", ErrEmptyText, "no response")
	}
	fileResp := resp.GetResponses()[0]
	if e := fileResp.GetError(); e != nil {
		return nil, NewError("vision.annotate_files", fmt.Errorf("%s", e.GetMessage()), in.Name)
	}
	return fileResp.GetResponses(), nil
}

func (v *VisionEngine) annotateImage(ctx context.Context, in Input) ([]*visionpb.AnnotateImageResponse, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: in.Data},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapError("vision.annotate_images", err, in.Name)
	}
	return resp.GetResponses(), nil
}

func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// collectVisionPages joins per-page annotations into one Result.
func collectVisionPages(pages []*visionpb.AnnotateImageResponse) (*Result, error) {
	if len(pages) == 0 {
		return nil, NewError("vision.collect", ErrNoPages, "")
	}
	if len(pages) > MaxVisionPages {
		return nil, NewError("vision.collect", ErrTooManyPages, fmt.Sprintf("%d pages", len(pages)))
	}

	texts := make([]string, 0, len(pages))
	var confSum float32
	var confN int
	lang := ""
	for i, page := range pages {
		if e := page.GetError(); e != nil {
			return nil, NewError("vision.collect", fmt.Errorf("%s", e.GetMessage()), fmt.Sprintf("page %d", i+1))
		}
		full := page.GetFullTextAnnotation()
		if full == nil {
			continue
		}
		texts = append(texts, full.GetText())
		for _, p := range full.GetPages() {
			if p.GetConfidence() > 0 {
				confSum += p.GetConfidence()
				confN++
			}
			if lang == "" {
				for _, dl := range p.GetProperty().GetDetectedLanguages() {
					if dl.GetLanguageCode() != "" {
						lang = dl.GetLanguageCode()
						break
					}
				}
			}
		}
	}

	text := Normalize(strings.Join(texts, pageSeparator))
	if text == "" {
		return nil, NewError("vision.collect", ErrEmptyText, "")
	}
	engineConf := 0.0
	if confN > 0 {
		engineConf = float64(confSum / float32(confN))
	}
	return &Result{
		Text:       text,
		Pages:      len(pages),
		Language:   lang,
		Confidence: blend(engineConf, heuristicConfidence(text)),
	}, nil
}
