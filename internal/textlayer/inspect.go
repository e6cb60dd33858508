package textlayer

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Info is the structural summary of a PDF.
type Info struct {
	PageCount int
	Version   string
	Encrypted bool
}

// Inspect reads the PDF cross-reference structure with relaxed validation.
func Inspect(data []byte) (info Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			info, err = Info{}, fmt.Errorf("read pdf context: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, fmt.Errorf("read pdf context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return Info{}, fmt.Errorf("ensure page count: %w", err)
	}
	info = Info{PageCount: ctx.PageCount, Encrypted: ctx.Encrypt != nil}
	if ctx.HeaderVersion != nil {
		info.Version = ctx.HeaderVersion.String()
	}
	return info, nil
}
