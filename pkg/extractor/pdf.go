package extractor

import "context"

type pdfExtractor struct {
	bin    string
	runner Runner
}

func (p *pdfExtractor) Extract(ctx context.Context, path string) (string, error) {
	out, err := p.runner.Run(ctx, p.bin, "-layout", path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
