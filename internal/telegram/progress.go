package telegram

import (
	"context"
	"io"

	"github.com/gotd/td/telegram/uploader"
)

// progressWriter counts bytes written and reports them.
type progressWriter struct {
	w     io.Writer
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.fn != nil {
		p.fn(p.done, p.total)
	}
	return n, err
}

// uploadProgress adapts a ProgressFunc to the uploader callback.
type uploadProgress ProgressFunc

func (f uploadProgress) Chunk(_ context.Context, state uploader.ProgressState) error {
	f(state.Uploaded, state.Total)
	return nil
}
