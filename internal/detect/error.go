package detect

import "errors"

var (
	ErrUnknownLayout = errors.New("unknown output layout")
	ErrOutputShape   = errors.New("unexpected model output shape")
	ErrClosed        = errors.New("detector closed")
	ErrDecodeImage   = errors.New("decode image")
)
