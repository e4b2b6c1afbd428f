package ocr

import "errors"

// ErrNoText is returned when OCR finds no usable text in a document.
var ErrNoText = errors.New("no text detected")

// ErrUnsupported is returned for documents OCR cannot read (e.g. PDF).
var ErrUnsupported = errors.New("unsupported document type")
