// Package cloudwriter buffers an object in memory and uploads it on Close.
package cloudwriter

import (
	"context"
	"io"
)

// CloudWriter collects an object's bytes; nothing is stored remotely until Close returns nil.
type CloudWriter interface {
	io.WriteCloser
}

type CloudWriterFactory interface {
	// NewWriter starts an object at bucket/objectPath. The upload on Close runs under ctx.
	NewWriter(ctx context.Context, bucket, objectPath string) (CloudWriter, error)
}
