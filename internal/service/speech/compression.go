package speech

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// CompressPayload 按 header 声明的方法压缩 payload
func CompressPayload(data []byte, method CompressionMethod) ([]byte, error) {
	switch method {
	case NoCompression:
		return data, nil
	case GzipCompression:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("gzip write failed: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("gzip close failed: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", method)
	}
}

// DecompressPayload 解压缩payload
func DecompressPayload(data []byte, method CompressionMethod) ([]byte, error) {
	switch method {
	case NoCompression:
		return data, nil
	case GzipCompression:
		if len(data) == 0 {
			return nil, nil
		}
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader creation failed: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip read failed: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", method)
	}
}
