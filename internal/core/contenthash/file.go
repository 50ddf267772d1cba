package contenthash

import (
	"context"
	"fmt"
	"io"
	"os"
)

// readBufferSize is the chunk size for streaming reads
const readBufferSize = 64 * 1024

// HashReader streams a reader through a Hasher and returns the
// lowercase hex content hash. Memory use is constant regardless of
// input length.
func HashReader(ctx context.Context, r io.Reader) (string, error) {
	h := New()
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", fmt.Errorf("hash write error: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return h.HexDigest()
}

// HashFile returns the lowercase hex content hash of a local file
func HashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return HashReader(ctx, f)
}

// VerifyFile reports whether the local file's content hash equals the
// expected lowercase hex hash
func VerifyFile(ctx context.Context, path, expected string) (bool, error) {
	got, err := HashFile(ctx, path)
	if err != nil {
		return false, err
	}
	return got == expected, nil
}
