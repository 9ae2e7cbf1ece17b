package pubg

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

var gzipMagic = []byte{0x1f, 0x8b}

// DownloadTelemetry streams a telemetry document from the CDN into
// destPath. The file on disk is always gzip: bodies that arrive already
// compressed are written through unchanged, plain JSON bodies are
// compressed on the way down. The write goes to a temp file in the
// destination directory and is renamed into place only on success, so a
// crashed download never leaves a partial file behind.
//
// Telemetry lives on a public CDN, so no credential is leased and no
// Authorization header is sent.
func (c *Client) DownloadTelemetry(ctx context.Context, telemetryURL, destPath string) (int64, error) {
	operationID := fmt.Sprintf("download_telemetry_%d", time.Now().UnixNano())
	startTime := time.Now()

	if telemetryURL == "" {
		return 0, fmt.Errorf("telemetryURL cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating telemetry directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		size, err := c.downloadOnce(ctx, telemetryURL, destPath)
		if err == nil {
			log.Debug().
				Str("operation_id", operationID).
				Str("dest_path", destPath).
				Int64("size_bytes", size).
				Int("attempt", attempt).
				Dur("duration", time.Since(startTime)).
				Msg("DownloadTelemetry completed")
			return size, nil
		}

		lastErr = err
		if IsNotFound(err) || IsMalformed(err) {
			break
		}
		log.Warn().
			Str("operation_id", operationID).
			Int("attempt", attempt).
			Err(err).
			Msg("DownloadTelemetry attempt failed")

		if attempt < c.maxRetries {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	log.Error().
		Str("operation_id", operationID).
		Str("telemetry_url", telemetryURL).
		Err(lastErr).
		Msg("DownloadTelemetry failed after retries")
	return 0, lastErr
}

func (c *Client) downloadOnce(ctx context.Context, telemetryURL, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, telemetryURL, nil)
	if err != nil {
		return 0, &APIError{Kind: MalformedResponse, Message: fmt.Sprintf("creating telemetry request: %v", err)}
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	// Asking for gzip explicitly disables the transport's transparent
	// decompression, so the body arrives exactly as stored on the CDN.
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.telemetryClient.Do(req)
	if err != nil {
		return 0, &APIError{Kind: TransportError, Message: fmt.Sprintf("telemetry request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, parseAPIError(resp.StatusCode, body)
	}

	return writeGzipped(resp.Body, destPath)
}

// writeGzipped copies src into destPath via a temp file, gzipping the
// stream unless it already starts with the gzip magic bytes.
func writeGzipped(src io.Reader, destPath string) (int64, error) {
	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	reader := bufio.NewReaderSize(src, 64*1024)
	head, err := reader.Peek(2)
	if err != nil && err != io.EOF {
		return 0, &APIError{Kind: TransportError, Message: fmt.Sprintf("reading telemetry body: %v", err)}
	}

	if len(head) == 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		if _, err := io.Copy(tmp, reader); err != nil {
			return 0, &APIError{Kind: TransportError, Message: fmt.Sprintf("writing telemetry body: %v", err)}
		}
	} else {
		gz := gzip.NewWriter(tmp)
		if _, err := io.Copy(gz, reader); err != nil {
			return 0, &APIError{Kind: TransportError, Message: fmt.Sprintf("compressing telemetry body: %v", err)}
		}
		if err := gz.Close(); err != nil {
			return 0, fmt.Errorf("finalizing gzip stream: %w", err)
		}
	}

	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("syncing temp file: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, fmt.Errorf("stating temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("moving telemetry into place: %w", err)
	}
	return info.Size(), nil
}
