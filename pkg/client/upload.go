package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
)

// File is binary content sent as the multipart "file" part.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload POSTs file and fields as multipart/form-data to path. Field parts are
// written in key order. Uploads are not retried.
func (c *Client) Upload(ctx context.Context, path string, file File, fields map[string]any) (Item, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := file.Name
	if filename == "" {
		filename = "file"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := writer.WriteField(k, formatValue(fields[k])); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(path, nil), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug().
		Str("endpoint", path).
		Str("filename", filename).
		Int("size", len(file.Data)).
		Msg("Uploading file")

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}

	if item, ok := resp.(map[string]any); ok {
		return item, nil
	}
	return Item{"data": resp}, nil
}
