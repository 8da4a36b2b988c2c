package ingest

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// extractTextFromMessage extracts the text content from an email message.
// For multipart messages it collects the text/plain parts.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		return readBody(msg)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return readBody(msg)
	}

	boundary, ok := params["boundary"]
	if !ok {
		return readBody(msg)
	}

	mr := multipart.NewReader(msg.Body, boundary)

	var textContent bytes.Buffer
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Return whatever text we collected before the malformed part
			if textContent.Len() > 0 {
				return textContent.String(), nil
			}
			return readBody(msg)
		}

		partContentType := strings.ToLower(part.Header.Get("Content-Type"))
		if strings.Contains(partContentType, "text/plain") {
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			textContent.Write(partBytes)
			textContent.WriteString("\n")
		}
		// Nested multiparts and attachments are skipped
	}

	if textContent.Len() > 0 {
		return textContent.String(), nil
	}

	return "[No text content found in multipart message]", nil
}

func readBody(msg *mail.Message) (string, error) {
	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		return "", err
	}
	return string(bodyBytes), nil
}
