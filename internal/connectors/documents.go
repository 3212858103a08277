// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxDocumentBytes bounds a single document, inline or on disk.
const MaxDocumentBytes = 20 * 1024 * 1024

// Workspace is a DocumentLoader confined to one directory tree.
type Workspace struct {
	root string
}

// NewWorkspace creates a loader rooted at root. The root is resolved to an
// absolute, symlink-free path.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Workspace{root: abs}, nil
}

// Root returns the resolved workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Load reads ref. Inline data takes precedence over a path.
func (w *Workspace) Load(ctx context.Context, ref DocumentRef, index int) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		raw  []byte
		name = ref.Name
	)
	switch {
	case strings.TrimSpace(ref.Data) != "":
		data, err := decodeInline(ref.Data)
		if err != nil {
			return nil, documentProblem(fmt.Sprintf("Document %d data is not valid base64.", index))
		}
		raw = data
		if name == "" {
			name = fmt.Sprintf("document-%d", index)
		}
	case strings.TrimSpace(ref.Path) != "":
		path, err := w.resolve(ref.Path)
		if err != nil {
			return nil, documentProblem(fmt.Sprintf("Document %d path is outside the workspace.", index))
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return nil, documentProblem(fmt.Sprintf("Document %d not found at path: %s", index, ref.Path))
		}
		if info.Size() > MaxDocumentBytes {
			return nil, documentProblem(fmt.Sprintf("Document %d is larger than %d MB.", index, MaxDocumentBytes>>20))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, Failure("documents", fmt.Sprintf("could not read document %d", index), err)
		}
		raw = data
		if name == "" {
			name = filepath.Base(path)
		}
	default:
		return nil, documentProblem(fmt.Sprintf("Document %d missing path or data.", index))
	}

	if len(raw) > MaxDocumentBytes {
		return nil, documentProblem(fmt.Sprintf("Document %d is larger than %d MB.", index, MaxDocumentBytes>>20))
	}

	text, err := extractText(raw)
	if err != nil {
		return nil, Failure("documents", fmt.Sprintf("could not extract text from document %d", index), err)
	}
	return &Document{Name: name, Text: text}, nil
}

// resolve maps a user path into the workspace. Relative paths are taken
// from the root; the final target, symlinks included, must stay inside it.
func (w *Workspace) resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(w.root, p)
	}
	p = filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return p, nil
}

// decodeInline accepts standard or URL-safe base64, padded or not, with an
// optional data URL prefix.
func decodeInline(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		out, err := enc.DecodeString(data)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// extractText returns the text of a PDF or a UTF-8 text file.
func extractText(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, []byte("%PDF-")) {
		return pdfText(raw)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported document format")
	}
	return strings.TrimSpace(string(raw)), nil
}

// pdfText extracts plain text page by page. The parser panics on some
// malformed files, which is reported as an error.
func pdfText(raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(content)
	}
	return b.String(), nil
}

func documentProblem(prompt string) *MissingFieldError {
	return Missing("pdf_question", "documents", prompt)
}
