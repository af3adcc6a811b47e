// Package automation drives a headless browser to print the shift report to PDF.
package automation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// PrintHTMLToPDF loads page into a fresh headless browser and writes the
// printed PDF to w.
func PrintHTMLToPDF(ctx context.Context, page string, w io.Writer) error {
	// Leakless(false) avoids antivirus false positives on the helper binary.
	l := launcher.New().
		Context(ctx).
		Headless(true).
		Leakless(false)
	defer l.Cleanup()

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	p, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	if err := p.SetDocumentContent(page); err != nil {
		return fmt.Errorf("failed to load report: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for report: %w", err)
	}

	pdf, err := p.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
	})
	if err != nil {
		return fmt.Errorf("failed to print PDF: %w", err)
	}
	if _, err := io.Copy(w, pdf); err != nil {
		return fmt.Errorf("failed to read PDF: %w", err)
	}
	return nil
}

// PrintHTMLToFile is PrintHTMLToPDF writing to path, creating its directory.
func PrintHTMLToFile(ctx context.Context, page, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output folder: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := PrintHTMLToPDF(ctx, page, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
