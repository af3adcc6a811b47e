package automation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintHTMLToPDF(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a browser")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no local Chrome or Chromium found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var buf bytes.Buffer
	require.NoError(t, PrintHTMLToPDF(ctx, "<html><body><h1>Scan report</h1></body></html>", &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
