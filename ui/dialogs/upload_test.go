package dialogs

import (
	"testing"
	"time"

	"blue-scan/internal/viewport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTL(t *testing.T) {
	x, y, err := parseTL("  12, -40 ")
	require.NoError(t, err)
	assert.Equal(t, 12, x)
	assert.Equal(t, -40, y)

	for _, bad := range []string{"", "12", "1.5,2", "a,b", "1,2,3"} {
		_, _, err := parseTL(bad)
		assert.ErrorIs(t, err, errNoTL, bad)
	}
}

func TestWorldTL(t *testing.T) {
	x, y := worldTL(viewport.At(37, 5), 100, -20)
	assert.Equal(t, 137, x)
	assert.Equal(t, -15, y)
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "Art 1700000000000", defaultName(time.UnixMilli(1700000000000)))
}

func TestTemplateDataPrefersDetectedOverlay(t *testing.T) {
	d := &UploadDialog{}
	_, err := d.templateData()
	assert.ErrorIs(t, err, errNoTemplate)

	d.filePath = "/nonexistent.png"
	d.overlayData = "data:image/png;base64,AAAA"
	got, err := d.templateData()
	require.NoError(t, err)
	assert.Equal(t, d.overlayData, got)
}
