package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `{"features":{"asymmetry":0.31,"pigmentNetwork":0.5,"dotsGlobules":0.1,"streaks":0,"regressionAreas":0.2,"blueWhitishVeil":0.05,"colorWhite":0,"colorRed":1,"colorLightBrown":true,"colorDarkBrown":false,"colorBlueGray":0,"colorBlack":0},"classification":{"result":"melanoma","confidence":0.87}}`

// setup writes a JPEG and a shell script standing in for the classifier.
func setup(t *testing.T, script string, timeout time.Duration) (*Bridge, string, string) {
	t.Helper()
	dir := t.TempDir()
	img := filepath.Join(dir, "lesion.jpg")
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(32, 32, color.NRGBA{150, 90, 60, 255}), imaging.JPEG))
	require.NoError(t, os.WriteFile(img, buf.Bytes(), 0o644))

	sh := filepath.Join(dir, "classify.sh")
	require.NoError(t, os.WriteFile(sh, []byte("#!/bin/sh\n"+script+"\n"), 0o755))

	tempDir := filepath.Join(dir, "temp")
	b := New(Config{
		Command:     "/bin/sh",
		Script:      sh,
		Timeout:     timeout,
		OutputGrace: time.Second,
		TempDir:     tempDir,
	})
	return b, img, tempDir
}

func assertNoLeftovers(t *testing.T, tempDir string) {
	t.Helper()
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "output file must be removed")
}

func TestClassifySuccess(t *testing.T) {
	b, img, tempDir := setup(t, `[ -f "$1" ] || exit 9
printf '%s' '`+sampleOutput+`' > "$2"`, 5*time.Second)

	res, err := b.Classify(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "melanoma", res.Classification.Result)
	assert.InDelta(t, 0.87, res.Classification.Confidence, 1e-9)
	assert.InDelta(t, 0.31, res.Features.Asymmetry, 1e-9)
	assert.True(t, bool(res.Features.ColorRed))
	assert.True(t, bool(res.Features.ColorLightBrown))
	assert.False(t, bool(res.Features.ColorBlack))

	m := res.Features.Model()
	assert.True(t, m.ColorRed)
	assert.InDelta(t, 0.5, m.PigmentNetwork, 1e-9)
	assertNoLeftovers(t, tempDir)
}

func TestClassifyOutputWrittenAfterExit(t *testing.T) {
	b, img, tempDir := setup(t, `( sleep 0.3; printf '%s' '`+sampleOutput+`' > "$2.part"; mv "$2.part" "$2" ) >/dev/null 2>&1 &
exit 0`, 5*time.Second)

	res, err := b.Classify(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "melanoma", res.Classification.Result)
	assertNoLeftovers(t, tempDir)
}

func TestClassifyProcessFailure(t *testing.T) {
	b, img, _ := setup(t, `echo "model not found" >&2
exit 3`, 5*time.Second)

	_, err := b.Classify(context.Background(), img)
	assert.ErrorIs(t, err, ErrProcessFailed)
	assert.ErrorIs(t, err, ErrProcessing)
}

func TestClassifyMissingCommand(t *testing.T) {
	b, img, _ := setup(t, "exit 0", time.Second)
	b.cfg.Command = filepath.Join(t.TempDir(), "missing")

	_, err := b.Classify(context.Background(), img)
	assert.ErrorIs(t, err, ErrProcessFailed)
}

func TestClassifyNoOutput(t *testing.T) {
	b, img, _ := setup(t, "exit 0", 5*time.Second)
	b.cfg.OutputGrace = 100 * time.Millisecond

	_, err := b.Classify(context.Background(), img)
	assert.ErrorIs(t, err, ErrNoOutput)
	assert.ErrorIs(t, err, ErrProcessing)
}

func TestClassifyMalformedOutput(t *testing.T) {
	b, img, tempDir := setup(t, `echo 'not json' > "$2"`, 5*time.Second)

	_, err := b.Classify(context.Background(), img)
	assert.ErrorIs(t, err, ErrBadOutput)
	assertNoLeftovers(t, tempDir)
}

func TestClassifyTimeout(t *testing.T) {
	b, img, _ := setup(t, "exec sleep 5", 200*time.Millisecond)

	start := time.Now()
	_, err := b.Classify(context.Background(), img)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestClassifyUndecodableImage(t *testing.T) {
	b, _, tempDir := setup(t, `touch "$2.ran"`, 5*time.Second)
	bad := filepath.Join(t.TempDir(), "fake.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not an image"), 0o644))

	_, err := b.Classify(context.Background(), bad)
	assert.ErrorIs(t, err, ErrUndecodable)
	_, statErr := os.Stat(tempDir)
	assert.True(t, os.IsNotExist(statErr), "process must not start")
}

// 1x1 lossless webp.
const webpPixel = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func TestClassifyWebp(t *testing.T) {
	b, _, tempDir := setup(t, `touch "$1.ran"
printf '%s' '`+sampleOutput+`' > "$2"`, 5*time.Second)
	raw, err := base64.StdEncoding.DecodeString(webpPixel)
	require.NoError(t, err)
	img := filepath.Join(t.TempDir(), "lesion.webp")
	require.NoError(t, os.WriteFile(img, raw, 0o644))

	bounds, err := preflight(img)
	require.NoError(t, err)
	assert.Equal(t, 1, bounds.Dx())
	assert.Equal(t, 1, bounds.Dy())

	res, err := b.Classify(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "melanoma", res.Classification.Result)
	assert.FileExists(t, img+".ran")
	assertNoLeftovers(t, tempDir)
}

func TestParseResult(t *testing.T) {
	_, err := parseResult([]byte(`{"features":{}}`))
	assert.ErrorIs(t, err, ErrBadOutput)

	_, err = parseResult([]byte(`{"features":{},"classification":{"result":" ","confidence":0.5}}`))
	assert.ErrorIs(t, err, ErrBadOutput)

	_, err = parseResult([]byte(`{"features":{"colorRed":"yes"},"classification":{"result":"nevus","confidence":0.5}}`))
	assert.ErrorIs(t, err, ErrBadOutput)

	res, err := parseResult([]byte(`{"features":{"colorRed":1.0,"colorBlack":null,"colorWhite":2},"classification":{"result":"nevus","confidence":0.5}}`))
	require.NoError(t, err)
	assert.True(t, bool(res.Features.ColorRed))
	assert.False(t, bool(res.Features.ColorBlack))
	assert.True(t, bool(res.Features.ColorWhite))
}
