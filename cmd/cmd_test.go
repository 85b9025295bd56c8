package cmd

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/chaos-io/removebg/removebg"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRect(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  [][2]float64
		ok    bool
	}{
		{name: "合法", value: "10,20,30,40", want: [][2]float64{{10, 20}, {40, 20}, {40, 60}, {10, 60}}, ok: true},
		{name: "带空格和小数", value: " 1.5, 2 ,3,4 ", want: [][2]float64{{1.5, 2}, {4.5, 2}, {4.5, 6}, {1.5, 6}}, ok: true},
		{name: "数量不对", value: "1,2,3"},
		{name: "不是数字", value: "a,b,c,d"},
		{name: "宽度为 0", value: "0,0,0,10"},
		{name: "负坐标", value: "-1,0,10,10"},
		{name: "空字符串", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRect(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceRequest(t *testing.T) {
	req := sourceRequest("https://example.com/a.png")
	assert.Equal(t, "https://example.com/a.png", req.URL)
	assert.Empty(t, req.Path)
	assert.Equal(t, removebg.FormatPNG, req.ResponseFormat)

	req = sourceRequest("a.png")
	assert.True(t, filepath.IsAbs(req.Path))
	assert.Empty(t, req.URL)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&options{})
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	missing := filepath.Join(t.TempDir(), ksuid.New().String()+".yaml")
	root.SetArgs(append(args, "--config", missing))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return -1
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("model:\n  backend: remote\n  sessions: 0\n"), 0o644))

	root := newRootCmd(&options{})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"a.png", "b.png", "--config", p})
	err := root.Execute()
	assert.Equal(t, exitUsage, exitCode(err))
	assert.ErrorContains(t, err, "model.sessions must be positive")
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: "+Version)
}

func TestRootCmd_Usage(t *testing.T) {
	_, stderr, err := execute(t, "only-one-arg")
	assert.Equal(t, exitUsage, exitCode(err))
	assert.Contains(t, stderr, "Usage: removebg")
}

func TestRootCmd_PipelineError(t *testing.T) {
	t.Setenv("REMOVEBG_MODEL_BACKEND", "remote")

	_, stderr, err := execute(t, filepath.Join(t.TempDir(), "missing.png"), filepath.Join(t.TempDir(), "out.png"))
	assert.Equal(t, exitPipeline, exitCode(err))
	assert.Contains(t, stderr, "Error: code=110")
}

func maskServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mask := image.NewGray(image.Rect(0, 0, 8, 8))
		for y := 2; y < 6; y++ {
			for x := 2; x < 6; x++ {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
		_ = png.Encode(w, mask)
	}))
}

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	src := filepath.Join(dir, "src.png")
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0o644))
	return src
}

func TestRootCmd_Remove(t *testing.T) {
	server := maskServer(t)
	defer server.Close()
	t.Setenv("REMOVEBG_MODEL_BACKEND", "remote")
	t.Setenv("REMOVEBG_MODEL_REMOTE_URL", server.URL)

	dir := t.TempDir()
	src := writeSource(t, dir)
	target := filepath.Join(dir, "out.png")

	out, _, err := execute(t, src, target, "--rect=0,0,8,8")
	require.NoError(t, err)
	assert.Contains(t, out, "Output: "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
}

func TestSunshineCmd(t *testing.T) {
	server := maskServer(t)
	defer server.Close()
	t.Setenv("REMOVEBG_MODEL_BACKEND", "remote")
	t.Setenv("REMOVEBG_MODEL_REMOTE_URL", server.URL)

	dir := t.TempDir()
	src := writeSource(t, dir)
	outDir := filepath.Join(dir, "frames")

	_, _, err := execute(t, "sunshine", src, outDir, "--keep-bg")
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		assert.FileExists(t, filepath.Join(outDir, "sunshine-"+string(rune('0'+i))+".png"))
	}

	_, _, err = execute(t, "sunshine", src)
	assert.Equal(t, exitUsage, exitCode(err))
}
