package avatar

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	return NewService(t.TempDir(), logger), hook
}

func image(name, contentType string, body []byte) *File {
	return &File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Content:     bytes.NewReader(body),
	}
}

func TestValidate(t *testing.T) {
	svc, _ := newTestService(t)
	body := []byte("GIF89a")

	assert.True(t, svc.Validate(image("a.png", "image/png", body)))
	assert.True(t, svc.Validate(image("a.JPEG", "image/jpeg", body)))
	assert.True(t, svc.Validate(image("a.jpg", "image/jpg", body)))
	assert.True(t, svc.Validate(image("a.gif", "IMAGE/GIF", body)))
	assert.True(t, svc.Validate(&File{Name: "a.png", ContentType: "image/png", Size: MaxSize, Content: bytes.NewReader(nil)}))

	cases := map[string]*File{
		"nil":          nil,
		"no content":   {Name: "a.png", ContentType: "image/png", Size: 10},
		"empty":        image("a.png", "image/png", nil),
		"too large":    {Name: "a.png", ContentType: "image/png", Size: MaxSize + 1},
		"extension":    image("a.bmp", "image/png", body),
		"no extension": image("png", "image/png", body),
		"content type": image("a.png", "application/octet-stream", body),
		"svg":          image("a.svg", "image/svg+xml", body),
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, svc.Validate(f))
		})
	}
}

func TestUpload(t *testing.T) {
	svc, hook := newTestService(t)
	body := []byte("\x89PNG fake image")

	public, err := svc.Upload(image("Me.PNG", "image/png", body), "user-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(public, PublicPrefix+"user-1_"), public)
	assert.True(t, strings.HasSuffix(public, ".png"), public)

	got, err := os.ReadFile(filepath.Join(svc.Dir(), filepath.Base(public)))
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, "avatar uploaded", hook.LastEntry().Message)

	again, err := svc.Upload(image("Me.PNG", "image/png", body), "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, public, again)
}

func TestUploadRejectsInvalidFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(image("a.exe", "image/png", []byte("x")), "user-1")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	_, err = svc.Upload(nil, "user-1")
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	_, err = svc.Upload(&File{Name: "a.png", ContentType: "image/png", Size: 10}, "user-1")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
	assert.Equal(t, []string{"no file provided"}, apperr.Details(err))

	_, statErr := os.Stat(svc.Dir())
	assert.True(t, os.IsNotExist(statErr), "nothing should be written")
}

func TestUploadCatchesUnderstatedSize(t *testing.T) {
	svc, _ := newTestService(t)
	f := &File{
		Name:        "a.png",
		ContentType: "image/png",
		Size:        10,
		Content:     bytes.NewReader(make([]byte, MaxSize+10)),
	}

	_, err := svc.Upload(f, "user-1")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	entries, err := os.ReadDir(svc.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDelete(t *testing.T) {
	svc, hook := newTestService(t)
	public, err := svc.Upload(image("a.gif", "image/gif", []byte("GIF89a")), "user-1")
	require.NoError(t, err)

	svc.Delete(public)
	_, err = os.Stat(filepath.Join(svc.Dir(), filepath.Base(public)))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "avatar deleted", hook.LastEntry().Message)

	hook.Reset()
	svc.Delete("")
	svc.Delete(public)
	assert.Empty(t, hook.AllEntries(), "empty paths and missing files are silent no-ops")
}

func TestDeleteSwallowsErrors(t *testing.T) {
	svc, hook := newTestService(t)

	svc.Delete("/etc/passwd")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// a non-empty directory in place of the file makes Remove fail
	name := "user-1_stuck.png"
	require.NoError(t, os.MkdirAll(filepath.Join(svc.Dir(), name, "child"), 0o755))
	hook.Reset()
	svc.Delete(PublicPrefix + name)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "failed to delete avatar", hook.LastEntry().Message)
}
