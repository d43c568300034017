package media

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type upload struct {
	name string
	data []byte
}

func formFiles(t *testing.T, uploads ...upload) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, u := range uploads {
		part, err := writer.CreateFormFile(FieldName, u.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(u.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File[FieldName]
}

func TestSaveImagesWritesToDisk(t *testing.T) {
	root := t.TempDir()
	uploader := NewUploader(NewDiskStorage(root, "/uploads"))

	paths, err := uploader.SaveImages(context.Background(), formFiles(t,
		upload{name: "front.PNG", data: pngHeader},
		upload{name: "back", data: pngHeader},
	))
	if err != nil {
		t.Fatalf("save images: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %v", paths)
	}
	for _, p := range paths {
		if !strings.HasPrefix(p, "/uploads/properties/") || !strings.HasSuffix(p, ".png") {
			t.Fatalf("unexpected public path %q", p)
		}
		onDisk := filepath.Join(root, strings.TrimPrefix(p, "/uploads/"))
		if _, err := os.Stat(onDisk); err != nil {
			t.Fatalf("expected file at %s: %v", onDisk, err)
		}
	}
	if paths[0] == paths[1] {
		t.Fatal("expected unique file names")
	}
}

func TestSaveImagesRejections(t *testing.T) {
	oversized := append(append([]byte{}, pngHeader...), make([]byte, MaxFileSize)...)
	cases := []struct {
		name    string
		uploads []upload
		want    error
	}{
		{name: "too many files", uploads: []upload{{"a.png", pngHeader}, {"b.png", pngHeader}, {"c.png", pngHeader}, {"d.png", pngHeader}}, want: ErrTooManyFiles},
		{name: "not an image", uploads: []upload{{"notes.png", []byte("just some text")}}, want: ErrNotImage},
		{name: "too large", uploads: []upload{{"huge.png", oversized}}, want: ErrFileTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			uploader := NewUploader(NewDiskStorage(root, "/uploads"))
			if _, err := uploader.SaveImages(context.Background(), formFiles(t, tc.uploads...)); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSaveImagesRollsBackOnRejection(t *testing.T) {
	root := t.TempDir()
	uploader := NewUploader(NewDiskStorage(root, "/uploads"))

	_, err := uploader.SaveImages(context.Background(), formFiles(t,
		upload{name: "ok.png", data: pngHeader},
		upload{name: "bad.txt", data: []byte("plain text")},
	))
	if !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "properties"))
	if len(entries) != 0 {
		t.Fatalf("expected stored images to be removed, found %d", len(entries))
	}
}

func TestDiskStorageDeleteIgnoresForeignPaths(t *testing.T) {
	root := t.TempDir()
	disk := NewDiskStorage(root, "uploads/")
	ctx := context.Background()

	stored, err := disk.Put(ctx, "properties/x.png", "image/png", bytes.NewReader(pngHeader), int64(len(pngHeader)))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if stored != "/uploads/properties/x.png" {
		t.Fatalf("unexpected path %q", stored)
	}
	for _, foreign := range []string{"https://cdn.example.com/a.png", "/uploads/../secret", ""} {
		if err := disk.Delete(ctx, foreign); err != nil {
			t.Fatalf("delete %q: %v", foreign, err)
		}
	}
	if err := disk.Delete(ctx, stored); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "properties", "x.png")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err = %v", err)
	}
	if err := disk.Delete(ctx, stored); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}
