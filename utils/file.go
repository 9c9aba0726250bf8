package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// EnsureUploadDir creates the uploads directory if it doesn't exist
func EnsureUploadDir() error {
	return os.MkdirAll("uploads", os.ModePerm)
}

// StorePhoto persists an uploaded entry photo and returns its public URL.
// Photos go to R2 when it is configured; otherwise they land in the local
// uploads directory, which the server exposes under /uploads (dev setups).
func StorePhoto(fileHeader *multipart.FileHeader, key string) (string, error) {
	if fileHeader.Size > MaxPhotoSizeBytes {
		return "", fmt.Errorf("photo exceeds %d byte limit", MaxPhotoSizeBytes)
	}
	if contentType := fileHeader.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported content type %q, expected an image", contentType)
	}

	if r2Client != nil {
		return UploadFileToR2(fileHeader, key)
	}

	destPath := filepath.Join("uploads", filepath.FromSlash(key))
	if err := SaveFile(fileHeader, destPath); err != nil {
		return "", fmt.Errorf("failed to save photo locally: %w", err)
	}
	return "/uploads/" + key, nil
}

// SaveFile saves the uploaded file to the given destination path
func SaveFile(fileHeader *multipart.FileHeader, destPath string) error {
	// ✅ Ensure the directory for the destination file exists
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, file)
	return err
}
