// Package imaging computes perceptual hashes of item photos.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/image/draw"

	"github.com/refound/lostfound-bot/internal/models"
)

// MaxDownload caps how much of a photo is read.
const MaxDownload = 10 << 20

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Hash returns the 64-bit difference hash of an image as 16 hex digits.
// Visually similar images produce hashes with a small Hamming distance.
func Hash(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDownload))
	if err != nil {
		return "", fmt.Errorf("reading image data: %w", err)
	}

	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return "", fmt.Errorf("unsupported image format: %s", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	return fmt.Sprintf("%016x", dHash(img)), nil
}

// dHash shrinks img to 9x8 grayscale and sets one bit per pixel that is
// brighter than its right-hand neighbour.
func dHash(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, 9, 8))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var h uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			h <<= 1
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				h |= 1
			}
		}
	}
	return h
}

// FileLocator resolves a chat file id to a download URL.
type FileLocator interface {
	FileURL(fileID string) (string, error)
}

// PhotoStore is the persistence the hasher needs.
type PhotoStore interface {
	ListPhotos(ctx context.Context, itemID int64) ([]models.Photo, error)
	SetPhotoHash(ctx context.Context, photoID int64, hash string) error
}

// Hasher downloads an item's photos and stores their hashes.
type Hasher struct {
	files  FileLocator
	store  PhotoStore
	client *http.Client
	logger *slog.Logger
}

func NewHasher(files FileLocator, store PhotoStore, logger *slog.Logger) *Hasher {
	return &Hasher{
		files:  files,
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// HashItemPhotos hashes every unhashed photo of itemID. A photo that fails
// is logged and skipped; the rest are still processed.
func (h *Hasher) HashItemPhotos(ctx context.Context, itemID int64) error {
	photos, err := h.store.ListPhotos(ctx, itemID)
	if err != nil {
		return err
	}

	for _, p := range photos {
		if p.Hash != "" {
			continue
		}
		hash, err := h.hashFile(ctx, p.FileID)
		if err != nil {
			h.logger.Warn("photo_hash_failed", "item_id", itemID, "photo_id", p.ID, "error", err)
			continue
		}
		if err := h.store.SetPhotoHash(ctx, p.ID, hash); err != nil {
			return err
		}
		h.logger.Debug("photo_hashed", "item_id", itemID, "photo_id", p.ID, "hash", hash)
	}
	return nil
}

func (h *Hasher) hashFile(ctx context.Context, fileID string) (string, error) {
	url, err := h.files.FileURL(fileID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building download request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading photo: status %d", resp.StatusCode)
	}
	return Hash(resp.Body)
}
