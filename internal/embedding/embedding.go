// Package embedding turns face images into fixed-length feature vectors
// that can be compared with cosine distance.
//
// The pipeline is deterministic: the same image bytes always produce the
// same vector, so vectors can be cached in the representations index and
// invalidated purely by content hash.
package embedding

import (
	"bytes"
	"errors"
	"image"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Model identifies the embedding pipeline version. Stored alongside every
// cached vector; bump it whenever the feature layout changes so stale
// index entries are rebuilt instead of compared across models.
const Model = "grid-hog-v1"

const (
	// patchSize is the side of the normalized grayscale patch.
	patchSize = 128

	// gridCells is the number of cells per side for both the intensity
	// grid and the gradient histograms.
	gridCells = 8

	// orientationBins is the number of gradient orientation bins per cell.
	orientationBins = 8
)

// Dim is the length of every vector this pipeline produces:
// gridCells² cells × (mean + stddev) + gridCells² cells × orientationBins.
const Dim = gridCells*gridCells*2 + gridCells*gridCells*orientationBins

var (
	ErrDecode   = errors.New("embedding: image decode failed")
	ErrTooSmall = errors.New("embedding: image too small")
)

// Vector is an L2-normalized feature vector of length Dim.
type Vector []float32

// FromBytes decodes the image (JPEG, PNG, GIF, or WebP, sniffed from the
// content) and embeds it. The file extension is irrelevant.
func FromBytes(data []byte) (Vector, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrDecode
	}
	return FromImage(img)
}

// FromImage embeds an already-decoded image.
func FromImage(img image.Image) (Vector, error) {
	b := img.Bounds()
	if b.Dx() < 16 || b.Dy() < 16 {
		return nil, ErrTooSmall
	}

	patch := normalize(img)
	vec := make(Vector, 0, Dim)
	vec = append(vec, intensityFeatures(patch)...)
	vec = append(vec, gradientFeatures(patch)...)

	l2Normalize(vec)
	return vec, nil
}

// Cosine returns the cosine distance between two vectors: 0 for identical
// direction, up to 2 for opposite. Both inputs must be L2-normalized,
// which FromImage guarantees.
func Cosine(a, b Vector) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}

// normalize scales the image to a patchSize² grayscale patch and
// standardizes its intensity (zero mean, unit variance) so the features
// are robust to global brightness and contrast shifts.
func normalize(img image.Image) []float64 {
	gray := image.NewGray(image.Rect(0, 0, patchSize, patchSize))
	xdraw.CatmullRom.Scale(gray, gray.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	px := make([]float64, patchSize*patchSize)
	var sum float64
	for i, v := range gray.Pix {
		f := float64(v) / 255.0
		px[i] = f
		sum += f
	}
	mean := sum / float64(len(px))

	var variance float64
	for _, f := range px {
		d := f - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(px)))
	if std < 1e-6 {
		std = 1e-6
	}
	for i := range px {
		px[i] = (px[i] - mean) / std
	}
	return px
}

// intensityFeatures computes per-cell mean and standard deviation of the
// standardized intensity over a gridCells × gridCells grid.
func intensityFeatures(px []float64) Vector {
	const cell = patchSize / gridCells
	out := make(Vector, 0, gridCells*gridCells*2)

	for cy := 0; cy < gridCells; cy++ {
		for cx := 0; cx < gridCells; cx++ {
			var sum, sumSq float64
			for y := cy * cell; y < (cy+1)*cell; y++ {
				for x := cx * cell; x < (cx+1)*cell; x++ {
					f := px[y*patchSize+x]
					sum += f
					sumSq += f * f
				}
			}
			n := float64(cell * cell)
			mean := sum / n
			variance := sumSq/n - mean*mean
			if variance < 0 {
				variance = 0
			}
			out = append(out, float32(mean), float32(math.Sqrt(variance)))
		}
	}
	return out
}

// gradientFeatures computes magnitude-weighted gradient orientation
// histograms over the same cell grid. Orientation is unsigned (0..π),
// which makes the histogram insensitive to contrast polarity.
func gradientFeatures(px []float64) Vector {
	const cell = patchSize / gridCells
	hist := make([]float64, gridCells*gridCells*orientationBins)

	for y := 1; y < patchSize-1; y++ {
		for x := 1; x < patchSize-1; x++ {
			gx := px[y*patchSize+x+1] - px[y*patchSize+x-1]
			gy := px[(y+1)*patchSize+x] - px[(y-1)*patchSize+x]
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			angle := math.Atan2(gy, gx)
			if angle < 0 {
				angle += math.Pi
			}
			bin := int(angle / math.Pi * orientationBins)
			if bin >= orientationBins {
				bin = orientationBins - 1
			}

			cellIdx := (y/cell)*gridCells + x/cell
			hist[cellIdx*orientationBins+bin] += mag
		}
	}

	out := make(Vector, len(hist))
	for i, v := range hist {
		out[i] = float32(v)
	}
	return out
}

func l2Normalize(v Vector) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-12 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
