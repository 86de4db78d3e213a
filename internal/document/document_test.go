package document

import (
	"errors"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDocument(t *testing.T) {
	// Disable logging during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Document Suite")
}

func writeTestImage(dir, name string, w, h int) string {
	img := imaging.New(w, h, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	// A diagonal band gives the histogram something to equalize
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%7 == 0 {
				img.Set(x, y, color.NRGBA{R: 60, G: 60, B: 60, A: 255})
			}
		}
	}
	path := filepath.Join(dir, name)
	Expect(imaging.Save(img, path)).To(Succeed())
	return path
}

var _ = Describe("RenderPages", func() {
	When("the input is a plain raster image", func() {
		It("should return the path unchanged as a single page", func() {
			pages, err := RenderPages("/some/receipt.jpg", 300)
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(Equal([]string{"/some/receipt.jpg"}))
		})
	})

	When("the input is an unreadable PDF", func() {
		It("should return a RenderError", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "broken.pdf")
			Expect(os.WriteFile(path, []byte("not a pdf at all"), 0644)).To(Succeed())

			_, err := RenderPages(path, 300)
			var renderErr *RenderError
			Expect(errors.As(err, &renderErr)).To(BeTrue())
			Expect(renderErr.Path).To(Equal(path))
		})
	})
})

var _ = Describe("Normalize", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	When("the image fits within the long-side cap", func() {
		It("should keep its dimensions", func() {
			src := writeTestImage(dir, "small.png", 120, 80)

			out, err := Normalize(src, 1800)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(filepath.Join(dir, "small_prepped.png")))

			img, err := imaging.Open(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(120))
			Expect(img.Bounds().Dy()).To(Equal(80))
		})
	})

	When("the image exceeds the long-side cap", func() {
		It("should downscale preserving aspect ratio", func() {
			src := writeTestImage(dir, "wide.jpg", 400, 100)

			out, err := Normalize(src, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveSuffix("wide_prepped.jpg"))

			img, err := imaging.Open(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(200))
			Expect(img.Bounds().Dy()).To(Equal(50))
		})

		It("should cap on height for portrait images", func() {
			src := writeTestImage(dir, "tall.png", 100, 400)

			out, err := Normalize(src, 200)
			Expect(err).NotTo(HaveOccurred())

			img, err := imaging.Open(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(50))
			Expect(img.Bounds().Dy()).To(Equal(200))
		})
	})

	When("the file does not exist", func() {
		It("should return an error", func() {
			_, err := Normalize(filepath.Join(dir, "missing.png"), 1800)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("claheLuminance", func() {
	It("should preserve image dimensions", func() {
		img := imaging.New(100, 60, color.NRGBA{R: 90, G: 120, B: 140, A: 255})
		out := claheLuminance(img, 2.0, 8)
		Expect(out.Bounds().Dx()).To(Equal(100))
		Expect(out.Bounds().Dy()).To(Equal(60))
	})

	It("should be deterministic", func() {
		dir := GinkgoT().TempDir()
		src := writeTestImage(dir, "det.png", 64, 64)
		img, err := imaging.Open(src)
		Expect(err).NotTo(HaveOccurred())

		first := claheLuminance(img, 2.0, 8)
		second := claheLuminance(img, 2.0, 8)
		Expect(first.Pix).To(Equal(second.Pix))
	})

	It("should keep a flat image close to flat", func() {
		img := imaging.New(80, 80, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
		out := claheLuminance(img, 2.0, 8)

		// Clipping caps the equalization gain, so a constant luminance
		// plane cannot be blown out to the extremes.
		for i := 0; i < len(out.Pix); i += 4 {
			Expect(int(out.Pix[i])).To(BeNumerically("~", 128, 16))
		}
	})
})

var _ = Describe("preppedPath", func() {
	It("should add the suffix before the extension", func() {
		Expect(preppedPath("/tmp/receipt.jpg")).To(Equal("/tmp/receipt_prepped.jpg"))
		Expect(preppedPath("/tmp/scan.PNG")).To(Equal("/tmp/scan_prepped.PNG"))
	})

	It("should switch HEIC sources to PNG", func() {
		Expect(preppedPath("/tmp/photo.heic")).To(Equal("/tmp/photo_prepped.png"))
	})
})
