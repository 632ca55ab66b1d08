package store

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

var _ = Describe("Store", func() {
	var (
		keyring *SessionKeyring
		s       *Store
		ctx     context.Context
	)

	imageData := []byte("data:image/png;base64,iVBORw0KGgo=")

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		keyring, err = NewSessionKeyring()
		Expect(err).NotTo(HaveOccurred())

		dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")
		s, err = Open(Config{
			Path:          dbPath,
			RetryBase:     time.Millisecond,
			RetryAttempts: 2,
		}, NewCipher(keyring, 1000), zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if s != nil {
			s.Close()
		}
	})

	Describe("SaveReceipt", func() {
		It("stores the image encrypted", func() {
			record, err := s.SaveReceipt(ctx, imageData, domain.CaptureMetadata{Method: "camera"})
			Expect(err).NotTo(HaveOccurred())

			Expect(record.ID).NotTo(BeEmpty())
			Expect(record.Timestamp).To(BeNumerically(">", 0))
			Expect(record.Encrypted()).To(BeTrue())
			Expect(record.Image.Ciphertext).NotTo(ContainSubstring("iVBORw0KGgo"))
		})

		It("falls back to plaintext when the session key is gone", func() {
			keyring.Invalidate()

			record, err := s.SaveReceipt(ctx, imageData, domain.CaptureMetadata{Method: "camera"})
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Encrypted()).To(BeFalse())

			pending, err := s.GetPendingReceipts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].Decrypted).To(BeTrue())
			Expect(pending[0].Image).To(Equal(imageData))
		})
	})

	Describe("GetPendingReceipts", func() {
		It("returns an empty list for a fresh store", func() {
			pending, err := s.GetPendingReceipts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("round-trips queued images in arrival order", func() {
			first := []byte("data:image/png;base64,Zmlyc3Q=")
			second := []byte("data:image/png;base64,c2Vjb25k")

			_, err := s.SaveReceipt(ctx, first, domain.CaptureMetadata{Method: "camera"})
			Expect(err).NotTo(HaveOccurred())
			time.Sleep(2 * time.Millisecond) // distinct arrival timestamps
			_, err = s.SaveReceipt(ctx, second, domain.CaptureMetadata{Method: "upload"})
			Expect(err).NotTo(HaveOccurred())

			pending, err := s.GetPendingReceipts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(2))

			Expect(pending[0].Image).To(Equal(first))
			Expect(pending[0].Record.Metadata.Method).To(Equal("camera"))
			Expect(pending[1].Image).To(Equal(second))
			Expect(pending[1].Record.Metadata.Method).To(Equal("upload"))
		})

		It("returns undecryptable records with their ciphertext intact", func() {
			record, err := s.SaveReceipt(ctx, imageData, domain.CaptureMetadata{})
			Expect(err).NotTo(HaveOccurred())

			keyring.Invalidate()

			pending, err := s.GetPendingReceipts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].Decrypted).To(BeFalse())
			Expect(pending[0].Image).To(BeNil())
			Expect(pending[0].Record.ID).To(Equal(record.ID))
			Expect(pending[0].Record.Image.Ciphertext).NotTo(BeEmpty())
		})
	})

	Describe("RemoveReceipt", func() {
		It("removes a queued record", func() {
			record, err := s.SaveReceipt(ctx, imageData, domain.CaptureMetadata{})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.RemoveReceipt(ctx, record.ID)).To(Succeed())

			pending, err := s.GetPendingReceipts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("is idempotent for unknown ids", func() {
			Expect(s.RemoveReceipt(ctx, "never-existed")).To(Succeed())
		})
	})

	Describe("preferences", func() {
		It("round-trips a structured value", func() {
			type prefs struct {
				HighQuality bool `json:"high_quality"`
				MaxEngines  int  `json:"max_engines"`
			}

			Expect(s.SavePreference(ctx, "scan_settings", prefs{HighQuality: true, MaxEngines: 4})).To(Succeed())

			var got prefs
			found, err := s.GetPreference(ctx, "scan_settings", &got)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(got).To(Equal(prefs{HighQuality: true, MaxEngines: 4}))
		})

		It("reports a missing key without error", func() {
			var got string
			found, err := s.GetPreference(ctx, "missing", &got)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("overwrites an existing key", func() {
			Expect(s.SavePreference(ctx, "theme", "light")).To(Succeed())
			Expect(s.SavePreference(ctx, "theme", "dark")).To(Succeed())

			var got string
			found, err := s.GetPreference(ctx, "theme", &got)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(got).To(Equal("dark"))
		})
	})

	Describe("persistence across reopen", func() {
		It("keeps plaintext-fallback records readable in a new session", func() {
			keyring.Invalidate()

			record, err := s.SaveReceipt(ctx, imageData, domain.CaptureMetadata{})
			Expect(err).NotTo(HaveOccurred())

			path := s.db.Path()
			Expect(s.Close()).To(Succeed())

			fresh, err := NewSessionKeyring()
			Expect(err).NotTo(HaveOccurred())
			reopened, err := Open(Config{Path: path}, NewCipher(fresh, 1000), zerolog.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			pending, err := reopened.GetPendingReceipts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].Record.ID).To(Equal(record.ID))
			Expect(pending[0].Decrypted).To(BeTrue())
			Expect(pending[0].Image).To(Equal(imageData))
		})
	})
})
