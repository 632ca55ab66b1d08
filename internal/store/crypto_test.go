package store

import (
	"encoding/base64"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cipher", func() {
	var (
		keyring *SessionKeyring
		c       *Cipher
	)

	BeforeEach(func() {
		var err error
		keyring, err = NewSessionKeyring()
		Expect(err).NotTo(HaveOccurred())
		c = NewCipher(keyring, 1000)
	})

	Describe("Encrypt and Decrypt", func() {
		DescribeTable("round-trips the plaintext",
			func(plain []byte) {
				img, err := c.Encrypt(plain)
				Expect(err).NotTo(HaveOccurred())

				recovered, err := c.Decrypt(img)
				Expect(err).NotTo(HaveOccurred())
				if len(plain) == 0 {
					Expect(recovered).To(BeEmpty())
				} else {
					Expect(recovered).To(Equal(plain))
				}
			},
			Entry("empty payload", []byte{}),
			Entry("short payload", []byte("data:image/png;base64,AAAA")),
			Entry("unicode payload", []byte("quittung über 12,00 € ✓")),
			Entry("large payload", []byte(strings.Repeat("0123456789abcdef", 1024))),
		)

		It("tags the output with the current scheme version", func() {
			img, err := c.Encrypt([]byte("payload"))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Version).To(Equal(EncryptionVersion))
		})

		It("uses a fresh salt, iv and ciphertext per call", func() {
			first, err := c.Encrypt([]byte("same payload"))
			Expect(err).NotTo(HaveOccurred())
			second, err := c.Encrypt([]byte("same payload"))
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Salt).NotTo(Equal(second.Salt))
			Expect(first.IV).NotTo(Equal(second.IV))
			Expect(first.Ciphertext).NotTo(Equal(second.Ciphertext))
		})
	})

	Describe("tamper detection", func() {
		flipByte := func(encoded string) string {
			raw, err := base64.StdEncoding.DecodeString(encoded)
			Expect(err).NotTo(HaveOccurred())
			raw[len(raw)/2] ^= 0xff
			return base64.StdEncoding.EncodeToString(raw)
		}

		It("rejects a flipped ciphertext byte", func() {
			img, err := c.Encrypt([]byte("authentic"))
			Expect(err).NotTo(HaveOccurred())

			img.Ciphertext = flipByte(img.Ciphertext)
			_, err = c.Decrypt(img)
			Expect(err).To(MatchError(ContainSubstring("authentication failed")))
		})

		It("rejects a flipped salt byte", func() {
			img, err := c.Encrypt([]byte("authentic"))
			Expect(err).NotTo(HaveOccurred())

			img.Salt = flipByte(img.Salt)
			_, err = c.Decrypt(img)
			Expect(err).To(MatchError(ContainSubstring("authentication failed")))
		})

		It("rejects a flipped iv byte", func() {
			img, err := c.Encrypt([]byte("authentic"))
			Expect(err).NotTo(HaveOccurred())

			img.IV = flipByte(img.IV)
			_, err = c.Decrypt(img)
			Expect(err).To(MatchError(ContainSubstring("authentication failed")))
		})

		It("rejects an unsupported version", func() {
			img, err := c.Encrypt([]byte("authentic"))
			Expect(err).NotTo(HaveOccurred())

			img.Version = 99
			_, err = c.Decrypt(img)
			Expect(err).To(MatchError(ContainSubstring("unsupported encryption version")))
		})
	})

	Describe("session invalidation", func() {
		It("refuses to encrypt after the keyring is invalidated", func() {
			keyring.Invalidate()
			_, err := c.Encrypt([]byte("payload"))
			Expect(err).To(MatchError(ErrSessionInvalidated))
		})

		It("makes previously encrypted records unreadable", func() {
			img, err := c.Encrypt([]byte("payload"))
			Expect(err).NotTo(HaveOccurred())

			keyring.Invalidate()
			_, err = c.Decrypt(img)
			Expect(err).To(MatchError(ErrSessionInvalidated))
		})

		It("produces different records under different sessions", func() {
			other, err := NewSessionKeyring()
			Expect(err).NotTo(HaveOccurred())
			otherCipher := NewCipher(other, 1000)

			img, err := c.Encrypt([]byte("payload"))
			Expect(err).NotTo(HaveOccurred())

			_, err = otherCipher.Decrypt(img)
			Expect(err).To(HaveOccurred())
		})
	})
})
