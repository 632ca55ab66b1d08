package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.etcd.io/bbolt"
)

// record mirrors the persisted offline queue entry closely enough for
// inspection without importing internal packages
type record struct {
	ID                string `json:"id"`
	Timestamp         int64  `json:"timestamp"`
	EncryptionVersion int    `json:"encryption_version"`
	Metadata          struct {
		Method string `json:"method"`
	} `json:"metadata"`
	Image struct {
		Ciphertext string `json:"ciphertext"`
	} `json:"image"`
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	path := os.Getenv("STORAGE_PATH")
	if path == "" {
		path = "receipt-rewards.db"
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		log.Fatalf("Unable to open store at %s: %v", path, err)
	}
	defer db.Close()

	encrypted, plaintext := 0, 0
	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("offline_receipts"))
		if bucket == nil {
			fmt.Println("No offline receipts bucket, queue is empty")
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				fmt.Printf("  %s  <corrupt record: %v>\n", string(k), err)
				return nil
			}
			mode := "encrypted"
			if r.EncryptionVersion == 0 {
				mode = "PLAINTEXT"
				plaintext++
			} else {
				encrypted++
			}
			captured := time.UnixMilli(r.Timestamp).Format(time.RFC3339)
			fmt.Printf("  %s  captured=%s  method=%-8s  mode=%s  payload=%d bytes\n",
				r.ID, captured, r.Metadata.Method, mode, len(r.Image.Ciphertext))
			return nil
		})
	})
	if err != nil {
		log.Fatalf("Failed to read queue: %v", err)
	}

	fmt.Printf("\n%d pending (%d encrypted, %d plaintext)\n", encrypted+plaintext, encrypted, plaintext)
	if plaintext > 0 {
		fmt.Println("Warning: plaintext records present, these were captured while no session key was available")
	}
}
