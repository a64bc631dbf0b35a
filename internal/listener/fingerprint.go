package listener

import (
	"encoding/hex"
	"io"

	"github.com/minio/highwayhash"
)

// fingerprintKey is fixed so fingerprints stay comparable across restarts.
var fingerprintKey = []byte("jobhost-blob-receipt-fingerprint")

// Fingerprint returns the hex HighwayHash-64 of r's content.
func Fingerprint(r io.Reader) (string, error) {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
