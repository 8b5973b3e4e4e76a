package internal

import (
	"crypto/md5"
	"encoding/hex"
)

// HashURL is used as a storage key for urls and domains.
func HashURL(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}
