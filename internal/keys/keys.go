// Package keys derives namespaced store keys from a bucket name and a caller key.
package keys

import "strings"

// Separator joins the bucket name and the user key. Bucket names may not contain it,
// which keeps Form injective.
const Separator = ":"

// Form returns bucketName + ":" + userKey, or "" when either part is empty or the
// bucket name contains the separator. An empty result is the null key and must be
// rejected by every caller.
func Form(userKey, bucketName string) string {
	if userKey == "" || !ValidBucketName(bucketName) {
		return ""
	}
	return bucketName + Separator + userKey
}

// Split reverses Form. The user key may itself contain the separator.
func Split(cacheKey string) (bucketName, userKey string, ok bool) {
	bucketName, userKey, ok = strings.Cut(cacheKey, Separator)
	if !ok || bucketName == "" || userKey == "" {
		return "", "", false
	}
	return bucketName, userKey, true
}

// ValidBucketName reports whether name can be used as a bucket name.
func ValidBucketName(name string) bool {
	return name != "" && !strings.Contains(name, Separator)
}
