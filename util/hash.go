package util

import (
	"crypto/md5"
	"encoding/hex"
)

// BytesMD5 按顺序拼接多段数据计算 MD5
func BytesMD5(parts ...[]byte) string {
	hash := md5.New()
	for _, p := range parts {
		hash.Write(p)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
