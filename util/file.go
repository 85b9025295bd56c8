package util

import (
	"os"
	"path/filepath"
)

// ResolvePath 相对路径按 baseDir 展开，baseDir 为空时使用当前工作目录
func ResolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			baseDir = wd
		}
	}
	return filepath.Join(baseDir, path)
}

// IsRegularFile 路径存在且是普通文件
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
