package wal

import "os"

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func truncate(path string, size int64) error {
	return os.Truncate(path, size)
}
