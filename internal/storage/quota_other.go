//go:build !unix

package storage

func freeSpace(string) (int64, error) { return 0, nil }
