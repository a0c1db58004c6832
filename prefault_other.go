//go:build !linux

package hashpart

func prefaultForWrite([]byte) {}
