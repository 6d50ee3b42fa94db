package utils

import (
	"math/rand"
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

const pidBytes = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandString 生成帖子对外的不透明短 ID
func RandString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = pidBytes[rand.Intn(len(pidBytes))]
	}
	return string(b)
}
