package evm

import (
	"fmt"
	"strconv"
	"strings"
)

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	return strconv.ParseUint(s, 16, 64)
}

func hexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
