package parser

import "strconv"

func parseI64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
