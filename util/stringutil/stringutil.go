package stringutil

import (
	"fmt"
	"strconv"
	"strings"
)

// StrToInt8Slice breaks a string into a series of tokens using a comma as a delimiter and
// returns an error naming the first token that cannot be interpreted as an 'int8'
func StrToInt8Slice(str string) ([]int8, error) {
	var r []int8

	for _, s := range splitNonEmpty(str) {
		v, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%q is not an int8 value", s)
		}
		r = append(r, int8(v))
	}

	return r, nil
}

// StrToInt64Slice breaks a comma separated string into int64 tokens.
func StrToInt64Slice(str string) ([]int64, error) {
	var r []int64

	for _, s := range splitNonEmpty(str) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer value", s)
		}
		r = append(r, v)
	}

	return r, nil
}

// StrToStringSlice breaks a comma separated string into trimmed, non empty tokens.
func StrToStringSlice(str string) []string {
	return splitNonEmpty(str)
}

func splitNonEmpty(str string) []string {
	var r []string
	for _, s := range strings.Split(str, ",") {
		if s = strings.TrimSpace(s); s != "" {
			r = append(r, s)
		}
	}
	return r
}
