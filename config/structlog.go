package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/golang/glog"
)

type logMsg func(string, ...interface{})

var mapregex = regexp.MustCompile(`mapstructure:"([^",]+)`)
var blocklistregexp = []*regexp.Regexp{
	regexp.MustCompile("password"),
}

// logGeneral will log nearly any sort of value, but requires it to be passed by value.
func logGeneral(v interface{}, prefix string) {
	logger := func(msg string, args ...interface{}) {
		glog.Infof(prefix+msg, args...)
	}
	logValueWithLogger(reflect.ValueOf(v), "", logger)
}

func logStructWithLogger(v reflect.Value, path string, logger logMsg) {
	for i := 0; i < v.NumField(); i++ {
		fieldPath := fieldNameByTag(v.Type().Field(i))
		if path != "" {
			fieldPath = path + "." + fieldPath
		}
		if allowedName(fieldPath) {
			logValueWithLogger(v.Field(i), fieldPath, logger)
		} else {
			logger("%s: <REDACTED>", fieldPath)
		}
	}
}

func logValueWithLogger(v reflect.Value, path string, logger logMsg) {
	switch v.Kind() {
	case reflect.Struct:
		logStructWithLogger(v, path, logger)
	case reflect.Ptr:
		if v.IsNil() {
			logger("%s: <nil>", path)
			return
		}
		logValueWithLogger(v.Elem(), path, logger)
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			logValueWithLogger(iter.Value(), fmt.Sprintf("%s[%v]", path, iter.Key()), logger)
		}
	default:
		logger("%s: %v", path, v)
	}
}

func fieldNameByTag(f reflect.StructField) string {
	match := mapregex.FindStringSubmatch(string(f.Tag))
	if len(match) < 2 {
		return "((" + f.Name + "))"
	}
	return match[1]
}

func allowedName(name string) bool {
	name = strings.ToLower(name)
	for _, r := range blocklistregexp {
		if r.MatchString(name) {
			return false
		}
	}
	return true
}
