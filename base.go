/**
 * Filename: /Users/bao/code/gax/base.go
 * Path: /Users/bao/code/gax
 * Created Date: Tuesday, March 3rd 2020, 8:07:22 pm
 * Author: bao
 *
 * Copyright (c) 2020 Haibao Tang
 */

package gax

import (
	"fmt"
	"os"
	"path"
	"strings"

	logging "github.com/op/go-logging"
)

const (
	// Version is the current version of GAX
	Version = "0.3.1"
	// MissingInt is what a `*` numeric column in GAF parses to
	MissingInt = -1
	// MissingString marks an absent GAF column
	MissingString = "*"
	// MissingMapq is written when the mapping quality is unknown
	MissingMapq = 255
	// MaxGroupSize is the max number of messages in one group of a vg stream
	MaxGroupSize = 1000
	// GAMTypeTag is the group type tag for Alignment streams
	GAMTypeTag = "GAM"
	// GAMPTypeTag is the group type tag for MultipathAlignment streams
	GAMPTypeTag = "MGAM"
)

var log = logging.MustGetLogger("gax")
var format = logging.MustStringFormatter(
	`%{color}%{time:15:04:05} %{shortfunc} | %{level:.6s} %{color:reset} %{message}`,
)

// Backend is the default stderr output
var Backend = logging.NewLogBackend(os.Stderr, "", 0)

// BackendFormatter contains the fancy debug formatter
var BackendFormatter = logging.NewBackendFormatter(Backend, format)

// SetLogLevel installs the formatter with the given level, e.g. "NOTICE" or "DEBUG"
func SetLogLevel(level string) error {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return err
	}
	leveled := logging.AddModuleLevel(BackendFormatter)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return nil
}

// RemoveExt returns the substring minus the extension
func RemoveExt(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}

// Percentage prints a human readable message of the percentage
func Percentage(a, b int) string {
	if b == 0 {
		return fmt.Sprintf("%d of %d", a, b)
	}
	return fmt.Sprintf("%d of %d (%.1f %%)", a, b, float64(a)*100./float64(b))
}
